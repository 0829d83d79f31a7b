package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/ledger"
)

var (
	ledgerPath   string
	ledgerFormat string
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)

	ledgerCmd.PersistentFlags().StringVarP(&ledgerPath, "ledger", "l", "", "Path to checkpoint ledger (default from config)")
	ledgerShowCmd.Flags().StringVarP(&ledgerFormat, "format", "f", "text", "Output format (text|json)")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the checkpoint ledger",
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the ledger hash chain and document digests",
	RunE:  runLedgerVerify,
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show checkpoints recorded in the ledger",
	Long:  "Lists ledger entries in write order with a summary. Without a session id, every session is shown.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLedgerShow,
}

func resolveLedgerPath() (string, error) {
	if ledgerPath != "" {
		return config.ExpandHome(ledgerPath), nil
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return "", err
	}
	return cfg.Sinks.Ledger.Path, nil
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	path, err := resolveLedgerPath()
	if err != nil {
		return err
	}
	result := ledger.Verify(path)
	if !result.Valid {
		if result.ErrorLine > 0 {
			return fmt.Errorf("ledger %s: line %d: %s", path, result.ErrorLine, result.Error)
		}
		return fmt.Errorf("ledger %s: %s", path, result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ledger %s: %d entries, chain intact\n", path, result.Lines)
	return nil
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	path, err := resolveLedgerPath()
	if err != nil {
		return err
	}
	sessionID := ""
	if len(args) == 1 {
		sessionID = args[0]
	}
	result, err := ledger.Replay(path, sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ledgerFormat == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	for _, e := range result.Entries {
		flag := ""
		if e.IsEmergency {
			flag = " " + emergencyStyle.Render("EMERGENCY")
		}
		fmt.Fprintf(out, "%s  %-40s %-20s %12d %s%s\n",
			e.Timestamp, e.SessionID, e.Tier, e.UsageAtTrigger, zoneBadge(e.ZoneAtTrigger), flag)
	}
	sum := result.Summary
	fmt.Fprintf(out, "\n%d checkpoint(s), %d emergency, max usage %d, max zone %s\n",
		sum.Total, sum.EmergencyCount, sum.MaxUsage, sum.MaxZone)
	return nil
}
