package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/outbox"
)

var (
	outboxDir    string
	outboxFormat string
)

func init() {
	rootCmd.AddCommand(outboxCmd)
	outboxCmd.AddCommand(outboxListCmd)

	outboxCmd.PersistentFlags().StringVar(&outboxDir, "dir", "", "Outbox directory (default from config)")
	outboxListCmd.Flags().StringVar(&outboxFormat, "format", "text", "Output format: text or json")
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Read checkpoint files written by the outbox sink",
}

var outboxListCmd = &cobra.Command{
	Use:   "list <session-id>",
	Short: "List a session's checkpoint files in firing order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutboxList,
}

func runOutboxList(cmd *cobra.Command, args []string) error {
	dir := config.ExpandHome(outboxDir)
	if dir == "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		dir = cfg.Sinks.Outbox.Dir
	}
	if dir == "" {
		return fmt.Errorf("no outbox directory configured; pass --dir")
	}
	o, err := outbox.New(dir)
	if err != nil {
		return err
	}

	obs, err := o.List(args[0])
	if err != nil {
		return err
	}
	if outboxFormat == "json" {
		return printJSON(cmd.OutOrStdout(), obs)
	}
	out := cmd.OutOrStdout()
	if len(obs) == 0 {
		fmt.Fprintf(out, "No checkpoints for %s in %s\n", args[0], dir)
		return nil
	}
	for _, ob := range obs {
		fmt.Fprintf(out, "%12d %s\n", ob.UsageAtTrigger, obligationLine(ob))
	}
	return nil
}
