package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/store"
)

var storePath string

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeLatestCmd)

	storeCmd.PersistentFlags().StringVar(&storePath, "db", "", "Path to the SQLite checkpoint store (default from config)")
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Query the SQLite checkpoint store",
}

var storeListCmd = &cobra.Command{
	Use:   "list [session-id]",
	Short: "List checkpoints of a session, or sessions with checkpoints",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStoreList,
}

var storeLatestCmd = &cobra.Command{
	Use:   "latest <session-id>",
	Short: "Print the latest checkpoint document of a session as JSON",
	Long:  "Prints the most recent document so an operator can hand it to a successor.\nThe store never reconstructs a session.",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreLatest,
}

func openStore() (*store.Store, error) {
	path := config.ExpandHome(storePath)
	if path == "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.Sinks.SQLite.Path
	}
	return store.Open(path)
}

func runStoreList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		ids, err := st.Sessions(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "No checkpoints stored.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	records, err := st.List(ctx, args[0])
	if err != nil {
		return err
	}
	for _, r := range records {
		flag := ""
		if r.IsEmergency {
			flag = " " + emergencyStyle.Render("EMERGENCY")
		}
		fmt.Fprintf(out, "%s  %-20s %12d %s%s\n",
			r.EmittedAt.Format("2006-01-02T15:04:05Z"), r.Tier, r.Usage, zoneBadge(r.Zone), flag)
	}
	return nil
}

func runStoreLatest(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := st.Latest(context.Background(), args[0])
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(r.Document, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
