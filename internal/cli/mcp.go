package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	budgetmcp "github.com/ppiankov/budgetwatch/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs budgetwatch as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: budget_start, budget_report, budget_complete, budget_handoff, budget_status.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	mgr, s, _, err := newManager()
	if err != nil {
		return err
	}
	defer closeSink(s)

	srv := budgetmcp.New(mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "budgetwatch MCP server running on stdio")
	fmt.Fprintln(os.Stderr)

	err = srv.Run(ctx)

	// Sessions live in memory; show where they ended.
	sessions := mgr.List()
	if len(sessions) > 0 {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Sessions:")
		for _, sess := range sessions {
			fmt.Fprintf(os.Stderr, "  %-40s %-10s %-8s %d\n", sess.ID, sess.State, sess.Zone, sess.Usage)
		}
	}
	return err
}
