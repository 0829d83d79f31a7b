package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	pb "github.com/ppiankov/budgetwatch/api/budgetwatch/v1"
	"github.com/ppiankov/budgetwatch/internal/client"
	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/session"
)

var (
	sessServer     string
	sessID         string
	sessReason     string
	sessCompleted  []string
	sessInProgress []string
	sessNext       []string
	sessContext    string
	sessFormat     string
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStartCmd, sessionReportCmd, sessionCompleteCmd, sessionHandOffCmd, sessionStatusCmd)

	sessionCmd.PersistentFlags().StringVar(&sessServer, "server", "", "Budget server address (default from config)")
	sessionCmd.PersistentFlags().StringVarP(&sessFormat, "format", "f", "text", "Output format (text|json)")

	sessionStartCmd.Flags().StringVar(&sessID, "id", "", "Session id (generated when omitted)")
	sessionHandOffCmd.Flags().StringVar(&sessReason, "reason", "", "Why the session is handed off")

	for _, c := range []*cobra.Command{sessionReportCmd, sessionCompleteCmd, sessionHandOffCmd} {
		c.Flags().StringSliceVar(&sessCompleted, "completed", nil, "Completed work items")
		c.Flags().StringSliceVar(&sessInProgress, "in-progress", nil, "Work items underway")
		c.Flags().StringSliceVar(&sessNext, "next", nil, "Next steps for a successor")
		c.Flags().StringVar(&sessContext, "context", "", "Freeform context")
	}
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Drive sessions on a running budget server",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <profile>",
	Short: "Start a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStart,
}

var sessionReportCmd = &cobra.Command{
	Use:   "report <session-id> <delta>",
	Short: "Report usage and print due checkpoint obligations",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionReport,
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Complete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionComplete,
}

var sessionHandOffCmd = &cobra.Command{
	Use:   "handoff <session-id>",
	Short: "Hand a session to a successor",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionHandOff,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show a session's usage, zone and next checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStatus,
}

func dial() (*client.Client, error) {
	addr := sessServer
	if addr == "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		addr = cfg.Server.Listen
	}
	return client.New(addr)
}

// notesFromFlags returns nil when no notes flag was given.
func notesFromFlags() *model.ProgressNotes {
	n := model.ProgressNotes{
		Completed:       sessCompleted,
		InProgress:      sessInProgress,
		NextSteps:       sessNext,
		FreeformContext: sessContext,
	}
	if n.Empty() {
		return nil
	}
	return &n
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	sess, err := c.Start(context.Background(), args[0], sessID)
	if err != nil {
		return err
	}
	if sessFormat == "json" {
		return printJSON(cmd.OutOrStdout(), sess)
	}
	fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
	return nil
}

func runSessionReport(cmd *cobra.Command, args []string) error {
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid delta %q: %w", args[1], err)
	}
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.Report(context.Background(), args[0], delta, notesFromFlags())
	// An overflow still carries the forced handoff.
	if len(resp.Obligations) > 0 {
		if perr := printObligations(cmd.OutOrStdout(), resp); perr != nil {
			return perr
		}
	}
	return err
}

func runSessionComplete(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.Complete(context.Background(), args[0], notesOrZero())
	if err != nil {
		return err
	}
	return printObligations(cmd.OutOrStdout(), resp)
}

func runSessionHandOff(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.HandOff(context.Background(), args[0], notesOrZero(), sessReason)
	if err != nil {
		return err
	}
	return printObligations(cmd.OutOrStdout(), resp)
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.Status(context.Background(), args[0])
	if err != nil {
		return err
	}
	if sessFormat == "json" {
		return printJSON(cmd.OutOrStdout(), st)
	}
	printStatus(cmd.OutOrStdout(), st)
	return nil
}

func notesOrZero() model.ProgressNotes {
	if n := notesFromFlags(); n != nil {
		return *n
	}
	return model.ProgressNotes{}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printObligations(w io.Writer, resp pb.ObligationsResponse) error {
	if sessFormat == "json" {
		return printJSON(w, resp)
	}
	s := resp.Session
	fmt.Fprintf(w, "%s  %d %s %s\n", s.ID, s.Usage, zoneBadge(s.Zone), s.State)
	for _, ob := range resp.Obligations {
		fmt.Fprintln(w, obligationLine(ob))
	}
	for _, ob := range resp.Undelivered {
		fmt.Fprintf(w, "  !! undelivered: %s\n", ob.ID)
	}
	return nil
}

func printStatus(w io.Writer, st session.Status) {
	s := st.Session
	fmt.Fprintf(w, "%s  %s  %s\n", s.ID, labelStyle.Render(s.ProfileID), s.State)
	fmt.Fprintf(w, "  usage %d / %d %s %s %5.1f%%\n",
		st.Budget.Used, st.Budget.Max, usageBar(st.Budget.Used, st.Budget.Max), zoneBadge(s.Zone), st.Budget.Ratio*100)
	if st.NextTier != "" {
		fmt.Fprintf(w, "  next checkpoint %s in %d\n", tierStyle.Render(st.NextTier), st.NextTierIn)
	}
}
