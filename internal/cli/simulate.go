package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/budget"
	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/session"
	"github.com/ppiankov/budgetwatch/internal/sink"
)

var (
	simProfile string
	simDeltas  []int64
	simNotes   string
	simFinish  string
	simFormat  string
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simProfile, "profile", "", "Profile id to simulate (required)")
	simulateCmd.Flags().Int64SliceVar(&simDeltas, "delta", nil, "Usage delta to report; repeat for a sequence (required)")
	simulateCmd.Flags().StringVar(&simNotes, "notes", "", "Freeform progress notes carried into every checkpoint")
	simulateCmd.Flags().StringVar(&simFinish, "finish", "", "End with complete or handoff")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "text", "Output format (text|json)")
	simulateCmd.MarkFlagRequired("profile")
	simulateCmd.MarkFlagRequired("delta")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Dry-run a usage sequence against a profile",
	Long: "Starts an in-memory session, reports each --delta in order and shows\n" +
		"the zone and checkpoint obligations after every step. Nothing is persisted.\n\n" +
		"Use this to preview a profile's schedule before deploying it.",
	RunE: runSimulate,
}

// SimStep is the outcome of one simulated report.
type SimStep struct {
	Delta       int64              `json:"delta"`
	Usage       uint64             `json:"usage"`
	Zone        model.Zone         `json:"zone"`
	State       model.SessionState `json:"state"`
	Obligations []model.Obligation `json:"obligations,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simFinish != "" && simFinish != "complete" && simFinish != "handoff" {
		return fmt.Errorf("invalid --finish %q: must be complete or handoff", simFinish)
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return err
	}
	mgr := session.NewManager(catalog, sink.NewMemory())

	steps, p, err := simulate(mgr, simProfile, simDeltas, simNotes, simFinish)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch simFormat {
	case "json":
		data, err := json.MarshalIndent(steps, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	default:
		printSimulation(out, p, steps)
	}
	return nil
}

// simulate runs deltas through a fresh session. Engine errors are recorded
// per step; a terminal session ends the run.
func simulate(mgr *session.Manager, profileID string, deltas []int64, notes, finish string) ([]SimStep, model.Profile, error) {
	sess, err := mgr.Start(profileID, "simulate")
	if err != nil {
		return nil, model.Profile{}, err
	}
	c, err := mgr.Get(sess.ID)
	if err != nil {
		return nil, model.Profile{}, err
	}
	pn := model.ProgressNotes{FreeformContext: notes}
	if notes != "" {
		if err := mgr.SetNotes(sess.ID, pn); err != nil {
			return nil, model.Profile{}, err
		}
	}

	var steps []SimStep
	record := func(delta int64, obs []model.Obligation, err error) {
		snap := c.Snapshot()
		step := SimStep{Delta: delta, Usage: snap.Usage, Zone: snap.Zone, State: snap.State, Obligations: obs}
		if err != nil {
			step.Error = err.Error()
		}
		steps = append(steps, step)
	}

	for _, d := range deltas {
		obs, err := mgr.ReportUsage(sess.ID, d)
		record(d, obs, err)
		if errors.Is(err, model.ErrUsageOverflow) || errors.Is(err, model.ErrSessionTerminal) {
			return steps, c.Profile(), nil
		}
	}

	switch finish {
	case "complete":
		ob, err := mgr.Complete(sess.ID, pn)
		record(0, nonEmpty(ob, err), err)
	case "handoff":
		ob, err := mgr.HandOff(sess.ID, pn, "simulation finished")
		record(0, nonEmpty(ob, err), err)
	}
	return steps, c.Profile(), nil
}

func nonEmpty(ob model.Obligation, err error) []model.Obligation {
	if err != nil {
		return nil
	}
	return []model.Obligation{ob}
}

func printSimulation(w io.Writer, p model.Profile, steps []SimStep) {
	fmt.Fprintf(w, "Profile %s: max %d, warning %.0f%%, critical %.0f%%, %d tier(s)\n\n",
		p.ID, p.MaxBudget, p.WarningRatio*100, p.CriticalRatio*100, len(p.Tiers))
	for i, st := range steps {
		u := budget.Snapshot(model.Session{Usage: st.Usage}, p)
		fmt.Fprintf(w, "%3d  %+12d  %12d %s %s %5.1f%%\n",
			i+1, st.Delta, st.Usage, usageBar(u.Used, u.Max), zoneBadge(st.Zone), u.Ratio*100)
		for _, ob := range st.Obligations {
			fmt.Fprintln(w, obligationLine(ob))
		}
		if st.Error != "" {
			fmt.Fprintf(w, "  !! %s\n", st.Error)
		}
	}
	if n := len(steps); n > 0 && steps[n-1].State.Terminal() {
		fmt.Fprintf(w, "\nSession ended: %s\n", steps[n-1].State)
	}
}
