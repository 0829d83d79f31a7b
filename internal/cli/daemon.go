package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/daemon"
)

var (
	daemonInbox   string
	daemonResults string
	daemonState   string
	daemonWorkers int
	daemonPoll    bool
	daemonPollInt time.Duration
)

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringVar(&daemonInbox, "inbox", "", "Inbox directory for request files (default from config)")
	daemonCmd.Flags().StringVar(&daemonResults, "results", "", "Directory for result files (default from config)")
	daemonCmd.Flags().StringVar(&daemonState, "state", "", "State directory (default from config)")
	daemonCmd.Flags().IntVar(&daemonWorkers, "workers", 0, "Concurrent request files (default from config)")
	daemonCmd.Flags().BoolVar(&daemonPoll, "poll", false, "Poll the inbox instead of using filesystem events")
	daemonCmd.Flags().DurationVar(&daemonPollInt, "poll-interval", 0, "Polling interval (default from config)")
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Apply usage reports dropped into an inbox directory",
	Long: "Watches an inbox for JSON request files (op: start|report|notes|complete|handoff),\n" +
		"applies them to in-process sessions and writes one result file per request file.",
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	mgr, s, cfg, err := newManager()
	if err != nil {
		return err
	}
	defer closeSink(s)

	dcfg := daemon.Config{
		Dirs: daemon.DirConfig{
			Inbox:   pick(daemonInbox, cfg.Daemon.Inbox),
			Results: pick(daemonResults, cfg.Daemon.Results),
			State:   pick(daemonState, cfg.Daemon.State),
		},
		Workers:      cfg.Daemon.Workers,
		PollMode:     daemonPoll,
		PollInterval: cfg.Daemon.PollInterval,
	}
	if daemonWorkers > 0 {
		dcfg.Workers = daemonWorkers
	}
	if daemonPollInt > 0 {
		dcfg.PollInterval = daemonPollInt
	}

	d, err := daemon.New(dcfg, mgr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down daemon...")
		cancel()
	}()

	return d.Run(ctx)
}

// pick returns flag when set, otherwise the configured value.
func pick(flag, configured string) string {
	if flag != "" {
		return config.ExpandHome(flag)
	}
	return configured
}
