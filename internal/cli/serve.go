package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/server"
	"github.com/ppiankov/budgetwatch/internal/session"
)

var serveListen string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "gRPC listen address (default from config, 127.0.0.1:7420)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC budget server",
	Long: "Runs budgetwatch as a central budget server over gRPC.\n" +
		"Agents start sessions, report usage and receive checkpoint obligations.\n" +
		"Profile changes in the config file are picked up for new sessions.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr, s, cfg, err := newManager()
	if err != nil {
		return err
	}
	defer closeSink(s)

	addr := cfg.Server.Listen
	if serveListen != "" {
		addr = serveListen
	}

	srv := server.New(mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload profiles for sessions started after the change.
	watchPaths := []string{resolvedConfigPath(), config.ExpandHome(profilesPath)}
	reloader, err := server.NewReloader(reloadCatalog(mgr), watchPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}
	if reloader != nil {
		go reloader.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down budget server...")
		cancel()
		srv.GracefulStop()
	}()

	fmt.Fprintf(os.Stderr, "budgetwatch server listening on %s\n", addr)
	if reloader != nil && len(reloader.Paths()) > 0 {
		fmt.Fprintf(os.Stderr, "Watching: %v (hot-reload enabled)\n", reloader.Paths())
	}
	fmt.Fprintln(os.Stderr)

	return srv.Serve(addr)
}

func resolvedConfigPath() string {
	if configPath != "" {
		return config.ExpandHome(configPath)
	}
	return config.DefaultPath()
}

// reloadCatalog rebuilds the catalog from disk and swaps it into mgr.
// An invalid file leaves the current catalog in place.
func reloadCatalog(mgr *session.Manager) func() error {
	return func() error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		catalog, err := buildCatalog(cfg)
		if err != nil {
			return err
		}
		mgr.SwapCatalog(catalog)
		fmt.Fprintf(os.Stderr, "budgetwatch: profiles reloaded (%s)\n", catalog.Hash())
		return nil
	}
}
