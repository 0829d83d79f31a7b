package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/profile"
	"github.com/ppiankov/budgetwatch/internal/session"
	"github.com/ppiankov/budgetwatch/internal/sink"
)

var (
	configPath   string
	profilesPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to budgetwatch.yaml (default ~/.budgetwatch/budgetwatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&profilesPath, "profiles", "", "Extra profiles YAML merged over configured profiles")
}

var rootCmd = &cobra.Command{
	Use:   "budgetwatch",
	Short: "Resource budget and checkpoint scheduling for long-running agents",
	Long: "Meters a consumable resource per session, classifies usage into zones,\n" +
		"and emits checkpoint obligations at fixed fractions of the budget so work\n" +
		"can be handed to a successor before the resource runs out.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and builds the profile catalog,
// overlaying --profiles when given.
func loadConfig() (*config.Config, *profile.Catalog, string, error) {
	cfg, hash, err := config.LoadConfigWithHash(configPath)
	if err != nil {
		return nil, nil, "", err
	}
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return nil, nil, "", err
	}
	return cfg, catalog, hash, nil
}

func buildCatalog(cfg *config.Config) (*profile.Catalog, error) {
	specs := profile.Merge(profile.Builtins(), cfg.Profiles)
	if profilesPath != "" {
		data, err := os.ReadFile(config.ExpandHome(profilesPath))
		if err != nil {
			return nil, fmt.Errorf("failed to read profiles: %w", err)
		}
		extra, err := profile.Parse(data)
		if err != nil {
			return nil, err
		}
		profile.Merge(specs, extra)
	}
	return profile.NewCatalog(specs)
}

// newManager loads configuration and opens the configured sinks. The caller
// closes the returned sink, which may be nil.
func newManager() (*session.Manager, sink.Sink, *config.Config, error) {
	cfg, catalog, hash, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := cfg.BuildSink()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open sinks: %w", err)
	}
	fmt.Fprintf(os.Stderr, "budgetwatch: config %s, %d profile(s) (%s)\n", hash, catalog.Len(), catalog.Hash())
	return session.NewManager(catalog, s), s, cfg, nil
}

// closeSink closes s when it is set and reports failures on stderr.
func closeSink(s sink.Sink) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "budgetwatch: close sinks: %v\n", err)
	}
}
