package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is overridden at link time with -ldflags "-X .../internal/cli.version=...".
var version = "0.1.0"

var versionFormat string

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "Output format: text or json")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

type buildInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version,omitempty"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

func readBuildInfo() buildInfo {
	info := buildInfo{Name: "budgetwatch", Version: version}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := readBuildInfo()
	out := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		return printJSON(out, info)
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q (want text or json)", versionFormat)
	}

	fmt.Fprintf(out, "%s %s\n", info.Name, info.Version)
	if info.GoVersion != "" {
		fmt.Fprintf(out, "  go:       %s\n", info.GoVersion)
	}
	if info.Revision != "" {
		rev := info.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		if info.Modified {
			rev += " (modified)"
		}
		fmt.Fprintf(out, "  revision: %s\n", rev)
	}
	return nil
}
