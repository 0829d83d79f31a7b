package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/systemd"
)

var unitBinary string

func init() {
	rootCmd.AddCommand(unitCmd)
	unitCmd.Flags().StringVar(&unitBinary, "binary", "", "Path of the budgetwatch executable (default: this binary)")
}

var unitCmd = &cobra.Command{
	Use:   "unit <serve|daemon>",
	Short: "Print a systemd unit for running budgetwatch as a service",
	Long: "Prints a systemd unit that runs budgetwatch serve or daemon with the current --config.\n" +
		"Install it with: budgetwatch unit daemon > /etc/systemd/system/budgetwatch-daemon.service",
	Args: cobra.ExactArgs(1),
	RunE: runUnit,
}

func runUnit(cmd *cobra.Command, args []string) error {
	binary := unitBinary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("cannot locate executable, pass --binary: %w", err)
		}
		binary = exe
	}
	binary, err := filepath.Abs(binary)
	if err != nil {
		return err
	}

	cfgPath, err := filepath.Abs(resolvedConfigPath())
	if err != nil {
		return err
	}
	unit, err := systemd.Unit(args[0], binary, cfgPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", systemd.UnitName(args[0]), unit)
	return nil
}
