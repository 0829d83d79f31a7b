package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/config"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter budgetwatch.yaml",
	Long:  "Writes a commented configuration to --config or ~/.budgetwatch/budgetwatch.yaml.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	if err := config.WriteTemplate(path, initForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	return nil
}
