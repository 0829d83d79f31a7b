package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/budgetwatch/internal/config"
	"github.com/ppiankov/budgetwatch/internal/profile"
)

var (
	profileInitOutput string
	profileInitForce  bool
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileCheckCmd)
	profileCmd.AddCommand(profileInitCmd)

	profileInitCmd.Flags().StringVarP(&profileInitOutput, "output", "o", "", "Write the template to a file instead of stdout")
	profileInitCmd.Flags().BoolVar(&profileInitForce, "force", false, "Overwrite an existing output file")
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage budget profiles",
	Long:  "List, validate, and scaffold resource budget profiles.",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available budget profiles",
	RunE:  runProfileList,
}

var profileCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a profiles YAML file",
	Long:  "Parses the file and validates every profile in it. Any invalid profile fails the check.",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileCheck,
}

var profileInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Generate a starter profile template",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileInit,
}

func runProfileList(cmd *cobra.Command, args []string) error {
	_, catalog, _, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Available profiles:")
	for _, id := range catalog.IDs() {
		p, err := catalog.Resolve(id)
		if err != nil {
			return err
		}
		tiers := make([]string, 0, len(p.Tiers))
		for _, t := range p.Tiers {
			tiers = append(tiers, fmt.Sprintf("%s@%g", t.Name, t.Ratio))
		}
		fmt.Fprintf(out, "  %-15s max %-10d warn %-5g crit %-5g %s\n",
			id, p.MaxBudget, p.WarningRatio, p.CriticalRatio, strings.Join(tiers, " "))
	}
	fmt.Fprintf(out, "\nCatalog hash: %s\n", catalog.Hash())
	return nil
}

func runProfileCheck(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(config.ExpandHome(args[0]))
	if err != nil {
		return fmt.Errorf("failed to read profiles: %w", err)
	}
	specs, err := profile.Parse(data)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("%s: no profiles found", args[0])
	}
	catalog, err := profile.NewCatalog(specs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d profile(s) OK (%s)\n", args[0], catalog.Len(), catalog.Hash())
	return nil
}

func runProfileInit(cmd *cobra.Command, args []string) error {
	tmpl := profile.InitProfile(args[0])
	if profileInitOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), tmpl)
		return nil
	}
	path := config.ExpandHome(profileInitOutput)
	if _, err := os.Stat(path); err == nil && !profileInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(tmpl), 0600); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Profile template written to %s\n", path)
	return nil
}
