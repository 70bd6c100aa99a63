package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gapfill/internal/coverage"
	"gapfill/internal/subsystem"
)

var coverageMarkdownOut bool

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show per-subsystem role coverage of a reaction set",
	Long: `Shows, for every subsystem touched by the roles of reactions2run, how many
of its roles are present. Rows below --threshold are hidden.`,
	RunE: runCoverage,
}

func init() {
	coverageCmd.Flags().StringVarP(&suggestReactionsFile, "reactions", "r", "", "File of reaction ids to run")
	coverageCmd.Flags().StringVar(&suggestRolesFile, "roles", "", "File of assigned functional roles")
	coverageCmd.Flags().StringVarP(&suggestSubsystems, "subsystems", "s", "", "Subsystems file (default: from config)")
	coverageCmd.Flags().StringVar(&suggestDB, "db", "", "SQLite reference store")
	coverageCmd.Flags().Float64P("threshold", "t", 0, "Hide subsystems below this coverage, 0-1")
	coverageCmd.Flags().BoolVar(&coverageMarkdownOut, "markdown", false, "Render a markdown report")
}

func runCoverage(cmd *cobra.Command, args []string) error {
	threshold, err := thresholdFlag(cmd, 0)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(timeout)
	defer cancel()

	path := inWorkspace(suggestSubsystems)
	if path == "" {
		path = inWorkspace(activeConfig().SubsystemsPath())
	}
	idx, err := subsystem.Load(path)
	if err != nil {
		return err
	}

	ref, err := openReference(ctx, suggestDB)
	if err != nil {
		return err
	}
	defer ref.Close()

	selected, err := scheduledReactions(ctx, ref, suggestReactionsFile, suggestRolesFile)
	if err != nil {
		return err
	}
	reacts, err := ref.ReactionsToRoles(ctx, selected)
	if err != nil {
		return fmt.Errorf("map reactions to roles: %w", err)
	}
	rep := coverage.Evaluate(idx, reacts)

	if coverageMarkdownOut {
		md := fmt.Sprintf("# Subsystem coverage\n\n%d reactions, %d with roles, %d subsystems touched.\n\n",
			selected.Len(), len(reacts), rep.Len())
		return renderMarkdown(os.Stdout, md+coverageMarkdown(rep, rep.Select(threshold)))
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Subsystem coverage (%s)", idx.Source)))
	if rep.Len() == 0 {
		fmt.Println("No subsystems touched by the reaction set.")
		return nil
	}
	fmt.Println(coverageTable(rep, idx, threshold))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%d of %d touched subsystems at or above %.2f",
		len(rep.Select(threshold)), rep.Len(), threshold)))
	return nil
}
