package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gapfill/internal/subsystem"
)

var (
	subsystemsFileFlag string
	subsystemName      string
	subsystemsList     bool
)

var subsystemsCmd = &cobra.Command{
	Use:   "subsystems",
	Short: "Inspect the subsystems reference file",
	Long: `Prints statistics for the subsystems file. With --subsystem, lists the
roles that define one subsystem; with --list, prints every subsystem name.`,
	RunE: runSubsystems,
}

func init() {
	subsystemsCmd.Flags().StringVarP(&subsystemsFileFlag, "subsystems", "s", "", "Subsystems file (default: from config)")
	subsystemsCmd.Flags().StringVar(&subsystemName, "subsystem", "", "Show the roles of one subsystem")
	subsystemsCmd.Flags().BoolVar(&subsystemsList, "list", false, "List subsystem names")
}

func runSubsystems(cmd *cobra.Command, args []string) error {
	path := inWorkspace(subsystemsFileFlag)
	if path == "" {
		path = inWorkspace(activeConfig().SubsystemsPath())
	}
	idx, err := subsystem.Load(path)
	if err != nil {
		return err
	}

	if subsystemName != "" {
		roles := idx.Roles(subsystemName)
		if roles.Len() == 0 {
			return fmt.Errorf("subsystem %q not found in %s", subsystemName, path)
		}
		fmt.Println(titleStyle.Render(subsystemName))
		if c, ok := idx.Classification(subsystemName); ok {
			fmt.Println(mutedStyle.Render(c.Primary + " / " + c.Secondary))
		}
		for _, r := range roles.Elements() {
			fmt.Printf("  %s\n", r)
		}
		return nil
	}

	if subsystemsList {
		for _, name := range idx.SubsystemNames() {
			fmt.Printf("%s\t%d\n", name, idx.RoleCount(name))
		}
		return nil
	}

	fmt.Println(titleStyle.Render("Subsystems reference"))
	fmt.Printf("  File:            %s\n", idx.Source)
	fmt.Printf("  Subsystems:      %d\n", idx.Len())
	fmt.Printf("  Roles:           %d\n", idx.RoleLen())
	fmt.Printf("  Skipped lines:   %d\n", idx.Skipped)
	return nil
}
