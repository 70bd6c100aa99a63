package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gapfill/internal/biochem"
	"gapfill/internal/store"
)

var (
	importDB  string
	importDir string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the biochemistry directory into the SQLite reference store",
	Long: `Reads reactions.tsv, complex_roles.tsv and reaction_complexes.tsv and
replaces the contents of the reference store with them. Later commands use the
store automatically when it exists.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDB, "db", "", "Reference store path (default: config store.database_path)")
	importCmd.Flags().StringVar(&importDir, "biochemistry", "", "Biochemistry directory (default: from config)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()
	c := activeConfig()

	dir := inWorkspace(importDir)
	if dir == "" {
		dir = inWorkspace(c.BiochemistryPath())
	}
	dbPath := inWorkspace(importDB)
	if dbPath == "" {
		dbPath = inWorkspace(c.Store.DatabasePath)
	}

	ref, err := biochem.Load(ctx, dir)
	if err != nil {
		return fmt.Errorf("load biochemistry from %s: %w", dir, err)
	}

	rs, err := store.OpenRefStore(c.Store.Driver, dbPath)
	if err != nil {
		return err
	}
	defer rs.Close()

	importCtx, importCancel := commandContext(c.GetStoreTimeout())
	defer importCancel()
	if err := rs.Import(importCtx, ref, dir); err != nil {
		return fmt.Errorf("import into %s: %w", dbPath, err)
	}

	st, err := rs.Stats(ctx)
	if err != nil {
		return err
	}
	activeLogger().Info("Reference imported", zap.String("db", dbPath), zap.Int("reactions", st.Reactions))

	fmt.Println(titleStyle.Render("Reference store updated"))
	fmt.Printf("  Database:   %s\n", dbPath)
	fmt.Printf("  Source:     %s\n", st.Source)
	fmt.Printf("  Reactions:  %d\n", st.Reactions)
	fmt.Printf("  Complexes:  %d\n", st.Complexes)
	fmt.Printf("  Roles:      %d\n", st.Roles)
	return nil
}
