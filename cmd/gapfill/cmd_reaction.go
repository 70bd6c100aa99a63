package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gapfill/internal/store"
)

var (
	reactionIDs []string
	reactionDB  string
)

var reactionCmd = &cobra.Command{
	Use:   "reaction",
	Short: "Print reactions as id: equation",
	Long: `Looks up reactions in the reference.

Example:
  gapfill reaction -r rxn00148 -r rxn00459`,
	RunE: runReaction,
}

func init() {
	reactionCmd.Flags().StringSliceVarP(&reactionIDs, "reaction", "r", nil, "Reaction id (repeatable)")
	reactionCmd.Flags().StringVar(&reactionDB, "db", "", "SQLite reference store")
	reactionCmd.MarkFlagRequired("reaction")
}

func runReaction(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	ref, err := openReference(ctx, reactionDB)
	if err != nil {
		return err
	}
	defer ref.Close()

	for _, id := range reactionIDs {
		r, err := ref.Reaction(ctx, id)
		if errors.Is(err, store.ErrReactionNotFound) {
			fmt.Printf("%s: not found\n", id)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Println(r.String())
	}
	return nil
}
