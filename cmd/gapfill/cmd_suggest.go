package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gapfill/internal/config"
	"gapfill/internal/subsystem"
	"gapfill/internal/suggest"
)

var (
	suggestReactionsFile string
	suggestRolesFile     string
	suggestSubsystems    string
	suggestDB            string
	suggestRoleFilter    string
	suggestOutput        string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest reactions that complete partially covered subsystems",
	Long: `Suggests candidate reactions from subsystem coverage.

reactions2run comes from --reactions (one reaction id per line) or is derived
from --roles (one assigned functional role per line). Subsystems whose coverage
is at least --threshold contribute their missing roles.

Examples:
  gapfill suggest --reactions reactions2run.txt
  gapfill suggest --roles assigned_functions.txt --threshold 0.5 --output json`,
	RunE: runSuggest,
}

func init() {
	addSuggestFlags(suggestCmd)
	suggestCmd.Flags().StringVarP(&suggestOutput, "output", "o", "text", "Output format: text, json, markdown")
}

// addSuggestFlags registers the flags shared by suggest and watch.
func addSuggestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&suggestReactionsFile, "reactions", "r", "", "File of reaction ids to run")
	cmd.Flags().StringVar(&suggestRolesFile, "roles", "", "File of assigned functional roles")
	cmd.Flags().StringVarP(&suggestSubsystems, "subsystems", "s", "", "Subsystems file (default: from config)")
	cmd.Flags().StringVar(&suggestDB, "db", "", "SQLite reference store (default: config store.database_path if present)")
	cmd.Flags().Float64P("threshold", "t", 0, "Minimum subsystem coverage, 0-1 (default: from config)")
	cmd.Flags().StringVar(&suggestRoleFilter, "role-filter", "", "How present roles are excluded: observed, reaction_ids (default: from config)")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(timeout)
	defer cancel()

	ref, err := openReference(ctx, suggestDB)
	if err != nil {
		return err
	}
	defer ref.Close()

	engine, req, stop, err := newSuggestion(ctx, cmd, ref, nil)
	if err != nil {
		return err
	}
	defer stop()
	_, err = suggestOnce(ctx, os.Stdout, ref, engine, req, suggestOutput)
	return err
}

// thresholdFlag returns --threshold when it was given on cmd, else fallback.
// An explicit value must lie within [0, 1].
func thresholdFlag(cmd *cobra.Command, fallback float64) (float64, error) {
	f := cmd.Flags().Lookup("threshold")
	if f == nil || !f.Changed {
		return fallback, nil
	}
	t, err := cmd.Flags().GetFloat64("threshold")
	if err != nil {
		return 0, err
	}
	if t < 0 || t > 1 {
		return 0, fmt.Errorf("threshold %v out of range [0, 1]", t)
	}
	return t, nil
}

// indexSource returns the configured subsystem index cache, or nil when
// caching is disabled. With cache.watch set, a file watcher evicts the entry
// for path on change; the returned stop func ends it.
func indexSource(ctx context.Context, c *config.Config, path string) (*subsystem.Cache, func()) {
	if !c.Cache.Enabled {
		return nil, func() {}
	}
	cache := subsystem.NewCache()
	if !c.Cache.Watch {
		return cache, func() {}
	}
	fw, err := evictOnChange(ctx, cache, path)
	if err != nil {
		activeLogger().Warn("Subsystems file not watched", zap.String("path", path), zap.Error(err))
		return cache, func() {}
	}
	return cache, fw.Stop
}

// newSuggestion builds the engine and the request template from flags and
// config. Known and Selected are filled per run. stop releases the cache
// watcher, if any.
func newSuggestion(ctx context.Context, cmd *cobra.Command, ref reference, src suggest.IndexSource) (engine *suggest.Engine, req suggest.Request, stop func(), err error) {
	c := activeConfig()
	stop = func() {}

	filterName := suggestRoleFilter
	if filterName == "" {
		filterName = c.Suggest.RoleFilter
	}
	filter, err := suggest.ParseRoleFilter(filterName)
	if err != nil {
		return nil, req, stop, err
	}

	threshold, err := thresholdFlag(cmd, c.Suggest.Threshold)
	if err != nil {
		return nil, req, stop, err
	}

	req = suggest.Request{
		ReferenceFile: inWorkspace(suggestSubsystems),
		Threshold:     threshold,
		Verbose:       verbose || c.Suggest.Verbose,
	}

	if src == nil {
		if cache, stopWatch := indexSource(ctx, c, subsystemsFile(req)); cache != nil {
			src, stop = cache, stopWatch
		}
	}
	opts := []suggest.Option{
		suggest.WithLogger(activeLogger()),
		suggest.WithDefaultReferenceFile(inWorkspace(c.SubsystemsPath())),
		suggest.WithRoleFilter(filter),
	}
	if src != nil {
		opts = append(opts, suggest.WithIndexSource(src))
	}
	return suggest.New(ref, opts...), req, stop, nil
}

// subsystemsFile returns the subsystems path a request will read.
func subsystemsFile(req suggest.Request) string {
	if req.ReferenceFile != "" {
		return req.ReferenceFile
	}
	return inWorkspace(activeConfig().SubsystemsPath())
}

// suggestOnce resolves reactions2run and the known universe, runs the engine
// and writes the result.
func suggestOnce(ctx context.Context, w io.Writer, ref reference, engine *suggest.Engine, req suggest.Request, format string) (*suggest.Result, error) {
	selected, err := scheduledReactions(ctx, ref, suggestReactionsFile, suggestRolesFile)
	if err != nil {
		return nil, err
	}
	known, err := ref.KnownReactions(ctx)
	if err != nil {
		return nil, err
	}
	req.Known = known
	req.Selected = selected

	res, err := engine.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.IndexErr != nil {
		fmt.Fprintf(os.Stderr, "warning: subsystems file %s unavailable: %v\n", res.ReferenceFile, res.IndexErr)
	}
	activeLogger().Info("Suggestion complete",
		zap.String("run_id", res.RunID),
		zap.Int("reactions2run", selected.Len()),
		zap.Int("subsystems", len(res.Subsystems)),
		zap.Int("suggested", res.Reactions.Len()))

	return res, writeResult(ctx, w, ref, res, format)
}
