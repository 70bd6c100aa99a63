package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bitbucket.org/creachadair/stringset"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gapfill/internal/subsystem"
	"gapfill/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run suggestions when the reaction list or subsystems file changes",
	Long: `Runs 'suggest' once, then again every time one of its input files is
written. Edits to the subsystems file evict the cached index. Stops on Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	addSuggestFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "Quiet period before re-running")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(0)
	defer cancel()

	ref, err := openReference(ctx, suggestDB)
	if err != nil {
		return err
	}
	defer ref.Close()

	cache := subsystem.NewCache()
	engine, req, stop, err := newSuggestion(ctx, cmd, ref, cache)
	if err != nil {
		return err
	}
	defer stop()
	subsystemsPath := subsystemsFile(req)

	var (
		mu   sync.Mutex
		prev stringset.Set
	)
	rerun := func(reason string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Printf("\n%s\n", titleStyle.Render(fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), reason)))
		res, err := suggestOnce(ctx, os.Stdout, ref, engine, req, "text")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		if prev != nil {
			printDelta(os.Stdout, prev, res.Reactions)
		}
		prev = res.Reactions
	}

	return watchInputs(ctx, cache, subsystemsPath, rerun)
}

// printDelta lists reactions gained and lost since the previous run.
func printDelta(w io.Writer, prev, cur stringset.Set) {
	added, removed := cur.Diff(prev), prev.Diff(cur)
	if added.Empty() && removed.Empty() {
		fmt.Fprintln(w, mutedStyle.Render("no change since last run"))
		return
	}
	for _, id := range added.Elements() {
		fmt.Fprintf(w, "+ %s\n", id)
	}
	for _, id := range removed.Elements() {
		fmt.Fprintf(w, "- %s\n", id)
	}
}

// evictOnChange starts a watcher that drops the cached index for path each
// time the file settles after a change.
func evictOnChange(ctx context.Context, cache *subsystem.Cache, path string) (*watch.FileWatcher, error) {
	fw, err := watch.New(func(changed string) {
		cache.Invalidate(changed)
		activeLogger().Debug("Subsystems index evicted", zap.String("path", changed))
	})
	if err != nil {
		return nil, err
	}
	fw.SetDebounce(watchDebounce)
	if err := fw.Add(path); err != nil {
		fw.Stop()
		return nil, err
	}
	fw.Start(ctx)
	return fw, nil
}

// watchInputs runs rerun once, then after each settled change to the
// subsystems file or the reaction/role list, until ctx is done.
func watchInputs(ctx context.Context, cache *subsystem.Cache, subsystemsPath string, rerun func(reason string)) error {
	log := activeLogger()
	if abs, err := filepath.Abs(subsystemsPath); err == nil {
		subsystemsPath = abs
	}

	fw, err := watch.New(func(path string) {
		if path == subsystemsPath {
			cache.Invalidate(path)
		}
		log.Debug("Input changed", zap.String("path", path))
		rerun("changed: " + path)
	})
	if err != nil {
		return err
	}
	fw.SetDebounce(watchDebounce)

	inputs := []string{subsystemsPath}
	for _, p := range []string{suggestReactionsFile, suggestRolesFile} {
		if p != "" {
			inputs = append(inputs, inWorkspace(p))
		}
	}
	for _, p := range inputs {
		if err := fw.Add(p); err != nil {
			fw.Stop()
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}

	rerun("initial run")
	fw.Start(ctx)
	<-ctx.Done()
	fw.Stop()

	st := fw.Stats()
	log.Info("Watch stopped", zap.Int("events", st.Events), zap.Int("runs", st.Notifications))
	return nil
}
