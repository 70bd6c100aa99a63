// Package suggest proposes candidate reactions for gap-filling a metabolic
// reconstruction from subsystem coverage.
//
// A run maps the reactions currently scheduled to run onto functional roles,
// measures how much of each curated subsystem those roles cover, and, for
// every subsystem at or above the threshold, expands its missing roles back
// into reactions. Candidates are limited to the known-reaction universe and
// never include a reaction that is already scheduled.
package suggest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"gapfill/internal/config"
	"gapfill/internal/coverage"
	"gapfill/internal/logging"
	"gapfill/internal/subsystem"
	"gapfill/internal/types"
)

// RoleReactionMapper translates between reactions and functional roles.
// Keys with no counterpart are omitted from the returned mapping.
type RoleReactionMapper interface {
	ReactionsToRoles(ctx context.Context, reactions stringset.Set) (types.Mapping, error)
	RolesToReactions(ctx context.Context, roles stringset.Set) (types.Mapping, error)
}

// IndexSource supplies the subsystem index for a reference file.
type IndexSource interface {
	Index(path string) (*subsystem.Index, error)
}

// FileSource reads the reference file on every call.
type FileSource struct{}

// Index implements IndexSource.
func (FileSource) Index(path string) (*subsystem.Index, error) { return subsystem.Load(path) }

// RoleFilter selects how roles already present in the reaction set are
// excluded before expansion.
type RoleFilter string

const (
	// RoleFilterObserved drops roles the mapper reports for the scheduled reactions.
	RoleFilterObserved RoleFilter = config.RoleFilterObserved
	// RoleFilterReactionIDs drops roles whose name equals a scheduled reaction id.
	// Role names and reaction ids rarely coincide, so in practice this keeps
	// every role of a selected subsystem, covered or not.
	RoleFilterReactionIDs RoleFilter = config.RoleFilterReactionIDs
)

// ParseRoleFilter validates a role filter name. Empty means RoleFilterObserved.
func ParseRoleFilter(s string) (RoleFilter, error) {
	switch RoleFilter(s) {
	case "", RoleFilterObserved:
		return RoleFilterObserved, nil
	case RoleFilterReactionIDs:
		return RoleFilterReactionIDs, nil
	}
	return "", fmt.Errorf("unknown role filter %q (valid: %v)", s, config.ValidRoleFilters)
}

// defaultReferenceFile is resolved from configuration defaults and the
// environment the first time an engine needs it.
var defaultReferenceFile = sync.OnceValue(func() string {
	return config.FromEnv().SubsystemsPath()
})

// Engine runs subsystem-coverage suggestions. It holds no per-run state and
// is safe for concurrent use when its mapper and index source are.
type Engine struct {
	mapper      RoleReactionMapper
	source      IndexSource
	defaultFile string
	filter      RoleFilter
	logger      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostic logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIndexSource replaces the default FileSource, e.g. with a *subsystem.Cache.
func WithIndexSource(src IndexSource) Option {
	return func(e *Engine) {
		if src != nil {
			e.source = src
		}
	}
}

// WithDefaultReferenceFile sets the file used when a request names none.
func WithDefaultReferenceFile(path string) Option {
	return func(e *Engine) { e.defaultFile = path }
}

// WithRoleFilter sets the default role filter.
func WithRoleFilter(f RoleFilter) Option {
	return func(e *Engine) { e.filter = f }
}

// New returns an engine that uses mapper for role/reaction translation.
func New(mapper RoleReactionMapper, opts ...Option) *Engine {
	e := &Engine{
		mapper: mapper,
		source: FileSource{},
		filter: RoleFilterObserved,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request is one suggestion run. The sets are read, never retained or modified.
type Request struct {
	// Known is the universe of reactions a suggestion may come from.
	Known stringset.Set
	// Selected is reactions2run, the reactions already scheduled.
	Selected stringset.Set
	// ReferenceFile is the subsystem file; empty uses the engine default.
	ReferenceFile string
	// Threshold is the minimum coverage fraction, inclusive.
	Threshold float64
	// Verbose raises stage diagnostics from debug to info.
	Verbose bool
	// RoleFilter overrides the engine's filter when set.
	RoleFilter RoleFilter
}

// Result carries the suggested reactions and the intermediate sets that
// produced them.
type Result struct {
	RunID         string
	ReferenceFile string
	// IndexErr is set when the reference file could not be read. The run
	// then reports no suggestions.
	IndexErr error

	Coverage     *coverage.Report
	Subsystems   []string
	MissingRoles stringset.Set
	Candidates   stringset.Set
	Reactions    stringset.Set
}

func emptyResult(runID, path string) *Result {
	return &Result{
		RunID:         runID,
		ReferenceFile: path,
		Coverage:      coverage.Evaluate(nil, nil),
		MissingRoles:  stringset.New(),
		Candidates:    stringset.New(),
		Reactions:     stringset.New(),
	}
}

// Suggest returns only the suggested reactions of Run.
func (e *Engine) Suggest(ctx context.Context, req Request) (stringset.Set, error) {
	res, err := e.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Reactions, nil
}

// Run executes one suggestion. An unreadable reference file is not an error:
// it is reported on the logger and yields an empty result. Mapper failures and
// context cancellation are returned.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	path := req.ReferenceFile
	if path == "" {
		path = e.defaultFile
	}
	if path == "" {
		path = defaultReferenceFile()
	}
	filter := req.RoleFilter
	if filter == "" {
		filter = e.filter
	}

	rl := logging.WithRunID(logging.CategorySuggest, runID).
		WithField("reference", path).
		WithField("threshold", req.Threshold)
	timer := logging.StartTimer(logging.CategorySuggest, "Run")
	defer timer.Stop()

	log := e.logger.With(zap.String("run_id", runID))
	level := zapcore.DebugLevel
	if req.Verbose {
		level = zapcore.InfoLevel
	}

	// Index load and reactions -> roles are independent.
	var (
		idx    *subsystem.Index
		idxErr error
		reacts types.Mapping
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idx, idxErr = e.source.Index(path)
		return nil
	})
	g.Go(func() error {
		var err error
		reacts, err = e.mapper.ReactionsToRoles(gctx, req.Selected)
		return err
	})
	mapErr := g.Wait()

	if idxErr != nil {
		wd, _ := os.Getwd()
		log.Warn("subsystems file unavailable; no suggestions",
			zap.String("path", path),
			zap.String("cwd", wd),
			zap.Error(idxErr))
		rl.Warn("reference unavailable: %v", idxErr)
		res := emptyResult(runID, path)
		res.IndexErr = idxErr
		return res, nil
	}
	if mapErr != nil {
		return nil, fmt.Errorf("map reactions to roles: %w", mapErr)
	}

	report := coverage.Evaluate(idx, reacts)
	selected := report.Select(req.Threshold)
	if ce := log.Check(level, "subsystem coverage"); ce != nil {
		for _, entry := range report.Entries() {
			log.Check(level, "subsystem").Write(
				zap.String("subsystem", entry.Subsystem),
				zap.Float64("fraction", entry.Fraction),
				zap.Int("present", entry.Present),
				zap.Int("total", entry.Total),
				zap.Strings("reactions", report.Contributors[entry.Subsystem].Elements()),
				zap.Strings("roles", report.Present[entry.Subsystem].Elements()),
			)
		}
		ce.Write(zap.Int("touched", report.Len()), zap.Int("selected", len(selected)))
	}

	var present stringset.Set
	switch filter {
	case RoleFilterReactionIDs:
		present = req.Selected
	default:
		present = reacts.Flatten()
	}
	missing := stringset.New()
	for _, s := range selected {
		for role := range idx.Roles(s) {
			if !present.Contains(role) {
				missing[role] = struct{}{}
			}
		}
	}
	log.Check(level, "missing roles").Write(zap.Int("roles", missing.Len()), zap.String("filter", string(filter)))
	rl.Debug("%d of %d touched subsystems selected; %d missing roles (%s filter)",
		len(selected), report.Len(), missing.Len(), filter)

	candidates := stringset.New()
	if missing.Len() > 0 {
		expanded, err := e.mapper.RolesToReactions(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("map roles to reactions: %w", err)
		}
		candidates = expanded.Flatten()
		log.Check(level, "expanded roles").Write(zap.Int("roles_with_reactions", len(expanded)), zap.Int("reactions", candidates.Len()))
	}

	reactions := stringset.New()
	for r := range candidates {
		if req.Known.Contains(r) && !req.Selected.Contains(r) {
			reactions[r] = struct{}{}
		}
	}
	log.Check(level, "suggested reactions").Write(zap.Int("candidates", candidates.Len()), zap.Int("suggested", reactions.Len()))

	rl.WithField("subsystems", len(selected)).
		WithField("missing_roles", missing.Len()).
		Info("suggested %d reactions", reactions.Len())

	return &Result{
		RunID:         runID,
		ReferenceFile: path,
		Coverage:      report,
		Subsystems:    selected,
		MissingRoles:  missing,
		Candidates:    candidates,
		Reactions:     reactions,
	}, nil
}

// SuggestReactionsFromSubsystems is the one-call form of Engine.Suggest with
// a fresh read of referenceFile. An empty referenceFile uses the configured
// default subsystems file.
func SuggestReactionsFromSubsystems(
	ctx context.Context,
	mapper RoleReactionMapper,
	known, reactions2run stringset.Set,
	referenceFile string,
	threshold float64,
	verbose bool,
	logger *zap.Logger,
) (stringset.Set, error) {
	return New(mapper, WithLogger(logger)).Suggest(ctx, Request{
		Known:         known,
		Selected:      reactions2run,
		ReferenceFile: referenceFile,
		Threshold:     threshold,
		Verbose:       verbose,
	})
}
