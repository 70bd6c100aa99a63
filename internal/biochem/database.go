// Package biochem holds the known-reaction universe and the role/complex/
// reaction relations used to translate between reactions and functional roles.
package biochem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"bitbucket.org/creachadair/stringset"
	"golang.org/x/sync/errgroup"

	"gapfill/internal/logging"
	"gapfill/internal/types"
)

// Database is an in-memory reference. It is immutable after NewDatabase and
// safe for concurrent readers.
type Database struct {
	reactions map[string]*types.Reaction

	complexRoles      types.Mapping // complex -> roles
	roleComplexes     types.Mapping // role -> complexes
	reactionComplexes types.Mapping // reaction -> complexes
	complexReactions  types.Mapping // complex -> reactions
}

// NewDatabase indexes the given relations in both directions.
func NewDatabase(reactions map[string]*types.Reaction, complexRoles, reactionComplexes []Pair) *Database {
	db := &Database{
		reactions:         make(map[string]*types.Reaction, len(reactions)),
		complexRoles:      make(types.Mapping),
		roleComplexes:     make(types.Mapping),
		reactionComplexes: make(types.Mapping),
		complexReactions:  make(types.Mapping),
	}
	for id, r := range reactions {
		cp := *r
		db.reactions[id] = &cp
	}
	for _, p := range complexRoles {
		db.complexRoles.Put(p.Left, p.Right)
		db.roleComplexes.Put(p.Right, p.Left)
	}
	for _, p := range reactionComplexes {
		db.reactionComplexes.Put(p.Left, p.Right)
		db.complexReactions.Put(p.Right, p.Left)
	}
	return db
}

// Load reads the three reference tables from dir in parallel.
func Load(ctx context.Context, dir string) (*Database, error) {
	timer := logging.StartTimer(logging.CategoryBiochem, "Load")
	defer timer.Stop()

	var (
		reactions         map[string]*types.Reaction
		complexRoles      []Pair
		reactionComplexes []Pair
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return readFile(ctx, filepath.Join(dir, ReactionsFile), func(f *os.File) (err error) {
			reactions, err = ParseReactions(f)
			return err
		})
	})
	g.Go(func() error {
		return readFile(ctx, filepath.Join(dir, ComplexRolesFile), func(f *os.File) (err error) {
			complexRoles, err = ParsePairs(f, "complex", "role")
			return err
		})
	})
	g.Go(func() error {
		return readFile(ctx, filepath.Join(dir, ReactionComplexesFile), func(f *os.File) (err error) {
			reactionComplexes, err = ParsePairs(f, "reaction", "complex")
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	db := NewDatabase(reactions, complexRoles, reactionComplexes)
	logging.Biochem("loaded %s: %d reactions, %d complexes, %d roles",
		dir, len(db.reactions), len(db.complexRoles), len(db.roleComplexes))
	return db, nil
}

// readFile opens path and hands it to parse.
func readFile(ctx context.Context, path string, parse func(*os.File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if err := parse(f); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// KnownReactions returns the ids of every reaction in the universe.
func (db *Database) KnownReactions() stringset.Set {
	out := stringset.NewSize(len(db.reactions))
	for id := range db.reactions {
		out.Add(id)
	}
	return out
}

// Reaction returns a copy of the reaction with id.
func (db *Database) Reaction(id string) (*types.Reaction, bool) {
	r, ok := db.reactions[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// Reactions returns copies of the requested reactions that exist, sorted by id.
func (db *Database) Reactions(ids stringset.Set) []*types.Reaction {
	var out []*types.Reaction
	for _, id := range ids.Elements() {
		if r, ok := db.Reaction(id); ok {
			out = append(out, r)
		}
	}
	return out
}

// ReactionsToRoles maps each reaction to the roles of its complexes.
// Reactions with no roles are omitted.
func (db *Database) ReactionsToRoles(ctx context.Context, reactions stringset.Set) (types.Mapping, error) {
	return translate(ctx, reactions, db.reactionComplexes, db.complexRoles)
}

// RolesToReactions maps each role to the reactions catalysed by complexes
// containing it. Roles with no reactions are omitted.
func (db *Database) RolesToReactions(ctx context.Context, roles stringset.Set) (types.Mapping, error) {
	return translate(ctx, roles, db.roleComplexes, db.complexReactions)
}

// translate walks keys -> complexes -> values.
func translate(ctx context.Context, keys stringset.Set, toComplex, fromComplex types.Mapping) (types.Mapping, error) {
	out := make(types.Mapping)
	for key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for cx := range toComplex[key] {
			for v := range fromComplex[cx] {
				out.Put(key, v)
			}
		}
	}
	return out, nil
}

// Stats summarises the database contents.
type Stats struct {
	Reactions int
	Complexes int
	Roles     int
}

// Stats returns table sizes.
func (db *Database) Stats() Stats {
	cx := db.complexRoles.Keys()
	cx.Update(db.complexReactions.Keys())
	return Stats{
		Reactions: len(db.reactions),
		Complexes: cx.Len(),
		Roles:     len(db.roleComplexes),
	}
}

// ComplexRoles returns the complex -> role relation as sorted pairs.
func (db *Database) ComplexRoles() []Pair { return pairs(db.complexRoles) }

// ReactionComplexes returns the reaction -> complex relation as sorted pairs.
func (db *Database) ReactionComplexes() []Pair { return pairs(db.reactionComplexes) }

// AllReactions returns copies of every reaction, sorted by id.
func (db *Database) AllReactions() []*types.Reaction {
	return db.Reactions(db.KnownReactions())
}

func pairs(m types.Mapping) []Pair {
	var out []Pair
	for _, k := range m.Keys().Elements() {
		for _, v := range m[k].Elements() {
			out = append(out, Pair{Left: k, Right: v})
		}
	}
	return out
}
