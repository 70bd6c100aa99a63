package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/creachadair/stringset"
	"go.uber.org/zap"

	"gapfill/internal/biochem"
	"gapfill/internal/store"
	"gapfill/internal/suggest"
	"gapfill/internal/types"
)

// reference is the reaction universe plus role translation, backed either by
// the flat biochemistry files or by the SQLite store.
type reference interface {
	suggest.RoleReactionMapper
	KnownReactions(ctx context.Context) (stringset.Set, error)
	Reaction(ctx context.Context, id string) (*types.Reaction, error)
	Close() error
	Describe() string
}

// memoryReference adapts biochem.Database.
type memoryReference struct {
	*biochem.Database
	dir string
}

func (m memoryReference) KnownReactions(context.Context) (stringset.Set, error) {
	return m.Database.KnownReactions(), nil
}

func (m memoryReference) Reaction(_ context.Context, id string) (*types.Reaction, error) {
	r, ok := m.Database.Reaction(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrReactionNotFound, id)
	}
	return r, nil
}

func (m memoryReference) Close() error     { return nil }
func (m memoryReference) Describe() string { return "biochemistry files " + m.dir }

type storeReference struct {
	*store.RefStore
}

func (s storeReference) Describe() string { return "reference store " + s.Path() }

// openReference prefers the SQLite store when dbFlag is set or the configured
// database exists, and otherwise loads the biochemistry directory.
func openReference(ctx context.Context, dbFlag string) (reference, error) {
	c := activeConfig()
	log := activeLogger()

	dbPath := inWorkspace(dbFlag)
	if dbPath == "" {
		if p := inWorkspace(c.Store.DatabasePath); p != "" {
			if _, err := os.Stat(p); err == nil {
				dbPath = p
			}
		}
	}
	if dbPath != "" {
		rs, err := store.OpenRefStore(c.Store.Driver, dbPath)
		if err != nil {
			return nil, err
		}
		log.Debug("Using reference store", zap.String("path", dbPath), zap.String("driver", c.Store.Driver))
		return storeReference{rs}, nil
	}

	dir := inWorkspace(c.BiochemistryPath())
	db, err := biochem.Load(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("load biochemistry from %s: %w", dir, err)
	}
	log.Debug("Using biochemistry files", zap.String("dir", dir))
	return memoryReference{Database: db, dir: dir}, nil
}

// scheduledReactions builds reactions2run from a reaction list, or from a list
// of assigned roles expanded through the reference.
func scheduledReactions(ctx context.Context, ref reference, reactionsFile, rolesFile string) (stringset.Set, error) {
	switch {
	case reactionsFile != "":
		return biochem.ReadList(inWorkspace(reactionsFile))
	case rolesFile != "":
		roles, err := biochem.ReadList(inWorkspace(rolesFile))
		if err != nil {
			return nil, err
		}
		byRole, err := ref.RolesToReactions(ctx, roles)
		if err != nil {
			return nil, fmt.Errorf("map roles to reactions: %w", err)
		}
		activeLogger().Debug("Expanded assigned roles",
			zap.Int("roles", roles.Len()),
			zap.Int("roles_with_reactions", len(byRole)))
		return byRole.Flatten(), nil
	}
	return nil, fmt.Errorf("one of --reactions or --roles is required")
}
