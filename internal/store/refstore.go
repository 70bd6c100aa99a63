// Package store persists the biochemistry reference in SQLite so repeated
// suggestion runs do not re-parse the flat files.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bitbucket.org/creachadair/stringset"
	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go driver, registered as "sqlite"

	"gapfill/internal/biochem"
	"gapfill/internal/logging"
	"gapfill/internal/types"
)

// DefaultDriver is the pure Go SQLite driver.
const DefaultDriver = "sqlite"

// maxParams bounds the number of placeholders per IN (...) query.
const maxParams = 500

// ErrReactionNotFound is returned by Reaction for unknown ids.
var ErrReactionNotFound = errors.New("reaction not found")

// RefStore is the SQLite-backed reference. It answers the same questions as
// biochem.Database and can stand in for it as the suggestion mapper.
type RefStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewRefStore opens (creating if needed) the reference database at path
// using DefaultDriver.
func NewRefStore(path string) (*RefStore, error) {
	return OpenRefStore(DefaultDriver, path)
}

// OpenRefStore opens the reference database with the named database/sql driver.
func OpenRefStore(driver, path string) (*RefStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenRefStore")
	defer timer.Stop()

	logging.Store("Opening RefStore at %s (driver=%s)", path, driver)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &RefStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("RefStore schema ready")
	return s, nil
}

func (s *RefStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reactions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		equation TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL DEFAULT '=',
		is_transport INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS complex_roles (
		complex TEXT NOT NULL,
		role TEXT NOT NULL,
		PRIMARY KEY(complex, role)
	);
	CREATE INDEX IF NOT EXISTS idx_complex_roles_role ON complex_roles(role);

	CREATE TABLE IF NOT EXISTS reaction_complexes (
		reaction TEXT NOT NULL,
		complex TEXT NOT NULL,
		PRIMARY KEY(reaction, complex)
	);
	CREATE INDEX IF NOT EXISTS idx_reaction_complexes_complex ON reaction_complexes(complex);

	CREATE TABLE IF NOT EXISTS import_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *RefStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database path.
func (s *RefStore) Path() string { return s.dbPath }

// Import replaces the stored reference with the contents of ref.
// The replacement happens in one transaction.
func (s *RefStore) Import(ctx context.Context, ref *biochem.Database, source string) error {
	timer := logging.StartTimer(logging.CategoryStore, "Import")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"reaction_complexes", "complex_roles", "reactions", "import_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	rxStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO reactions (id, name, equation, direction, is_transport) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer rxStmt.Close()
	reactions := ref.AllReactions()
	for _, r := range reactions {
		transport := 0
		if r.IsTransport {
			transport = 1
		}
		if _, err := rxStmt.ExecContext(ctx, r.ID, r.Name, r.Equation, string(r.Direction), transport); err != nil {
			return fmt.Errorf("insert reaction %s: %w", r.ID, err)
		}
	}

	if err := insertPairs(ctx, tx, "INSERT INTO complex_roles (complex, role) VALUES (?, ?)", ref.ComplexRoles()); err != nil {
		return fmt.Errorf("insert complex roles: %w", err)
	}
	if err := insertPairs(ctx, tx, "INSERT INTO reaction_complexes (reaction, complex) VALUES (?, ?)", ref.ReactionComplexes()); err != nil {
		return fmt.Errorf("insert reaction complexes: %w", err)
	}

	meta := map[string]string{
		"source":      source,
		"imported_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, "INSERT INTO import_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("write import metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	logging.Store("Imported %d reactions from %s", len(reactions), source)
	return nil
}

func insertPairs(ctx context.Context, tx *sql.Tx, query string, pairs []biochem.Pair) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, p.Left, p.Right); err != nil {
			return err
		}
	}
	return nil
}

// KnownReactions returns every stored reaction id.
func (s *RefStore) KnownReactions(ctx context.Context) (stringset.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM reactions")
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	out := stringset.New()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out.Add(id)
	}
	return out, rows.Err()
}

// Reaction returns one reaction. Unknown ids yield ErrReactionNotFound.
func (s *RefStore) Reaction(ctx context.Context, id string) (*types.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		r         types.Reaction
		direction string
		transport int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, equation, direction, is_transport FROM reactions WHERE id = ?", id,
	).Scan(&r.ID, &r.Name, &r.Equation, &direction, &transport)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReactionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query reaction %s: %w", id, err)
	}
	r.Direction = types.Direction(direction)
	r.IsTransport = transport != 0
	return &r, nil
}

// ReactionsToRoles maps each reaction to the roles of its complexes.
// Reactions with no roles are omitted.
func (s *RefStore) ReactionsToRoles(ctx context.Context, reactions stringset.Set) (types.Mapping, error) {
	return s.relate(ctx, reactions, `
		SELECT rc.reaction, cr.role
		FROM reaction_complexes rc
		JOIN complex_roles cr ON cr.complex = rc.complex
		WHERE rc.reaction IN (%s)`)
}

// RolesToReactions maps each role to the reactions its complexes catalyse.
// Roles with no reactions are omitted.
func (s *RefStore) RolesToReactions(ctx context.Context, roles stringset.Set) (types.Mapping, error) {
	return s.relate(ctx, roles, `
		SELECT cr.role, rc.reaction
		FROM complex_roles cr
		JOIN reaction_complexes rc ON rc.complex = cr.complex
		WHERE cr.role IN (%s)`)
}

// relate runs query over keys in chunks of maxParams. The query must select
// (key, value) and contain one %s for the placeholder list.
func (s *RefStore) relate(ctx context.Context, keys stringset.Set, query string) (types.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(types.Mapping)
	ids := keys.Elements()
	for start := 0; start < len(ids); start += maxParams {
		end := start + maxParams
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(query, placeholders), args...)
		if err != nil {
			return nil, fmt.Errorf("query relation: %w", err)
		}
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				rows.Close()
				return nil, err
			}
			out.Put(k, v)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	logging.StoreDebug("relate: %d keys -> %d mapped", len(ids), len(out))
	return out, nil
}

// Stats describes the stored reference.
type Stats struct {
	Reactions  int
	Complexes  int
	Roles      int
	Source     string
	ImportedAt string
}

// Stats returns row counts and import metadata.
func (s *RefStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM reactions", &st.Reactions},
		{"SELECT COUNT(*) FROM (SELECT complex FROM complex_roles UNION SELECT complex FROM reaction_complexes)", &st.Complexes},
		{"SELECT COUNT(DISTINCT role) FROM complex_roles", &st.Roles},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return st, fmt.Errorf("count: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM import_meta")
	if err != nil {
		return st, fmt.Errorf("query import metadata: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return st, err
		}
		switch k {
		case "source":
			st.Source = v
		case "imported_at":
			st.ImportedAt = v
		}
	}
	return st, rows.Err()
}
