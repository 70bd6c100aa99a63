// Package subsystem loads the curated role/subsystem reference and holds it
// as a bidirectional index.
//
// The reference is a tab-separated file, one role/subsystem pair per line:
//
//	<role>\t<subsystem>\t<classification 1>\t<classification 2>
//
// Lines starting with '#' are comments. Only the first two columns drive the
// index; the classification columns are kept for display.
package subsystem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"bitbucket.org/creachadair/stringset"

	"gapfill/internal/logging"
)

// Classification is the two-level functional category of a subsystem.
type Classification struct {
	Primary   string
	Secondary string
}

// Index is the role <-> subsystem mapping built from one reference file.
// An Index is immutable once constructed and safe for concurrent readers.
type Index struct {
	// Source is the path (or label) the index was read from.
	Source string
	// Skipped counts malformed lines dropped while parsing.
	Skipped int

	subsystemRoles  map[string]stringset.Set
	roleSubsystems  map[string]stringset.Set
	classifications map[string]Classification
}

func newIndex(source string) *Index {
	return &Index{
		Source:          source,
		subsystemRoles:  make(map[string]stringset.Set),
		roleSubsystems:  make(map[string]stringset.Set),
		classifications: make(map[string]Classification),
	}
}

// add records one pair in both directions.
func (ix *Index) add(role, subsystem string) {
	roles, ok := ix.subsystemRoles[subsystem]
	if !ok {
		roles = stringset.New()
		ix.subsystemRoles[subsystem] = roles
	}
	roles.Add(role)

	subs, ok := ix.roleSubsystems[role]
	if !ok {
		subs = stringset.New()
		ix.roleSubsystems[role] = subs
	}
	subs.Add(subsystem)
}

// Build constructs an index from subsystem -> roles.
// Subsystems listed without roles are dropped so every subsystem has a
// non-zero role count.
func Build(subsystemRoles map[string][]string) *Index {
	ix := newIndex("memory")
	for subsystem, roles := range subsystemRoles {
		for _, role := range roles {
			ix.add(role, subsystem)
		}
	}
	return ix
}

// Load reads the reference file at path.
// A missing file yields an error wrapping fs.ErrNotExist.
func Load(path string) (*Index, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "load "+path)
	defer timer.Stop()

	logging.IndexDebug("reading %s", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subsystems file: %w", err)
	}
	defer f.Close()

	return Parse(f, path)
}

// Parse reads reference lines from r. Malformed lines (fewer than two
// fields, or an empty role or subsystem) are skipped and counted.
func Parse(r io.Reader, source string) (*Index, error) {
	ix := newIndex(source)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		// Fields are trimmed one by one; an empty leading column must keep its position.
		fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
		if len(fields) < 2 {
			logging.IndexWarn("%s:%d: expected role and subsystem, got %d field(s); skipping", source, lineNo, len(fields))
			ix.Skipped++
			continue
		}
		role := strings.TrimSpace(fields[0])
		subsystem := strings.TrimSpace(fields[1])
		if role == "" || subsystem == "" {
			logging.IndexWarn("%s:%d: empty role or subsystem; skipping", source, lineNo)
			ix.Skipped++
			continue
		}

		ix.add(role, subsystem)

		if _, ok := ix.classifications[subsystem]; !ok && len(fields) > 2 {
			c := Classification{Primary: strings.TrimSpace(fields[2])}
			if len(fields) > 3 {
				c.Secondary = strings.TrimSpace(fields[3])
			}
			ix.classifications[subsystem] = c
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	logging.Index("%s: %d subsystems, %d roles, %d skipped lines",
		source, len(ix.subsystemRoles), len(ix.roleSubsystems), ix.Skipped)
	return ix, nil
}

// Roles returns a copy of the roles defining subsystem.
func (ix *Index) Roles(subsystem string) stringset.Set {
	return ix.subsystemRoles[subsystem].Clone()
}

// Subsystems returns a copy of the subsystems role belongs to.
func (ix *Index) Subsystems(role string) stringset.Set {
	return ix.roleSubsystems[role].Clone()
}

// RoleCount returns the number of roles defining subsystem; the coverage denominator.
func (ix *Index) RoleCount(subsystem string) int {
	return ix.subsystemRoles[subsystem].Len()
}

// HasRole reports whether role appears in any subsystem.
func (ix *Index) HasRole(role string) bool {
	_, ok := ix.roleSubsystems[role]
	return ok
}

// Classification returns the functional category recorded for subsystem.
func (ix *Index) Classification(subsystem string) (Classification, bool) {
	c, ok := ix.classifications[subsystem]
	return c, ok
}

// SubsystemNames returns all subsystems, sorted.
func (ix *Index) SubsystemNames() []string {
	names := make([]string, 0, len(ix.subsystemRoles))
	for s := range ix.subsystemRoles {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of subsystems.
func (ix *Index) Len() int { return len(ix.subsystemRoles) }

// RoleLen returns the number of distinct roles.
func (ix *Index) RoleLen() int { return len(ix.roleSubsystems) }
