// Package types provides shared type definitions used across gapfill packages.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"strings"

	"bitbucket.org/creachadair/stringset"
)

// =============================================================================
// REACTIONS
// =============================================================================

// Direction is the thermodynamic direction of a reaction as written in the
// biochemistry reference: ">" forward, "<" reverse, "=" reversible.
type Direction string

const (
	DirectionForward    Direction = ">"
	DirectionReverse    Direction = "<"
	DirectionReversible Direction = "="
)

// ParseDirection accepts the reference symbols and their long names.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ">", "forward", "=>":
		return DirectionForward, nil
	case "<", "reverse", "<=":
		return DirectionReverse, nil
	case "=", "reversible", "<=>", "":
		return DirectionReversible, nil
	}
	return "", fmt.Errorf("unknown reaction direction %q", s)
}

// Reaction is one record from the known-reaction universe.
type Reaction struct {
	ID          string
	Name        string
	Equation    string
	Direction   Direction
	IsTransport bool
}

// String renders the reaction the way the CLI prints it: "id: equation".
func (r *Reaction) String() string {
	if r.Equation == "" {
		return r.ID
	}
	return fmt.Sprintf("%s: %s", r.ID, r.Equation)
}

// =============================================================================
// ID MAPPINGS
// =============================================================================

// Mapping relates one identifier to a set of identifiers in another space,
// e.g. reaction -> roles or role -> reactions.
type Mapping map[string]stringset.Set

// Put adds values under key, creating the set on first use.
func (m Mapping) Put(key string, values ...string) {
	s, ok := m[key]
	if !ok {
		s = stringset.New()
		m[key] = s
	}
	s.Add(values...)
}

// Flatten returns the union of every value set.
func (m Mapping) Flatten() stringset.Set {
	out := stringset.New()
	for _, s := range m {
		out.Update(s)
	}
	return out
}

// Keys returns the mapping's keys as a set.
func (m Mapping) Keys() stringset.Set {
	out := stringset.NewSize(len(m))
	for k := range m {
		out.Add(k)
	}
	return out
}
