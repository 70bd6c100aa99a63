// Package coverage measures how much of each subsystem is already represented
// by the roles implied by a reaction set.
package coverage

import (
	"sort"

	"bitbucket.org/creachadair/stringset"

	"gapfill/internal/logging"
	"gapfill/internal/subsystem"
	"gapfill/internal/types"
)

// Report holds per-subsystem coverage for one reaction set.
// Only subsystems with at least one observed role appear in any map.
type Report struct {
	// Present maps subsystem -> observed roles belonging to it.
	Present map[string]stringset.Set
	// Contributors maps subsystem -> reactions whose roles hit it.
	Contributors map[string]stringset.Set
	// Total maps subsystem -> number of roles defining it.
	Total map[string]int
	// Fraction maps subsystem -> |Present| / Total.
	Fraction map[string]float64
}

// Evaluate computes coverage of idx's subsystems by reacts (reaction -> roles).
// Roles unknown to the index are ignored.
func Evaluate(idx *subsystem.Index, reacts types.Mapping) *Report {
	r := &Report{
		Present:      make(map[string]stringset.Set),
		Contributors: make(map[string]stringset.Set),
		Total:        make(map[string]int),
		Fraction:     make(map[string]float64),
	}
	if idx == nil {
		return r
	}

	for reaction, roles := range reacts {
		for role := range roles {
			for s := range idx.Subsystems(role) {
				present, ok := r.Present[s]
				if !ok {
					present = stringset.New()
					r.Present[s] = present
					r.Contributors[s] = stringset.New()
				}
				present[role] = struct{}{}
				r.Contributors[s][reaction] = struct{}{}
			}
		}
	}

	for s, present := range r.Present {
		total := idx.RoleCount(s)
		if total == 0 {
			// Not reachable from a loaded index; guards the division.
			delete(r.Present, s)
			delete(r.Contributors, s)
			continue
		}
		r.Total[s] = total
		r.Fraction[s] = float64(present.Len()) / float64(total)
	}

	logging.CoverageDebug("%d reactions touched %d subsystems", len(reacts), len(r.Fraction))
	return r
}

// Select returns, sorted, the subsystems whose fraction is at least threshold.
func (r *Report) Select(threshold float64) []string {
	var out []string
	for s, f := range r.Fraction {
		if f >= threshold {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Entry is one row of a coverage report.
type Entry struct {
	Subsystem string
	Present   int
	Total     int
	Fraction  float64
	Reactions int
}

// Entries returns the report rows ordered by fraction (highest first), then name.
func (r *Report) Entries() []Entry {
	entries := make([]Entry, 0, len(r.Fraction))
	for s, f := range r.Fraction {
		entries = append(entries, Entry{
			Subsystem: s,
			Present:   r.Present[s].Len(),
			Total:     r.Total[s],
			Fraction:  f,
			Reactions: r.Contributors[s].Len(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Fraction != entries[j].Fraction {
			return entries[i].Fraction > entries[j].Fraction
		}
		return entries[i].Subsystem < entries[j].Subsystem
	})
	return entries
}

// Len returns the number of evaluated subsystems.
func (r *Report) Len() int { return len(r.Fraction) }
