package biochem

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bitbucket.org/creachadair/stringset"

	"gapfill/internal/logging"
	"gapfill/internal/types"
)

// Reference file names inside a biochemistry directory.
const (
	ReactionsFile         = "reactions.tsv"
	ComplexRolesFile      = "complex_roles.tsv"
	ReactionComplexesFile = "reaction_complexes.tsv"
)

// Pair is one row of a two-column relation file.
type Pair struct {
	Left  string
	Right string
}

func newTSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// columns maps header names (lower-cased) to positions and checks that every
// required name is present.
func columns(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ParseReactions reads a reactions table. Rows without an id are skipped.
func ParseReactions(r io.Reader) (map[string]*types.Reaction, error) {
	cr := newTSVReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]*types.Reaction{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columns(header, "id", "equation")
	if err != nil {
		return nil, err
	}
	col := func(name string) int {
		if i, ok := cols[name]; ok {
			return i
		}
		return -1
	}
	idCol, nameCol, eqCol, dirCol, transportCol := col("id"), col("name"), col("equation"), col("direction"), col("is_transport")

	out := make(map[string]*types.Reaction)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read reaction: %w", err)
		}
		id := field(rec, idCol)
		if id == "" {
			continue
		}
		dir, err := types.ParseDirection(field(rec, dirCol))
		if err != nil {
			logging.BiochemWarn("reaction %s: %v; treating as reversible", id, err)
			dir = types.DirectionReversible
		}
		transport := false
		if raw := field(rec, transportCol); raw != "" {
			transport, _ = strconv.ParseBool(raw)
		}
		out[id] = &types.Reaction{
			ID:          id,
			Name:        field(rec, nameCol),
			Equation:    field(rec, eqCol),
			Direction:   dir,
			IsTransport: transport,
		}
	}
	return out, nil
}

// ParsePairs reads a two-column relation whose header names left and right.
// Rows with an empty side are skipped.
func ParsePairs(r io.Reader, left, right string) ([]Pair, error) {
	cr := newTSVReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columns(header, left, right)
	if err != nil {
		return nil, err
	}
	l, rt := cols[left], cols[right]

	var out []Pair
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s/%s row: %w", left, right, err)
		}
		p := Pair{Left: field(rec, l), Right: field(rec, rt)}
		if p.Left == "" || p.Right == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadList reads one identifier per line (first tab field). Blank lines and
// lines starting with '#' are ignored.
func ReadList(path string) (stringset.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list: %w", err)
	}
	defer f.Close()
	return ParseList(f)
}

// ParseList is ReadList over a reader.
func ParseList(r io.Reader) (stringset.Set, error) {
	out := stringset.New()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, _, _ := strings.Cut(line, "\t")
		if id = strings.TrimSpace(id); id != "" {
			out.Add(id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list: %w", err)
	}
	return out, nil
}
