package biochem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapfill/internal/types"
)

const (
	reactionsTSV = "id\tname\tequation\tdirection\tis_transport\n" +
		"rxn00148\tpyruvate kinase\tATP + Pyruvate <=> ADP + PEP\t<\t0\n" +
		"rxn00459\tenolase\t2-PG <=> PEP + H2O\t=\t0\n" +
		"rxn05226\tglucose PTS\tGlc[e] + PEP => G6P + Pyr\t>\t1\n" +
		"rxn99999\torphan\tA => B\tsideways\t\n"
	complexRolesTSV = "complex\trole\n" +
		"cpx01\tPyruvate kinase (EC 2.7.1.40)\n" +
		"cpx02\tEnolase (EC 4.2.1.11)\n" +
		"cpx03\tPTS system, glucose-specific IIB component\n" +
		"cpx03\tPTS system, glucose-specific IIC component\n" +
		"cpx04\tUnused role\n"
	reactionComplexesTSV = "reaction\tcomplex\n" +
		"rxn00148\tcpx01\n" +
		"rxn00459\tcpx02\n" +
		"rxn05226\tcpx03\n"
)

func writeReference(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ReactionsFile), []byte(reactionsTSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ComplexRolesFile), []byte(complexRolesTSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ReactionComplexesFile), []byte(reactionComplexesTSV), 0644))
	return dir
}

func TestLoad(t *testing.T) {
	db, err := Load(context.Background(), writeReference(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"rxn00148", "rxn00459", "rxn05226", "rxn99999"}, db.KnownReactions().Elements())
	assert.Equal(t, Stats{Reactions: 4, Complexes: 4, Roles: 5}, db.Stats())

	r, ok := db.Reaction("rxn05226")
	require.True(t, ok)
	assert.True(t, r.IsTransport)
	assert.Equal(t, types.DirectionForward, r.Direction)
	assert.Equal(t, "rxn05226: Glc[e] + PEP => G6P + Pyr", r.String())

	orphan, ok := db.Reaction("rxn99999")
	require.True(t, ok)
	assert.Equal(t, types.DirectionReversible, orphan.Direction, "unknown directions fall back to reversible")
}

func TestLoad_MissingFile(t *testing.T) {
	dir := writeReference(t)
	require.NoError(t, os.Remove(filepath.Join(dir, ComplexRolesFile)))

	_, err := Load(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), ComplexRolesFile)
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, writeReference(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReactionsToRoles(t *testing.T) {
	db, err := Load(context.Background(), writeReference(t))
	require.NoError(t, err)

	got, err := db.ReactionsToRoles(context.Background(), stringset.New("rxn05226", "rxn99999", "nope"))
	require.NoError(t, err)

	require.Len(t, got, 1, "reactions without roles are omitted")
	assert.Equal(t, []string{
		"PTS system, glucose-specific IIB component",
		"PTS system, glucose-specific IIC component",
	}, got["rxn05226"].Elements())
}

func TestRolesToReactions(t *testing.T) {
	db, err := Load(context.Background(), writeReference(t))
	require.NoError(t, err)

	got, err := db.RolesToReactions(context.Background(), stringset.New(
		"Enolase (EC 4.2.1.11)",
		"Unused role",
		"PTS system, glucose-specific IIC component",
	))
	require.NoError(t, err)

	want := map[string][]string{
		"Enolase (EC 4.2.1.11)":                      {"rxn00459"},
		"PTS system, glucose-specific IIC component": {"rxn05226"},
	}
	flat := make(map[string][]string, len(got))
	for k, v := range got {
		flat[k] = v.Elements()
	}
	if diff := cmp.Diff(want, flat); diff != "" {
		t.Errorf("RolesToReactions mismatch (-want +got):\n%s", diff)
	}
}

func TestReaction_ReturnsCopy(t *testing.T) {
	db := NewDatabase(map[string]*types.Reaction{"r1": {ID: "r1", Equation: "A => B"}}, nil, nil)
	r, ok := db.Reaction("r1")
	require.True(t, ok)
	r.Equation = "mutated"

	again, _ := db.Reaction("r1")
	assert.Equal(t, "A => B", again.Equation)

	_, ok = db.Reaction("r2")
	assert.False(t, ok)
}

func TestPairsRoundTrip(t *testing.T) {
	db, err := Load(context.Background(), writeReference(t))
	require.NoError(t, err)

	assert.Len(t, db.ComplexRoles(), 5)
	assert.Equal(t, []Pair{
		{Left: "rxn00148", Right: "cpx01"},
		{Left: "rxn00459", Right: "cpx02"},
		{Left: "rxn05226", Right: "cpx03"},
	}, db.ReactionComplexes())
	assert.Len(t, db.AllReactions(), 4)
}

func TestParsePairs_MissingColumn(t *testing.T) {
	_, err := ParsePairs(strings.NewReader("complex\tname\ncpx01\tfoo\n"), "complex", "role")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"role"`)
}

func TestParsePairs_HeaderOrderAndBlanks(t *testing.T) {
	in := "role\tcomplex\textra\n" +
		"# comment\n" +
		"Role A\tcpx1\tx\n" +
		"\tcpx2\n" +
		"Role B\tcpx3\n"
	got, err := ParsePairs(strings.NewReader(in), "complex", "role")
	require.NoError(t, err)
	assert.Equal(t, []Pair{{Left: "cpx1", Right: "Role A"}, {Left: "cpx3", Right: "Role B"}}, got)
}

func TestParseReactions_Empty(t *testing.T) {
	got, err := ParseReactions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseList(t *testing.T) {
	in := "# reactions2run\nrxn00148\n\n  rxn00459\tpyruvate kinase\nrxn00148\n"
	got, err := ParseList(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"rxn00148", "rxn00459"}, got.Elements())
}

func TestReadList_Missing(t *testing.T) {
	_, err := ReadList(filepath.Join(t.TempDir(), "absent.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
