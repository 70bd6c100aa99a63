package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"bitbucket.org/creachadair/stringset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapfill/internal/biochem"
	"gapfill/internal/types"
)

func sampleReference() *biochem.Database {
	return biochem.NewDatabase(
		map[string]*types.Reaction{
			"rxn00148": {ID: "rxn00148", Name: "pyruvate kinase", Equation: "ATP + Pyruvate <=> ADP + PEP", Direction: types.DirectionReverse},
			"rxn00459": {ID: "rxn00459", Name: "enolase", Equation: "2-PG <=> PEP + H2O", Direction: types.DirectionReversible},
			"rxn05226": {ID: "rxn05226", Name: "glucose PTS", Equation: "Glc[e] + PEP => G6P + Pyr", Direction: types.DirectionForward, IsTransport: true},
		},
		[]biochem.Pair{
			{Left: "cpx01", Right: "Pyruvate kinase"},
			{Left: "cpx02", Right: "Enolase"},
			{Left: "cpx03", Right: "PTS IIB"},
			{Left: "cpx03", Right: "PTS IIC"},
			{Left: "cpx04", Right: "Orphan role"},
		},
		[]biochem.Pair{
			{Left: "rxn00148", Right: "cpx01"},
			{Left: "rxn00459", Right: "cpx02"},
			{Left: "rxn05226", Right: "cpx03"},
		},
	)
}

func newTestStore(t *testing.T) *RefStore {
	t.Helper()
	s, err := NewRefStore(filepath.Join(t.TempDir(), "ref.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Import(context.Background(), sampleReference(), "test"))
	return s
}

func TestNewRefStore_Memory(t *testing.T) {
	s, err := NewRefStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestImportAndStats(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Reactions)
	assert.Equal(t, 4, st.Complexes)
	assert.Equal(t, 5, st.Roles)
	assert.Equal(t, "test", st.Source)
	assert.NotEmpty(t, st.ImportedAt)
}

func TestImport_Replaces(t *testing.T) {
	s := newTestStore(t)

	smaller := biochem.NewDatabase(map[string]*types.Reaction{"rxnX": {ID: "rxnX", Direction: types.DirectionForward}}, nil, nil)
	require.NoError(t, s.Import(context.Background(), smaller, "second"))

	known, err := s.KnownReactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"rxnX"}, known.Elements())

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", st.Source)
	assert.Zero(t, st.Roles)
}

func TestReaction(t *testing.T) {
	s := newTestStore(t)

	r, err := s.Reaction(context.Background(), "rxn05226")
	require.NoError(t, err)
	assert.Equal(t, &types.Reaction{
		ID: "rxn05226", Name: "glucose PTS", Equation: "Glc[e] + PEP => G6P + Pyr",
		Direction: types.DirectionForward, IsTransport: true,
	}, r)

	_, err = s.Reaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReactionNotFound)
}

func TestRelationsMatchInMemoryDatabase(t *testing.T) {
	s := newTestStore(t)
	ref := sampleReference()
	ctx := context.Background()

	reactions := stringset.New("rxn00148", "rxn05226", "unknown")
	want, err := ref.ReactionsToRoles(ctx, reactions)
	require.NoError(t, err)
	got, err := s.ReactionsToRoles(ctx, reactions)
	require.NoError(t, err)
	assertMappingEqual(t, want, got)

	roles := stringset.New("Enolase", "PTS IIC", "Orphan role")
	want, err = ref.RolesToReactions(ctx, roles)
	require.NoError(t, err)
	got, err = s.RolesToReactions(ctx, roles)
	require.NoError(t, err)
	assertMappingEqual(t, want, got)
	_, ok := got["Orphan role"]
	assert.False(t, ok)
}

func TestRelate_Chunked(t *testing.T) {
	rx := make(map[string]*types.Reaction)
	var cr, rc []biochem.Pair
	n := maxParams*2 + 7
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("rxn%05d", i)
		cx := fmt.Sprintf("cpx%05d", i)
		rx[id] = &types.Reaction{ID: id, Direction: types.DirectionForward}
		cr = append(cr, biochem.Pair{Left: cx, Right: fmt.Sprintf("role %d", i)})
		rc = append(rc, biochem.Pair{Left: id, Right: cx})
	}
	s, err := NewRefStore(filepath.Join(t.TempDir(), "big.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Import(context.Background(), biochem.NewDatabase(rx, cr, rc), "generated"))

	known, err := s.KnownReactions(context.Background())
	require.NoError(t, err)
	got, err := s.ReactionsToRoles(context.Background(), known)
	require.NoError(t, err)
	assert.Len(t, got, n)
	assert.True(t, got["rxn01003"].Equals(stringset.New("role 1003")))
}

func TestRelate_Empty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.RolesToReactions(context.Background(), stringset.New())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRelate_Canceled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ReactionsToRoles(ctx, stringset.New("rxn00148"))
	assert.Error(t, err)
}

func TestOpenRefStore_CgoDriver(t *testing.T) {
	s, err := OpenRefStore("sqlite3", ":memory:")
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skip("go-sqlite3 requires cgo")
	}
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Import(ctx, sampleReference(), "cgo"))

	toRoles, err := s.ReactionsToRoles(ctx, stringset.New("rxn05226", "rxn00459"))
	require.NoError(t, err)
	assert.Equal(t, []string{"PTS IIB", "PTS IIC"}, toRoles["rxn05226"].Elements())
	assert.Equal(t, []string{"Enolase"}, toRoles["rxn00459"].Elements())

	toReactions, err := s.RolesToReactions(ctx, stringset.New("Pyruvate kinase", "Orphan role"))
	require.NoError(t, err)
	assert.Equal(t, []string{"rxn00148"}, toReactions["Pyruvate kinase"].Elements())
	_, ok := toReactions["Orphan role"]
	assert.False(t, ok)
}

func assertMappingEqual(t *testing.T, want, got types.Mapping) {
	t.Helper()
	require.Equal(t, want.Keys().Elements(), got.Keys().Elements())
	for k, v := range want {
		assert.True(t, v.Equals(got[k]), "key %s: want %v got %v", k, v, got[k])
	}
}
