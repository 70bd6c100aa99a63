package subsystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReference = `# Role	Subsystem	Class 1	Class 2
Phosphoglycerate kinase (EC 2.7.2.3)	Glycolysis and Gluconeogenesis	Carbohydrates	Central carbohydrate metabolism
Enolase (EC 4.2.1.11)	Glycolysis and Gluconeogenesis	Carbohydrates	Central carbohydrate metabolism
Pyruvate kinase (EC 2.7.1.40)	Glycolysis and Gluconeogenesis	Carbohydrates	Central carbohydrate metabolism
Enolase (EC 4.2.1.11)	Glycolysis and Gluconeogenesis	Carbohydrates	Central carbohydrate metabolism
Enolase (EC 4.2.1.11)	Entner-Doudoroff Pathway	Carbohydrates	Central carbohydrate metabolism
2-keto-3-deoxy-6-phosphogluconate aldolase (EC 4.1.2.14)	Entner-Doudoroff Pathway
`

func TestParse(t *testing.T) {
	ix, err := Parse(strings.NewReader(sampleReference), "sample")
	require.NoError(t, err)

	assert.Equal(t, "sample", ix.Source)
	assert.Equal(t, 0, ix.Skipped)
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 4, ix.RoleLen())

	if diff := cmp.Diff([]string{"Entner-Doudoroff Pathway", "Glycolysis and Gluconeogenesis"}, ix.SubsystemNames()); diff != "" {
		t.Errorf("SubsystemNames mismatch (-want +got):\n%s", diff)
	}

	// Duplicate pair is idempotent
	assert.Equal(t, 3, ix.RoleCount("Glycolysis and Gluconeogenesis"))
	assert.Equal(t, 2, ix.RoleCount("Entner-Doudoroff Pathway"))
	assert.Equal(t, 0, ix.RoleCount("unknown"))

	assert.True(t, ix.Subsystems("Enolase (EC 4.2.1.11)").Contains("Glycolysis and Gluconeogenesis", "Entner-Doudoroff Pathway"))
	assert.True(t, ix.HasRole("Pyruvate kinase (EC 2.7.1.40)"))
	assert.False(t, ix.HasRole("Hexokinase (EC 2.7.1.1)"))

	c, ok := ix.Classification("Glycolysis and Gluconeogenesis")
	require.True(t, ok)
	assert.Equal(t, Classification{Primary: "Carbohydrates", Secondary: "Central carbohydrate metabolism"}, c)
}

func TestParse_BidirectionalConsistency(t *testing.T) {
	ix, err := Parse(strings.NewReader(sampleReference), "sample")
	require.NoError(t, err)

	for _, s := range ix.SubsystemNames() {
		for role := range ix.Roles(s) {
			assert.True(t, ix.Subsystems(role).Contains(s), "role %q lists subsystem %q", role, s)
		}
	}
	for role, subs := range ix.roleSubsystems {
		for s := range subs {
			assert.True(t, ix.Roles(s).Contains(role), "subsystem %q lists role %q", s, role)
		}
	}
}

func TestParse_MalformedLinesSkipped(t *testing.T) {
	input := strings.Join([]string{
		"roleA\tS1",
		"no-tab-here",
		"",
		"   ",
		"\tS1",
		"roleB\t",
		"roleC\tS1\textra",
		"#roleD\tS2",
		"\tS1\tCarbohydrates\tCentral",
	}, "\n")

	ix, err := Parse(strings.NewReader(input), "malformed")
	require.NoError(t, err)

	assert.Equal(t, 4, ix.Skipped)
	assert.Equal(t, 1, ix.Len())
	if diff := cmp.Diff([]string{"roleA", "roleC"}, ix.Roles("S1").Elements()); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, ix.HasRole("#roleD"))
	assert.False(t, ix.HasRole("S1"), "empty role column must not shift later columns")
	assert.Zero(t, ix.RoleCount("Carbohydrates"))
}

func TestParse_TrailingWhitespaceAndCRLF(t *testing.T) {
	ix, err := Parse(strings.NewReader("roleA\tS1\r\nroleB\tS1  \r\n"), "crlf")
	require.NoError(t, err)
	assert.True(t, ix.Roles("S1").Contains("roleA", "roleB"))
	assert.Equal(t, 1, ix.Len())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ss.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleReference), 0644))

	ix, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, ix.Source)
	assert.Equal(t, 2, ix.Len())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestBuild(t *testing.T) {
	ix := Build(map[string][]string{
		"S1":    {"r1", "r2", "r3"},
		"S2":    {"r3"},
		"Empty": nil,
	})

	assert.Equal(t, 2, ix.Len(), "subsystems without roles are dropped")
	assert.Equal(t, 3, ix.RoleCount("S1"))
	if diff := cmp.Diff([]string{"S1", "S2"}, ix.Subsystems("r3").Elements()); diff != "" {
		t.Errorf("subsystems of r3 mismatch (-want +got):\n%s", diff)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	ix := Build(map[string][]string{"S1": {"r1"}})

	roles := ix.Roles("S1")
	roles.Add("intruder")
	subs := ix.Subsystems("r1")
	subs.Add("S9")

	assert.Equal(t, 1, ix.RoleCount("S1"))
	assert.False(t, ix.Subsystems("r1").Contains("S9"))
}
