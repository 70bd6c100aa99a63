package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetState clears package state between tests.
func resetState(t *testing.T) {
	t.Helper()
	CloseAll()
	configMu.Lock()
	config = loggingConfig{}
	configLoaded = false
	configMu.Unlock()
	logsDir = ""
	workspace = ""
	configPath = ""
	logLevel = LevelInfo
	t.Cleanup(CloseAll)
}

func writeConfig(t *testing.T, ws, content string) {
	t.Helper()
	dir := filepath.Join(ws, ".gapfill")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))
}

func readLog(t *testing.T, ws string, cat Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".gapfill", "logs", date+"_"+string(cat)+".log"))
	require.NoError(t, err)
	return string(data)
}

func TestInitialize_RequiresWorkspace(t *testing.T) {
	resetState(t)
	assert.Error(t, Initialize("", ""))
}

func TestInitialize_NoConfigIsSilent(t *testing.T) {
	resetState(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, ""))
	assert.False(t, IsDebugMode())

	Get(CategoryIndex).Info("should not be written")
	_, err := os.Stat(filepath.Join(ws, ".gapfill", "logs"))
	assert.True(t, os.IsNotExist(err), "logs dir must not be created without debug_mode")
}

func TestCategoriesWriteFiles(t *testing.T) {
	resetState(t)
	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  level: debug
  categories:
    store: false
`)

	require.NoError(t, Initialize(ws, ""))
	require.True(t, IsDebugMode())

	Index("loaded %d subsystems", 3)
	IndexWarn("skipped line %d", 7)
	StoreDebug("should be suppressed by category filter")

	out := readLog(t, ws, CategoryIndex)
	assert.Contains(t, out, "[INFO] loaded 3 subsystems")
	assert.Contains(t, out, "[WARN] skipped line 7")

	assert.False(t, IsCategoryEnabled(CategoryStore))
	assert.True(t, IsCategoryEnabled(CategoryWatch), "unlisted categories default to enabled")
}

func TestInitialize_ExplicitConfigPath(t *testing.T) {
	resetState(t)
	ws := t.TempDir()
	writeConfig(t, ws, "logging:\n  debug_mode: false\n")

	other := filepath.Join(t.TempDir(), "gapfill.yaml")
	require.NoError(t, os.WriteFile(other, []byte(`
logging:
  debug_mode: true
  level: debug
`), 0644))

	require.NoError(t, Initialize(ws, other))
	require.True(t, IsDebugMode(), "explicit config path wins over the workspace default")

	BootDebug("flag check")
	IndexDebug("reading %s", "ss.txt")

	assert.Contains(t, readLog(t, ws, CategoryBoot), "Config: "+other)
	assert.Contains(t, readLog(t, ws, CategoryBoot), "[DEBUG] flag check")
	assert.Contains(t, readLog(t, ws, CategoryIndex), "[DEBUG] reading ss.txt")
}

func TestLevelGating(t *testing.T) {
	resetState(t)
	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  level: warn
`)
	require.NoError(t, Initialize(ws, ""))

	Get(CategoryCache).Info("hidden")
	Get(CategoryCache).Warn("visible")

	out := readLog(t, ws, CategoryCache)
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestRunLogger_JSONFormat(t *testing.T) {
	resetState(t)
	ws := t.TempDir()
	writeConfig(t, ws, `
logging:
  debug_mode: true
  level: debug
  format: json
`)
	require.NoError(t, Initialize(ws, ""))

	WithRunID(CategorySuggest, "run-123").WithField("threshold", 0.5).Info("selected %d subsystems", 2)

	out := readLog(t, ws, CategorySuggest)
	line := out[strings.Index(out, "{"):]
	assert.Contains(t, line, `"run":"run-123"`)
	assert.Contains(t, line, `"msg":"selected 2 subsystems"`)
	assert.Contains(t, line, `"threshold":0.5`)
}

func TestTimer(t *testing.T) {
	resetState(t)
	timer := StartTimer(CategoryIndex, "load")
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
	assert.GreaterOrEqual(t, timer.StopWithThreshold(time.Hour), time.Duration(0))
}
