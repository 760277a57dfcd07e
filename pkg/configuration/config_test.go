package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.cfg")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10s", cfg.String("Interpreter", "run_timeout", ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[Interpreter]")
	assert.Contains(t, string(data), "max_loop_iterations = 1000000")
}

func TestLoadMergesFileAndLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.cfg")

	base := `; comment
[Interpreter]
read_integers = true
max_loop_iterations = 50

# another comment
[Custom]
answer = 42
`
	local := `[Interpreter]
max_loop_iterations = 7
`
	require.NoError(t, os.WriteFile(path, []byte(base), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, LocalConfigFile), []byte(local), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	tests := []struct {
		section, key, expected string
	}{
		{"Interpreter", "read_integers", "true"},
		{"Interpreter", "max_loop_iterations", "7"},
		{"Interpreter", "run_timeout", "10s"},
		{"Custom", "answer", "42"},
		{"Custom", "missing", "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.section+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, cfg.String(tt.section, tt.key, "fallback"))
		})
	}
}

func TestLoadInMemory(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "minipl.db", cfg.String("Storage", "database", ""))
	assert.Error(t, cfg.Save())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.cfg")
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Set("Server", "port", "9090")
	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", reloaded.String("Server", "port", ""))
}

func TestGlobalAccessors(t *testing.T) {
	require.NoError(t, Initialize(""))
	SetString("Test", "count", "12")
	SetString("Test", "flag", "yes-ish")
	SetString("Test", "wait", "1500ms")

	assert.Equal(t, 12, GetInt("Test", "count", 0))
	assert.Equal(t, 3, GetInt("Test", "missing", 3))
	assert.True(t, GetBool("Test", "flag", true))
	assert.Equal(t, float64(12), GetFloat("Test", "count", 0))
	assert.Equal(t, int64(1500), GetDuration("Test", "wait", 0).Milliseconds())
	assert.Equal(t, "12", GetSection("Test")["count"])
}
