package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level LogLevel, areas ...LogArea) *Logger {
	t.Helper()
	l := &Logger{
		enabled:       1,
		level:         int32(level),
		areaEnabled:   make(map[LogArea]*int32),
		logPath:       filepath.Join(t.TempDir(), "test.log"),
		maxSizeMB:     10,
		rotationCount: 2,
	}
	for _, area := range allAreas {
		l.areaEnabled[area] = new(int32)
	}
	for _, area := range areas {
		*l.areaEnabled[area] = 1
	}
	require.NoError(t, l.openLogFile())
	t.Cleanup(func() { l.file.Close() })
	return l
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{"Error", ERROR},
		{"FATAL", FATAL},
		{"nonsense", INFO},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestShouldLog(t *testing.T) {
	l := newTestLogger(t, INFO, AreaParser)

	assert.True(t, l.shouldLog(INFO, AreaParser))
	assert.True(t, l.shouldLog(ERROR, AreaParser))
	assert.False(t, l.shouldLog(DEBUG, AreaParser))
	assert.False(t, l.shouldLog(ERROR, AreaScanner))
	assert.False(t, l.shouldLog(ERROR, LogArea("unknown")))

	l.enabled = 0
	assert.False(t, l.shouldLog(ERROR, AreaParser))
}

func TestWriteLogFormatsEntry(t *testing.T) {
	l := newTestLogger(t, DEBUG, AreaInterpreter)
	l.writeLog(INFO, AreaInterpreter, "ran %d statements", 3)

	data, err := os.ReadFile(l.logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO")
	assert.Contains(t, string(data), "[INTERPRETER] ran 3 statements")
}

func TestRotateLogFile(t *testing.T) {
	l := newTestLogger(t, DEBUG, AreaGeneral)
	l.writeLog(INFO, AreaGeneral, "first file")

	l.mutex.Lock()
	require.NoError(t, l.rotateLogFile())
	l.mutex.Unlock()

	rotated, err := os.ReadFile(l.logPath + ".1")
	require.NoError(t, err)
	assert.Contains(t, string(rotated), "first file")

	current, err := os.ReadFile(l.logPath)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestUninitializedLoggerIsSilent(t *testing.T) {
	if globalLogger != nil {
		t.Skip("global logger already initialized")
	}
	assert.NotPanics(t, func() {
		Debug(AreaScanner, "nothing %d", 1)
		Error(AreaServer, "nothing")
		SetVerbose()
		Close()
	})
	assert.False(t, GetAreaStatus(AreaScanner))
}

func TestListAreasReturnsCopy(t *testing.T) {
	areas := ListAreas()
	require.NotEmpty(t, areas)
	areas[0] = "changed"
	assert.Equal(t, AreaScanner, ListAreas()[0])
}
