package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, enabled map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	UseLogger(zap.New(core), enabled)
	t.Cleanup(func() { UseLogger(nil, nil) })
	return logs
}

func TestGet_AddsCategoryField(t *testing.T) {
	logs := observe(t, nil)

	Get(CategoryBinder).Info("bound %s", "severity")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bound severity", entries[0].Message)
	assert.Equal(t, "binder", entries[0].ContextMap()["category"])
}

func TestGet_DisabledCategoryIsNoop(t *testing.T) {
	logs := observe(t, map[string]bool{"locator": false, "rows": true})

	Get(CategoryLocator).Error("should not appear")
	Get(CategoryRows).Warn("row %d reused", 1)
	Get(CategoryGroup).Debug("unspecified categories default to enabled")

	assert.False(t, IsCategoryEnabled(CategoryLocator))
	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, 1, logs.FilterMessage("row 1 reused").Len())
}

func TestWith_CarriesContext(t *testing.T) {
	logs := observe(t, nil)

	Get(CategoryRun).With("group", "CS1").Info("started")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "CS1", entries[0].ContextMap()["group"])
}

func TestInitialize_Validation(t *testing.T) {
	t.Cleanup(func() { UseLogger(nil, nil) })

	_, err := Initialize(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = Initialize(Options{Format: "xml"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := Initialize(Options{Level: "warn", Format: "console", File: path, Verbose: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "verbose forces debug")
	Boot("boot message")
	Sync()
	assert.FileExists(t, path)
}
