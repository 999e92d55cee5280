package logx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugDomainFiltering(t *testing.T) {
	SetDebug(true, []string{"sandbox", "router"})
	defer SetDebug(false, nil)

	assert.True(t, IsDebugEnabled("sandbox"))
	assert.True(t, IsDebugEnabled("router"))
	assert.False(t, IsDebugEnabled("workflow"))
}

func TestDebugAllDomainsWhenUnfiltered(t *testing.T) {
	SetDebug(true, nil)
	defer SetDebug(false, nil)

	assert.True(t, IsDebugEnabled("anything"))
}

func TestDebugDisabledByDefault(t *testing.T) {
	SetDebug(false, nil)
	assert.False(t, IsDebugEnabled("sandbox"))
}

func TestRecentEntriesScopeFilter(t *testing.T) {
	logger := NewLogger("run-abc123")
	logger.Info("sandbox created")
	logger.Warn("upload skipped")

	other := NewLogger("run-def456")
	other.Info("unrelated")

	entries := RecentEntries("run-abc123", time.Time{})
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		assert.Equal(t, "run-abc123", entry.Scope)
	}
}

func TestWithScope(t *testing.T) {
	logger := NewLogger("workflow")
	scoped := logger.WithScope("workflow:run-1")

	assert.Equal(t, "workflow", logger.Scope())
	assert.Equal(t, "workflow:run-1", scoped.Scope())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "no-op"))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := assert.AnError
	err := Wrap(cause, "db connect")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "db connect")
}
