package store

import (
	"path/filepath"
	"testing"

	"github.com/Quantix-Lab/vnpy/pkg/conn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client, err := conn.New(conn.Option{Path: filepath.Join(t.TempDir(), "settings.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s, err := New(client.DB())
	require.NoError(t, err)
	return s
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	saved := map[string]any{
		"key":     "abc123",
		"balance": 1_000_000.0,
		"sandbox": true,
	}
	require.NoError(t, s.Save("SIM", saved))

	loaded, err := s.Load("SIM")
	require.NoError(t, err)
	assert.Equal(t, "abc123", loaded["key"])
	assert.Equal(t, 1_000_000.0, loaded["balance"])
	assert.Equal(t, true, loaded["sandbox"])
}

func TestSettingsUpsertOverwrites(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("SIM", map[string]any{"key": "old"}))
	require.NoError(t, s.Save("SIM", map[string]any{"key": "new", "extra": 1.0}))

	loaded, err := s.Load("SIM")
	require.NoError(t, err)
	assert.Equal(t, "new", loaded["key"])
	assert.Equal(t, 1.0, loaded["extra"])
	assert.Len(t, loaded, 2)
}

func TestSettingsIsolatedPerGateway(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("SIM", map[string]any{"key": "sim"}))
	require.NoError(t, s.Save("OTHER", map[string]any{"key": "other"}))

	loaded, err := s.Load("SIM")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"key": "sim"}, loaded)
}

func TestSettingsLoadEmpty(t *testing.T) {
	s := newTestStore(t)

	loaded, err := s.Load("NEVER_SAVED")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestNewRequiresHandle(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
