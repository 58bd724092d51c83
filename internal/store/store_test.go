package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "workbox-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
