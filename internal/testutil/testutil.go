// Package testutil collects the small pieces of test scaffolding repeated
// across pkg/kvstore, pkg/collection and pkg/migration: opening a
// throwaway bbolt-backed store under t.TempDir() and building a Document
// from a field map without repeating the Put/require.NoError dance.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/cuemby/nitrite/pkg/config"
	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/stretchr/testify/require"
)

// OpenStore opens a kvstore.Store backed by a fresh bbolt file under the
// test's temp directory and registers it for cleanup on test completion.
// It uses zero-value config.Storage/config.Nitrite: no commit-before-close,
// no KV-separated GC, and the document package's default "." separator.
func OpenStore(t *testing.T) *kvstore.Store {
	t.Helper()
	store, err := kvstore.Open(filepath.Join(t.TempDir(), "test.db"), config.Storage{}, config.Nitrite{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// BuildDocument puts each field of the map into a fresh document.Document,
// in Go map iteration order (unspecified), failing the test immediately on
// the first rejected Put.
func BuildDocument(t *testing.T, fields map[string]document.Value) *document.Document {
	t.Helper()
	d := document.NewDocument()
	for k, v := range fields {
		var err error
		d, err = d.Put(k, v)
		require.NoError(t, err)
	}
	return d
}
