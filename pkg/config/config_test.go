package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionPresetDefaults(t *testing.T) {
	s := ProductionPreset()
	assert.True(t, s.KVSeparated)
	assert.Equal(t, 1.5, s.SpaceAmpFactor)
	assert.Equal(t, 100*time.Millisecond, s.FsyncFrequency)
	assert.True(t, s.CommitBeforeClose)
}

func TestHighThroughputPresetRelaxesFsync(t *testing.T) {
	s := HighThroughputPreset()
	assert.Equal(t, time.Second, s.FsyncFrequency)
	assert.False(t, s.CommitBeforeClose)
	assert.Greater(t, s.StalenessThreshold, ProductionPreset().StalenessThreshold)
}

func TestLowMemoryPresetMinimisesCache(t *testing.T) {
	s := LowMemoryPreset()
	assert.False(t, s.KVSeparated)
	assert.Less(t, s.BlockCacheCapacity, ProductionPreset().BlockCacheCapacity)
	assert.True(t, s.ManualJournalPersist)
}

func TestOptionsOverridePresetDefaults(t *testing.T) {
	s := ProductionPreset(WithDBPath("/var/lib/nitrite"), WithFsyncFrequency(5*time.Second))
	assert.Equal(t, "/var/lib/nitrite", s.DBPath)
	assert.Equal(t, 5*time.Second, s.FsyncFrequency)
	// Unrelated fields retain the preset's values.
	assert.True(t, s.CommitBeforeClose)
}

func TestDefaultNitrite(t *testing.T) {
	n := DefaultNitrite()
	assert.Equal(t, 1, n.SchemaVersion)
	assert.Equal(t, ".", n.FieldSeparator)
}

func TestLoadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nitrite.yaml")
	contents := `
storage:
  dbPath: /data/nitrite.db
  kvSeparated: true
  spaceAmpFactor: 1.8
  stalenessThreshold: 0.5
  blockCacheCapacity: 1048576
  fsyncFrequencyMillis: 250
  commitBeforeClose: true
  manualJournalPersist: false
nitrite:
  schemaVersion: 3
  fieldSeparator: "/"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	storage, nitrite, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/nitrite.db", storage.DBPath)
	assert.True(t, storage.KVSeparated)
	assert.Equal(t, 1.8, storage.SpaceAmpFactor)
	assert.Equal(t, 250*time.Millisecond, storage.FsyncFrequency)
	assert.Equal(t, 3, nitrite.SchemaVersion)
	assert.Equal(t, "/", nitrite.FieldSeparator)
}

func TestLoadFileAppliesDefaultsWhenNitriteSectionBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  dbPath: /tmp/x.db\n"), 0o644))

	storage, nitrite, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", storage.DBPath)
	assert.Equal(t, DefaultNitrite(), nitrite)
}

func TestLoadFileMissingPathErrors(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
