// Package config holds the tunables a Store and its migration engine are
// opened with, grouped one struct per concern and exposed as functional
// options plus three named presets.
package config

import "time"

// Storage holds the knobs a kvstore.Store is opened with. Several fields
// describe GC behaviour (space_amp_factor, staleness_threshold,
// kv_separated) that only make sense for a true KV-separated LSM engine;
// bbolt has no such tree, so kvstore.Store.Compact treats them as
// documentation of intent rather than levers it can pull — see
// kvstore.Store.Compact and DESIGN.md's bbolt-substitution entry.
type Storage struct {
	DBPath                string
	KVSeparated           bool
	SpaceAmpFactor        float64
	StalenessThreshold    float64
	BlockCacheCapacity    int64
	FsyncFrequency        time.Duration
	CommitBeforeClose     bool
	ManualJournalPersist  bool
}

// Nitrite holds database-level knobs unrelated to the storage backend.
type Nitrite struct {
	SchemaVersion  int
	FieldSeparator string
}

// StorageOption overrides a single Storage field on top of a preset.
type StorageOption func(*Storage)

func WithDBPath(path string) StorageOption             { return func(s *Storage) { s.DBPath = path } }
func WithKVSeparated(v bool) StorageOption             { return func(s *Storage) { s.KVSeparated = v } }
func WithSpaceAmpFactor(v float64) StorageOption       { return func(s *Storage) { s.SpaceAmpFactor = v } }
func WithStalenessThreshold(v float64) StorageOption   { return func(s *Storage) { s.StalenessThreshold = v } }
func WithBlockCacheCapacity(v int64) StorageOption     { return func(s *Storage) { s.BlockCacheCapacity = v } }
func WithFsyncFrequency(v time.Duration) StorageOption { return func(s *Storage) { s.FsyncFrequency = v } }
func WithCommitBeforeClose(v bool) StorageOption       { return func(s *Storage) { s.CommitBeforeClose = v } }
func WithManualJournalPersist(v bool) StorageOption    { return func(s *Storage) { s.ManualJournalPersist = v } }

func apply(s Storage, opts []StorageOption) Storage {
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// ProductionPreset favours durability: frequent fsync, commit-before-close,
// and conservative GC targets.
func ProductionPreset(opts ...StorageOption) Storage {
	return apply(Storage{
		KVSeparated:          true,
		SpaceAmpFactor:       1.5,
		StalenessThreshold:   0.4,
		BlockCacheCapacity:   64 << 20,
		FsyncFrequency:       100 * time.Millisecond,
		CommitBeforeClose:    true,
		ManualJournalPersist: false,
	}, opts)
}

// HighThroughputPreset relaxes fsync cadence and raises GC thresholds to
// favour write throughput over worst-case durability window.
func HighThroughputPreset(opts ...StorageOption) Storage {
	return apply(Storage{
		KVSeparated:          true,
		SpaceAmpFactor:       2.5,
		StalenessThreshold:   0.6,
		BlockCacheCapacity:   256 << 20,
		FsyncFrequency:       time.Second,
		CommitBeforeClose:    false,
		ManualJournalPersist: false,
	}, opts)
}

// LowMemoryPreset minimises the block cache and disables KV separation,
// trading read amplification for a small resident set.
func LowMemoryPreset(opts ...StorageOption) Storage {
	return apply(Storage{
		KVSeparated:          false,
		SpaceAmpFactor:       1.2,
		StalenessThreshold:   0.3,
		BlockCacheCapacity:   4 << 20,
		FsyncFrequency:       250 * time.Millisecond,
		CommitBeforeClose:    true,
		ManualJournalPersist: true,
	}, opts)
}

// DefaultNitrite returns the baseline database-level defaults: schema
// version 1 and "." as the nested-field separator.
func DefaultNitrite() Nitrite {
	return Nitrite{SchemaVersion: 1, FieldSeparator: "."}
}
