package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape cmd/nitrite-migrate reads with gopkg.in/yaml.v3.
// The library API itself never reads files; only the CLI does.
type File struct {
	Storage struct {
		DBPath               string  `yaml:"dbPath"`
		KVSeparated          bool    `yaml:"kvSeparated"`
		SpaceAmpFactor       float64 `yaml:"spaceAmpFactor"`
		StalenessThreshold   float64 `yaml:"stalenessThreshold"`
		BlockCacheCapacity   int64   `yaml:"blockCacheCapacity"`
		FsyncFrequencyMillis int64   `yaml:"fsyncFrequencyMillis"`
		CommitBeforeClose    bool    `yaml:"commitBeforeClose"`
		ManualJournalPersist bool    `yaml:"manualJournalPersist"`
	} `yaml:"storage"`
	Nitrite struct {
		SchemaVersion  int    `yaml:"schemaVersion"`
		FieldSeparator string `yaml:"fieldSeparator"`
	} `yaml:"nitrite"`
}

// LoadFile reads and parses a YAML configuration file into a Storage and
// Nitrite pair, applying DefaultNitrite's field separator when the file
// leaves it blank.
func LoadFile(path string) (Storage, Nitrite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Storage{}, Nitrite{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Storage{}, Nitrite{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	storage := Storage{
		DBPath:               f.Storage.DBPath,
		KVSeparated:          f.Storage.KVSeparated,
		SpaceAmpFactor:       f.Storage.SpaceAmpFactor,
		StalenessThreshold:   f.Storage.StalenessThreshold,
		BlockCacheCapacity:   f.Storage.BlockCacheCapacity,
		FsyncFrequency:       time.Duration(f.Storage.FsyncFrequencyMillis) * time.Millisecond,
		CommitBeforeClose:    f.Storage.CommitBeforeClose,
		ManualJournalPersist: f.Storage.ManualJournalPersist,
	}
	nitrite := DefaultNitrite()
	if f.Nitrite.SchemaVersion != 0 {
		nitrite.SchemaVersion = f.Nitrite.SchemaVersion
	}
	if f.Nitrite.FieldSeparator != "" {
		nitrite.FieldSeparator = f.Nitrite.FieldSeparator
	}
	return storage, nitrite, nil
}
