package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/nitrite/pkg/config"
	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/cuemby/nitrite/pkg/migration"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build).
var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	dataDir     string
	configPath  string
	noBackup    bool
	targetFlag  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "nitrite-migrate",
	Short:   "Apply or inspect outstanding Nitrite schema migrations",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("nitrite-migrate version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".", "directory containing the nitrite.db keyspace file")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file (see pkg/config.LoadFile)")

	applyCmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip copying the keyspace file before applying migrations")
	statusCmd.Flags().IntVar(&targetFlag, "target", 0, "override the configured target schema version")
	dryRunCmd.Flags().IntVar(&targetFlag, "target", 0, "override the configured target schema version")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dryRunCmd)
}

func dbPath() string { return filepath.Join(dataDir, "nitrite.db") }

// loadConfig loads storage and Nitrite settings from --config when given,
// falling back to the production preset and default Nitrite settings
// otherwise. dataDir/--data-dir always wins over whatever DBPath the file
// specifies, since dbPath() is the single source of truth for where the
// keyspace file lives.
func loadConfig() (config.Storage, config.Nitrite) {
	storageCfg := config.ProductionPreset()
	nitriteCfg := config.DefaultNitrite()
	if configPath != "" {
		loadedStorage, loadedNitrite, err := config.LoadFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v, using defaults\n", configPath, err)
		} else {
			storageCfg, nitriteCfg = loadedStorage, loadedNitrite
		}
	}
	storageCfg.DBPath = dbPath()
	return storageCfg, nitriteCfg
}

// storedSchemaVersion reads the schema-version record out of the reserved
// meta-map, defaulting to 0 for a never-migrated database.
func storedSchemaVersion(store *kvstore.Store) (int, error) {
	meta, err := store.OpenMap(kvstore.MetaMapName)
	if err != nil {
		return 0, err
	}
	v, err := meta.Get(document.String("schema_version"))
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return 0, nil
	}
	n, _ := v.AsInt64()
	return int(n), nil
}

func stampSchemaVersion(store *kvstore.Store, version int) error {
	meta, err := store.OpenMap(kvstore.MetaMapName)
	if err != nil {
		return err
	}
	return meta.Put(document.String("schema_version"), document.Int64(int64(version)))
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print current vs target schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		storageCfg, nitriteCfg := loadConfig()
		store, err := kvstore.Open(dbPath(), storageCfg, nitriteCfg, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		current, err := storedSchemaVersion(store)
		if err != nil {
			return err
		}
		target := targetFlag
		if target == 0 {
			target = nitriteCfg.SchemaVersion
		}
		fmt.Printf("current schema version: %d\ntarget schema version:  %d\n", current, target)
		if current == target {
			fmt.Println("database is up to date")
		} else {
			fmt.Println("migration required")
		}
		return nil
	},
}

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Show the migration path that would be applied, without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		storageCfg, nitriteCfg := loadConfig()
		store, err := kvstore.Open(dbPath(), storageCfg, nitriteCfg, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		current, err := storedSchemaVersion(store)
		if err != nil {
			return err
		}
		target := targetFlag
		if target == 0 {
			target = nitriteCfg.SchemaVersion
		}
		engine := migration.NewEngine(store, target)
		registerMigrations(engine)

		path, err := engine.Path(current)
		if err != nil {
			return err
		}
		if len(path) == 0 {
			fmt.Println("no migration needed")
			return nil
		}
		fmt.Printf("[dry run] would apply %d migration(s):\n", len(path))
		for _, m := range path {
			fmt.Printf("  %d -> %d\n", m.From, m.To)
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply outstanding migrations against the keyspace at --data-dir",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := dbPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("keyspace not found at %s", path)
		}

		if !noBackup {
			backup := path + ".backup"
			fmt.Printf("creating backup: %s\n", backup)
			if err := copyFile(path, backup); err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}
		}

		storageCfg, nitriteCfg := loadConfig()
		store, err := kvstore.Open(path, storageCfg, nitriteCfg, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		current, err := storedSchemaVersion(store)
		if err != nil {
			return err
		}
		target := targetFlag
		if target == 0 {
			target = nitriteCfg.SchemaVersion
		}
		engine := migration.NewEngine(store, target)
		registerMigrations(engine)

		newVersion, err := engine.Migrate(current)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if err := stampSchemaVersion(store, newVersion); err != nil {
			return err
		}
		fmt.Printf("migrated schema version %d -> %d\n", current, newVersion)
		return nil
	},
}

// registerMigrations is the integration point where an embedding
// application would register its own migration.Migration values; this
// standalone binary has none built in.
func registerMigrations(engine *migration.Engine) {}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
