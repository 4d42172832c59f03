package migration

import (
	"fmt"

	"github.com/cuemby/nitrite/pkg/errs"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/cuemby/nitrite/pkg/metrics"
)

// Migration connects one schema version to another: Body populates an
// InstructionSet when the migration is selected for execution.
type Migration struct {
	From int
	To   int
	Body func(*InstructionSet) error
}

// Engine holds the registered migrations and the schema version a
// database should converge to. On open, the caller compares the stored
// schema version against TargetVersion and calls Migrate if they differ.
type Engine struct {
	store         *kvstore.Store
	migrations    []Migration
	targetVersion int
}

// NewEngine constructs an Engine bound to store, converging towards
// targetVersion.
func NewEngine(store *kvstore.Store, targetVersion int) *Engine {
	return &Engine{store: store, targetVersion: targetVersion}
}

// Register adds m to the set of known migrations. Order of registration
// does not affect path selection.
func (e *Engine) Register(m Migration) {
	e.migrations = append(e.migrations, m)
}

func (e *Engine) TargetVersion() int { return e.targetVersion }

// Path finds the shortest chain of registered migrations connecting
// current to the engine's target version, permitting both forward and
// backward edges: a user-supplied backward migration is just another
// registered Migration, no step inversion is attempted. Returns an empty,
// nil-error path when current already equals the target.
func (e *Engine) Path(current int) ([]Migration, error) {
	if current == e.targetVersion {
		return nil, nil
	}
	type frame struct {
		version int
		path    []Migration
	}
	visited := map[int]bool{current: true}
	queue := []frame{{version: current}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, m := range e.migrations {
			if m.From != f.version || visited[m.To] {
				continue
			}
			path := make([]Migration, len(f.path), len(f.path)+1)
			copy(path, f.path)
			path = append(path, m)
			if m.To == e.targetVersion {
				return path, nil
			}
			visited[m.To] = true
			queue = append(queue, frame{version: m.To, path: path})
		}
	}
	return nil, errs.New(errs.ValidationError, fmt.Sprintf("no migration path from schema version %d to %d", current, e.targetVersion))
}

// Apply runs every migration in path, in order, executing each queued
// step against the engine's store as it is produced.
func (e *Engine) Apply(path []Migration) error {
	for _, m := range path {
		set := NewInstructionSet(nil)
		if err := m.Body(set); err != nil {
			return errs.Wrap(errs.ValidationError, fmt.Sprintf("migration %d->%d body", m.From, m.To), err)
		}
		for _, step := range set.Steps() {
			if err := e.executeStep(step); err != nil {
				return errs.Wrap(errs.ValidationError, fmt.Sprintf("migration %d->%d step %s", m.From, m.To, step.InstructionType), err)
			}
			metrics.MigrationStepsTotal.WithLabelValues(step.InstructionType.String()).Inc()
		}
	}
	return nil
}

// Migrate selects the path from current to the target version and
// applies it, returning the schema version the database should now be
// stamped with. This is the single entry point a database-open routine
// calls when the stored version differs from the target.
func (e *Engine) Migrate(current int) (int, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.MigrationDuration)

	path, err := e.Path(current)
	if err != nil {
		metrics.RegisterComponent("migration", false, err.Error())
		return current, err
	}
	if len(path) == 0 {
		metrics.RegisterComponent("migration", true, "up to date")
		return current, nil
	}
	if err := e.Apply(path); err != nil {
		metrics.RegisterComponent("migration", false, err.Error())
		return current, err
	}
	metrics.RegisterComponent("migration", true, fmt.Sprintf("converged to schema version %d", e.targetVersion))
	return e.targetVersion, nil
}
