package migration

import (
	"sync"

	"github.com/cuemby/nitrite/pkg/document"
)

// InstructionSet is the root builder for a migration body: it accumulates
// Steps added through three scope-specific builder families into one
// shared, mutex-protected slice, grounded on instructions.rs's
// InstructionSet/DatabaseInstructionBuilder/CollectionInstructionBuilder/
// RepositoryInstructionBuilder.
type InstructionSet struct {
	mu    sync.Mutex
	steps []Step
}

// NewInstructionSet creates an InstructionSet seeded with steps, usually
// empty.
func NewInstructionSet(steps []Step) *InstructionSet {
	cp := make([]Step, len(steps))
	copy(cp, steps)
	return &InstructionSet{steps: cp}
}

// Steps returns a copy of every step added so far, in add order.
func (s *InstructionSet) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s *InstructionSet) addStep(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
}

// ForDatabase returns a builder for database-scope instructions.
func (s *InstructionSet) ForDatabase() *DatabaseBuilder {
	return &DatabaseBuilder{set: s}
}

// ForCollection returns a builder for instructions scoped to collection
// name.
func (s *InstructionSet) ForCollection(name string) *CollectionBuilder {
	return &CollectionBuilder{set: s, name: name}
}

// ForRepository returns a builder for instructions scoped to the entity
// type entityName, with an optional id-field key.
func (s *InstructionSet) ForRepository(entityName, key string) *RepositoryBuilder {
	return &RepositoryBuilder{set: s, entityName: entityName, key: key}
}

// DatabaseBuilder builds database-scope migration steps: user management
// and collection/repository lifecycle.
type DatabaseBuilder struct {
	set *InstructionSet
}

func (b *DatabaseBuilder) AddUser(username, password string) *DatabaseBuilder {
	b.set.addStep(Step{InstructionType: AddUser, Arguments: DoubleArg(username, password)})
	return b
}

func (b *DatabaseBuilder) ChangePassword(username, oldPassword, newPassword string) *DatabaseBuilder {
	b.set.addStep(Step{InstructionType: ChangePassword, Arguments: TripleArg(username, oldPassword, newPassword)})
	return b
}

func (b *DatabaseBuilder) DropCollection(collectionName string) *DatabaseBuilder {
	b.set.addStep(Step{InstructionType: DropCollection, CollectionName: collectionName, Arguments: SingleArg(collectionName)})
	return b
}

func (b *DatabaseBuilder) DropRepository(entityName, key string) *DatabaseBuilder {
	step := Step{InstructionType: DropRepository, EntityName: entityName, Key: key}
	if key != "" {
		step.Arguments = DoubleArg(entityName, key)
	} else {
		step.Arguments = SingleArg(entityName)
	}
	b.set.addStep(step)
	return b
}

// CustomInstruction queues a callback handed the open keyspace when
// executed.
func (b *DatabaseBuilder) CustomInstruction(fn CustomInstructionFn) *DatabaseBuilder {
	b.set.addStep(Step{InstructionType: CustomInstruction, Arguments: SingleArg(CustomInstructionFunc(fn))})
	return b
}

// CollectionBuilder builds collection-scope migration steps.
type CollectionBuilder struct {
	set  *InstructionSet
	name string
}

func (b *CollectionBuilder) Name() string { return b.name }

func (b *CollectionBuilder) Rename(newName string) *CollectionBuilder {
	b.set.addStep(Step{InstructionType: CollectionRename, CollectionName: b.name, Arguments: SingleArg(newName)})
	return b
}

// AddField adds fieldName to every document. When defaultValue is set it
// takes precedence over generator; with neither, the step leaves every
// document unchanged and no field is added.
func (b *CollectionBuilder) AddField(fieldName string, defaultValue *document.Value, generator FieldGeneratorFn) *CollectionBuilder {
	step := Step{InstructionType: AddField, CollectionName: b.name}
	switch {
	case defaultValue != nil:
		step.Arguments = DoubleArg(fieldName, *defaultValue)
	case generator != nil:
		step.Arguments = DoubleArg(fieldName, FieldGeneratorFunc(generator))
	default:
		step.Arguments = SingleArg(fieldName)
	}
	b.set.addStep(step)
	return b
}

func (b *CollectionBuilder) RenameField(oldName, newName string) *CollectionBuilder {
	b.set.addStep(Step{InstructionType: RenameField, CollectionName: b.name, Arguments: DoubleArg(oldName, newName)})
	return b
}

func (b *CollectionBuilder) DeleteField(fieldName string) *CollectionBuilder {
	b.set.addStep(Step{InstructionType: DeleteField, CollectionName: b.name, Arguments: SingleArg(fieldName)})
	return b
}

func (b *CollectionBuilder) DropIndex(fieldNames []string) *CollectionBuilder {
	b.set.addStep(Step{InstructionType: DropIndex, CollectionName: b.name, Arguments: SingleArg(append([]string{}, fieldNames...))})
	return b
}

func (b *CollectionBuilder) DropAllIndices() *CollectionBuilder {
	b.set.addStep(Step{InstructionType: DropAllIndices, CollectionName: b.name, Arguments: NoArgs()})
	return b
}

func (b *CollectionBuilder) CreateIndex(indexType string, fieldNames []string) *CollectionBuilder {
	b.set.addStep(Step{InstructionType: CreateIndex, CollectionName: b.name, Arguments: DoubleArg(indexType, append([]string{}, fieldNames...))})
	return b
}

// RepositoryBuilder builds repository-scope migration steps. The
// object-mapper/repository layer itself is out of scope for this
// implementation; these steps execute against a plain kvstore.Map named
// after entityName, the same as collection-scope steps.
type RepositoryBuilder struct {
	set        *InstructionSet
	entityName string
	key        string
}

func (b *RepositoryBuilder) EntityName() string { return b.entityName }
func (b *RepositoryBuilder) Key() string         { return b.key }

func (b *RepositoryBuilder) RenameRepository(newEntityName, newKey string) *RepositoryBuilder {
	b.set.addStep(Step{
		InstructionType: RepositoryRename,
		EntityName:      b.entityName,
		Key:             b.key,
		Arguments:       DoubleArg(newEntityName, newKey),
	})
	return b
}

func (b *RepositoryBuilder) AddField(fieldName string, defaultValue *document.Value, generator FieldGeneratorFn) *RepositoryBuilder {
	step := Step{InstructionType: RepositoryAddField, EntityName: b.entityName, Key: b.key}
	switch {
	case defaultValue != nil:
		step.Arguments = DoubleArg(fieldName, *defaultValue)
	case generator != nil:
		step.Arguments = DoubleArg(fieldName, FieldGeneratorFunc(generator))
	default:
		step.Arguments = SingleArg(fieldName)
	}
	b.set.addStep(step)
	return b
}

func (b *RepositoryBuilder) RenameField(oldName, newName string) *RepositoryBuilder {
	b.set.addStep(Step{InstructionType: RepositoryRenameField, EntityName: b.entityName, Key: b.key, Arguments: DoubleArg(oldName, newName)})
	return b
}

func (b *RepositoryBuilder) DeleteField(fieldName string) *RepositoryBuilder {
	b.set.addStep(Step{InstructionType: RepositoryDeleteField, EntityName: b.entityName, Key: b.key, Arguments: SingleArg(fieldName)})
	return b
}

func (b *RepositoryBuilder) ChangeDataType(fieldName string, converter ValueConverterFn) *RepositoryBuilder {
	b.set.addStep(Step{
		InstructionType: RepositoryChangeDataType,
		EntityName:      b.entityName,
		Key:             b.key,
		Arguments:       DoubleArg(fieldName, ValueConverterFunc(converter)),
	})
	return b
}

func (b *RepositoryBuilder) ChangeIdField(oldFieldNames, newFieldNames []string) *RepositoryBuilder {
	b.set.addStep(Step{
		InstructionType: RepositoryChangeIdField,
		EntityName:      b.entityName,
		Key:             b.key,
		Arguments:       DoubleArg(append([]string{}, oldFieldNames...), append([]string{}, newFieldNames...)),
	})
	return b
}

func (b *RepositoryBuilder) DropIndex(fieldNames []string) *RepositoryBuilder {
	b.set.addStep(Step{InstructionType: RepositoryDropIndex, EntityName: b.entityName, Key: b.key, Arguments: SingleArg(append([]string{}, fieldNames...))})
	return b
}

func (b *RepositoryBuilder) DropAllIndices() *RepositoryBuilder {
	b.set.addStep(Step{InstructionType: RepositoryDropAllIndices, EntityName: b.entityName, Key: b.key, Arguments: NoArgs()})
	return b
}

func (b *RepositoryBuilder) CreateIndex(indexType string, fieldNames []string) *RepositoryBuilder {
	b.set.addStep(Step{
		InstructionType: RepositoryCreateIndex,
		EntityName:      b.entityName,
		Key:             b.key,
		Arguments:       DoubleArg(indexType, append([]string{}, fieldNames...)),
	})
	return b
}
