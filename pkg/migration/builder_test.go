package migration

import (
	"testing"

	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionSetStartsEmpty(t *testing.T) {
	set := NewInstructionSet(nil)
	assert.Empty(t, set.Steps())
}

func TestInstructionSetSeeded(t *testing.T) {
	seed := []Step{{InstructionType: AddUser, Arguments: DoubleArg("admin", "pw")}}
	set := NewInstructionSet(seed)
	steps := set.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, AddUser, steps[0].InstructionType)
}

func TestCollectionBuilderName(t *testing.T) {
	set := NewInstructionSet(nil)
	b := set.ForCollection("user_data_v2.0")
	assert.Equal(t, "user_data_v2.0", b.Name())
}

func TestRepositoryBuilderEntityAndKey(t *testing.T) {
	set := NewInstructionSet(nil)
	b := set.ForRepository("com.example.User", "userId")
	assert.Equal(t, "com.example.User", b.EntityName())
	assert.Equal(t, "userId", b.Key())
}

func TestComplexMigrationScenarioOrder(t *testing.T) {
	set := NewInstructionSet(nil)

	set.ForDatabase().AddUser("admin", "secure_pass")

	col := set.ForCollection("legacy_users")
	one := document.Int(1)
	col.Rename("users").
		AddField("version", &one, nil).
		CreateIndex("UNIQUE", []string{"email"})

	repo := set.ForRepository("OldUserRepo", "id")
	trueVal := document.Bool(true)
	repo.RenameRepository("UserRepository", "userId").
		ChangeIdField([]string{"id"}, []string{"userId"}).
		AddField("migrated", &trueVal, nil)

	steps := set.Steps()
	require.Len(t, steps, 7)

	wantOrder := []InstructionType{
		AddUser, CollectionRename, AddField, CreateIndex,
		RepositoryRename, RepositoryChangeIdField, RepositoryAddField,
	}
	for i, want := range wantOrder {
		assert.Equal(t, want, steps[i].InstructionType, "step %d", i)
	}
}

func TestAddFieldPrefersDefaultOverGenerator(t *testing.T) {
	set := NewInstructionSet(nil)
	val := document.Int(42)
	called := false
	set.ForCollection("things").AddField("n", &val, func(*document.Document) (document.Value, error) {
		called = true
		return document.Null, nil
	})
	steps := set.Steps()
	require.Len(t, steps, 1)
	_, rest, ok := steps[0].Arguments.Double()
	require.True(t, ok)
	_, isValue := rest.(document.Value)
	assert.True(t, isValue)
	assert.False(t, called)
}

func TestCallbackWrongShapeReturnsValidationError(t *testing.T) {
	cb := CustomInstructionFunc(func(*kvstore.Store) error { return nil })
	_, err := cb.CallValueConverter(document.Null)
	require.Error(t, err)
}
