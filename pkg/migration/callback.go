package migration

import (
	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/errs"
	"github.com/cuemby/nitrite/pkg/kvstore"
)

// CustomInstructionFn receives the open keyspace and may perform any
// operation available through the standard kvstore API.
type CustomInstructionFn func(store *kvstore.Store) error

// ValueConverterFn transforms a single field's stored value.
type ValueConverterFn func(document.Value) (document.Value, error)

// FieldGeneratorFn derives a new field's value from the whole document.
type FieldGeneratorFn func(*document.Document) (document.Value, error)

type callbackKind int

const (
	kindCustomInstruction callbackKind = iota + 1
	kindValueConverter
	kindFieldGenerator
)

// Callback is the Go rendering of MigrationFn: a tagged union over the
// three closure shapes a migration step can carry. Exactly one shape is
// populated per value; calling the wrong Call* accessor returns a
// ValidationError instead of panicking, matching instructions.rs's
// call_custom_instruction/call_value_converter/call_field_generator.
type Callback struct {
	kind              callbackKind
	customInstruction CustomInstructionFn
	valueConverter    ValueConverterFn
	fieldGenerator    FieldGeneratorFn
}

// CustomInstructionFunc wraps f as a database-scope custom instruction.
func CustomInstructionFunc(f CustomInstructionFn) Callback {
	return Callback{kind: kindCustomInstruction, customInstruction: f}
}

// ValueConverterFunc wraps f as a repository field-type converter.
func ValueConverterFunc(f ValueConverterFn) Callback {
	return Callback{kind: kindValueConverter, valueConverter: f}
}

// FieldGeneratorFunc wraps f as a collection/repository add-field generator.
func FieldGeneratorFunc(f FieldGeneratorFn) Callback {
	return Callback{kind: kindFieldGenerator, fieldGenerator: f}
}

// ErrWrongCallbackShape is a ValidationError describing a Callback invoked
// through the accessor for a different shape than it was constructed with.
// The Call* accessors do not return this value; each returns its own
// ValidationError naming the shape it expected.
var ErrWrongCallbackShape = errs.New(errs.ValidationError, "callback invoked through the wrong accessor")

func (c Callback) CallCustomInstruction(store *kvstore.Store) error {
	if c.kind != kindCustomInstruction {
		return errs.New(errs.ValidationError, "expected a CustomInstruction callback")
	}
	return c.customInstruction(store)
}

func (c Callback) CallValueConverter(v document.Value) (document.Value, error) {
	if c.kind != kindValueConverter {
		return document.Value{}, errs.New(errs.ValidationError, "expected a ValueConverter callback")
	}
	return c.valueConverter(v)
}

func (c Callback) CallFieldGenerator(doc *document.Document) (document.Value, error) {
	if c.kind != kindFieldGenerator {
		return document.Value{}, errs.New(errs.ValidationError, "expected a FieldGenerator callback")
	}
	return c.fieldGenerator(doc)
}
