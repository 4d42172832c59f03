package migration

import (
	"fmt"

	"github.com/cuemby/nitrite/pkg/document"
	"github.com/cuemby/nitrite/pkg/errs"
	"github.com/cuemby/nitrite/pkg/kvstore"
	"github.com/cuemby/nitrite/pkg/nlog"
)

const usersMapName = "$nitrite_users"

// executeStep dispatches a single queued Step to its concrete effect
// against e.store. The index module (drop/create index) lives outside
// this package, so index-scoped instructions are logged and otherwise
// no-ops, the same stance pkg/collection.NoopIndexWriter takes.
func (e *Engine) executeStep(step Step) error {
	switch step.InstructionType {
	case AddUser:
		username, password, ok := step.Arguments.Double()
		if !ok {
			return errs.New(errs.ValidationError, "AddUser step missing username/password arguments")
		}
		return e.addUser(username.(string), password.(string))

	case ChangePassword:
		username, oldPw, newPw, ok := step.Arguments.Triple()
		if !ok {
			return errs.New(errs.ValidationError, "ChangePassword step missing arguments")
		}
		return e.changePassword(username.(string), oldPw.(string), newPw.(string))

	case DropCollection:
		return e.dropMap(step.CollectionName)

	case DropRepository:
		return e.dropMap(step.EntityName)

	case CustomInstruction:
		arg, ok := step.Arguments.Single()
		if !ok {
			return errs.New(errs.ValidationError, "CustomInstruction step missing callback argument")
		}
		cb := arg.(Callback)
		return cb.CallCustomInstruction(e.store)

	case CollectionRename:
		newName, ok := step.Arguments.Single()
		if !ok {
			return errs.New(errs.ValidationError, "CollectionRename step missing new name")
		}
		return e.renameMap(step.CollectionName, newName.(string))

	case RepositoryRename:
		newEntityName, _, ok := step.Arguments.Double()
		if !ok {
			return errs.New(errs.ValidationError, "RepositoryRename step missing arguments")
		}
		return e.renameMap(step.EntityName, newEntityName.(string))

	case AddField:
		return e.execAddField(step.CollectionName, step.Arguments)
	case RepositoryAddField:
		return e.execAddField(step.EntityName, step.Arguments)

	case RenameField:
		return e.execRenameField(step.CollectionName, step.Arguments)
	case RepositoryRenameField:
		return e.execRenameField(step.EntityName, step.Arguments)

	case DeleteField:
		return e.execDeleteField(step.CollectionName, step.Arguments)
	case RepositoryDeleteField:
		return e.execDeleteField(step.EntityName, step.Arguments)

	case RepositoryChangeDataType:
		return e.execChangeDataType(step.EntityName, step.Arguments)

	case RepositoryChangeIdField:
		return e.execChangeIdField(step.EntityName, step.Arguments)

	case DropIndex, DropAllIndices, CreateIndex, RepositoryDropIndex, RepositoryDropAllIndices, RepositoryCreateIndex:
		nlog.Debug(fmt.Sprintf("migration: %s is a no-op, index maintenance is outside this engine's scope", step.InstructionType))
		return nil

	default:
		return errs.New(errs.ValidationError, fmt.Sprintf("unknown instruction type %s", step.InstructionType))
	}
}

func (e *Engine) addUser(username, password string) error {
	users, err := e.store.OpenMap(usersMapName)
	if err != nil {
		return err
	}
	doc, err := document.NewDocument().Put("password", document.String(password))
	if err != nil {
		return err
	}
	return users.Put(document.String(username), document.DocumentValue(doc))
}

func (e *Engine) changePassword(username, oldPassword, newPassword string) error {
	users, err := e.store.OpenMap(usersMapName)
	if err != nil {
		return err
	}
	v, err := users.Get(document.String(username))
	if err != nil {
		return err
	}
	doc, ok := v.AsDocument()
	if !ok {
		return errs.New(errs.ValidationError, fmt.Sprintf("no such user %q", username))
	}
	stored, err := doc.Get("password")
	if err != nil {
		return err
	}
	cur, _ := stored.AsString()
	if cur != oldPassword {
		return errs.New(errs.ValidationError, "old password does not match")
	}
	doc, err = doc.Put("password", document.String(newPassword))
	if err != nil {
		return err
	}
	return users.Put(document.String(username), document.DocumentValue(doc))
}

func (e *Engine) dropMap(name string) error {
	m, err := e.store.OpenMap(name)
	if err != nil {
		return err
	}
	return m.Dispose()
}

// renameMap preserves every document under a new map name: every entry is
// copied across in one PutAll, then the old bucket is dropped. Index
// preservation itself is out of scope, see executeStep's doc comment.
func (e *Engine) renameMap(oldName, newName string) error {
	oldMap, err := e.store.OpenMap(oldName)
	if err != nil {
		return err
	}
	newMap, err := e.store.OpenMap(newName)
	if err != nil {
		return err
	}
	seq, err := oldMap.Entries()
	if err != nil {
		return err
	}
	var entries []kvstore.Entry
	seq(func(k, v document.Value) bool {
		entries = append(entries, kvstore.Entry{Key: k, Value: v})
		return true
	})
	if len(entries) > 0 {
		if err := newMap.PutAll(entries); err != nil {
			return err
		}
	}
	return oldMap.Dispose()
}

func (e *Engine) execAddField(mapName string, args Arguments) error {
	fieldName, rest, hasRest := args.Double()
	if fieldName == nil {
		return errs.New(errs.ValidationError, "AddField step missing field name")
	}
	name := fieldName.(string)

	var defaultValue *document.Value
	var generator Callback
	hasGenerator := false
	if hasRest {
		switch v := rest.(type) {
		case document.Value:
			defaultValue = &v
		case Callback:
			generator = v
			hasGenerator = true
		}
	}

	return e.eachDocument(mapName, func(doc *document.Document) (*document.Document, error) {
		switch {
		case defaultValue != nil:
			return doc.Put(name, *defaultValue)
		case hasGenerator:
			val, err := generator.CallFieldGenerator(doc)
			if err != nil {
				return nil, err
			}
			return doc.Put(name, val)
		default:
			return doc, nil
		}
	})
}

func (e *Engine) execRenameField(mapName string, args Arguments) error {
	oldName, newName, ok := args.Double()
	if !ok {
		return errs.New(errs.ValidationError, "RenameField step missing old/new names")
	}
	return e.eachDocument(mapName, func(doc *document.Document) (*document.Document, error) {
		val, err := doc.Get(oldName.(string))
		if err != nil {
			return nil, err
		}
		if val.IsNull() {
			return doc, nil
		}
		doc, err = doc.Remove(oldName.(string))
		if err != nil {
			return nil, err
		}
		return doc.Put(newName.(string), val)
	})
}

func (e *Engine) execDeleteField(mapName string, args Arguments) error {
	fieldName, ok := args.Single()
	if !ok {
		return errs.New(errs.ValidationError, "DeleteField step missing field name")
	}
	return e.eachDocument(mapName, func(doc *document.Document) (*document.Document, error) {
		return doc.Remove(fieldName.(string))
	})
}

func (e *Engine) execChangeDataType(mapName string, args Arguments) error {
	fieldName, converterArg, ok := args.Double()
	if !ok {
		return errs.New(errs.ValidationError, "RepositoryChangeDataType step missing arguments")
	}
	converter := converterArg.(Callback)
	name := fieldName.(string)
	return e.eachDocument(mapName, func(doc *document.Document) (*document.Document, error) {
		val, err := doc.Get(name)
		if err != nil {
			return nil, err
		}
		if val.IsNull() {
			return doc, nil
		}
		converted, err := converter.CallValueConverter(val)
		if err != nil {
			return nil, err
		}
		return doc.Put(name, converted)
	})
}

func (e *Engine) execChangeIdField(mapName string, args Arguments) error {
	oldFields, newFields, ok := args.Double()
	if !ok {
		return errs.New(errs.ValidationError, "RepositoryChangeIdField step missing arguments")
	}
	oldNames := oldFields.([]string)
	newNames := newFields.([]string)
	if len(oldNames) != len(newNames) {
		return errs.New(errs.ValidationError, "RepositoryChangeIdField requires matching old/new field counts")
	}
	return e.eachDocument(mapName, func(doc *document.Document) (*document.Document, error) {
		var err error
		for i := range oldNames {
			val, getErr := doc.Get(oldNames[i])
			if getErr != nil {
				return nil, getErr
			}
			if val.IsNull() {
				continue
			}
			if doc, err = doc.Remove(oldNames[i]); err != nil {
				return nil, err
			}
			if doc, err = doc.Put(newNames[i], val); err != nil {
				return nil, err
			}
		}
		return doc, nil
	})
}

// eachDocument scans every entry of the named map, applies transform to
// document-valued entries, and writes changed documents back with a
// single PutAll.
func (e *Engine) eachDocument(mapName string, transform func(*document.Document) (*document.Document, error)) error {
	m, err := e.store.OpenMap(mapName)
	if err != nil {
		return err
	}
	seq, err := m.Entries()
	if err != nil {
		return err
	}
	var entries []kvstore.Entry
	var iterErr error
	seq(func(k, v document.Value) bool {
		doc, ok := v.AsDocument()
		if !ok {
			return true
		}
		updated, err := transform(doc)
		if err != nil {
			iterErr = err
			return false
		}
		entries = append(entries, kvstore.Entry{Key: k, Value: document.DocumentValue(updated)})
		return true
	})
	if iterErr != nil {
		return iterErr
	}
	if len(entries) == 0 {
		return nil
	}
	return m.PutAll(entries)
}
