package migration

// InstructionType enumerates every migration operation supported by the
// engine, grouped by scope exactly as instructions.rs's InstructionType:
// database (5), collection (7), repository (9).
type InstructionType int

const (
	// Database scope.
	AddUser InstructionType = iota + 1
	ChangePassword
	DropCollection
	DropRepository
	CustomInstruction

	// Collection scope.
	CollectionRename
	AddField
	RenameField
	DeleteField
	DropIndex
	DropAllIndices
	CreateIndex

	// Repository scope.
	RepositoryRename
	RepositoryAddField
	RepositoryRenameField
	RepositoryDeleteField
	RepositoryChangeDataType
	RepositoryChangeIdField
	RepositoryDropIndex
	RepositoryDropAllIndices
	RepositoryCreateIndex
)

func (t InstructionType) String() string {
	switch t {
	case AddUser:
		return "AddUser"
	case ChangePassword:
		return "ChangePassword"
	case DropCollection:
		return "DropCollection"
	case DropRepository:
		return "DropRepository"
	case CustomInstruction:
		return "CustomInstruction"
	case CollectionRename:
		return "CollectionRename"
	case AddField:
		return "AddField"
	case RenameField:
		return "RenameField"
	case DeleteField:
		return "DeleteField"
	case DropIndex:
		return "DropIndex"
	case DropAllIndices:
		return "DropAllIndices"
	case CreateIndex:
		return "CreateIndex"
	case RepositoryRename:
		return "RepositoryRename"
	case RepositoryAddField:
		return "RepositoryAddField"
	case RepositoryRenameField:
		return "RepositoryRenameField"
	case RepositoryDeleteField:
		return "RepositoryDeleteField"
	case RepositoryChangeDataType:
		return "RepositoryChangeDataType"
	case RepositoryChangeIdField:
		return "RepositoryChangeIdField"
	case RepositoryDropIndex:
		return "RepositoryDropIndex"
	case RepositoryDropAllIndices:
		return "RepositoryDropAllIndices"
	case RepositoryCreateIndex:
		return "RepositoryCreateIndex"
	default:
		return "Unknown"
	}
}

// ArgKind tags how many positional arguments a Step's Arguments carries.
type ArgKind int

const (
	ArgNone ArgKind = iota
	ArgSingle
	ArgDouble
	ArgTriple
)

// Arguments is the Go rendering of MigrationArguments: a small
// fixed-arity bag instead of Rust's Arc<dyn Any> erasure, since Go
// generics/any values don't need reference counting to share ownership.
type Arguments struct {
	kind ArgKind
	a, b, c any
}

func NoArgs() Arguments              { return Arguments{kind: ArgNone} }
func SingleArg(a any) Arguments      { return Arguments{kind: ArgSingle, a: a} }
func DoubleArg(a, b any) Arguments   { return Arguments{kind: ArgDouble, a: a, b: b} }
func TripleArg(a, b, c any) Arguments { return Arguments{kind: ArgTriple, a: a, b: b, c: c} }

func (args Arguments) Kind() ArgKind { return args.kind }

func (args Arguments) Single() (any, bool) {
	return args.a, args.kind == ArgSingle
}

func (args Arguments) Double() (any, any, bool) {
	return args.a, args.b, args.kind == ArgDouble
}

func (args Arguments) Triple() (any, any, any, bool) {
	return args.a, args.b, args.c, args.kind == ArgTriple
}

// Step is the Go rendering of MigrationStep: a tagged record describing
// one queued operation plus whichever scope names apply to it.
type Step struct {
	InstructionType InstructionType
	CollectionName  string
	EntityName      string
	Key             string
	Arguments       Arguments
}
