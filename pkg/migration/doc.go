// Package migration implements versioned schema evolution across the
// database, collection, and repository scopes: an InstructionSet accumulates
// MigrationSteps via three fluent builder families, and an Engine selects
// and executes the chain of registered Migrations connecting a database's
// stored schema version to the target version.
//
// There is no separate object-mapper/repository storage engine here;
// repository-scope instructions execute against a plain kvstore.Map named
// after the entity, the same way collection-scope instructions do.
package migration
