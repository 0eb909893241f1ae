package store

// Dialect abstracts the SQL syntax differences between the SQLite and
// PostgreSQL backing stores.
type Dialect interface {
	// DriverName returns the driver name for sql.Open().
	DriverName() string

	// Placeholder returns the parameter placeholder for the given
	// position (1-indexed). SQLite ignores the position.
	Placeholder(position int) string

	// BlobType returns the column type for binary payloads.
	BlobType() string

	// InitStatements returns connection initialization statements.
	InitStatements() []string

	// IsDuplicateKeyError reports whether the error is a unique
	// constraint violation.
	IsDuplicateKeyError(err error) bool
}

// DialectType identifies the database dialect.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// NewDialect creates a Dialect for the given type, defaulting to SQLite.
func NewDialect(dialectType DialectType) Dialect {
	switch dialectType {
	case DialectPostgres:
		return &PostgresDialect{}
	default:
		return &SQLiteDialect{}
	}
}
