package domain

// Dialect identifies a SQL dialect.
type Dialect string

const (
	// PostgreSQL dialect.
	PostgreSQL Dialect = "postgres"
	// MySQL dialect.
	MySQL Dialect = "mysql"
	// SQLite dialect.
	SQLite Dialect = "sqlite"
)

// ParseDialect resolves a provider name, accepting the common aliases.
func ParseDialect(name string) (Dialect, bool) {
	switch name {
	case "postgres", "postgresql", "pgsql", "pg":
		return PostgreSQL, true
	case "mysql", "mariadb":
		return MySQL, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return "", false
}

// IdentifierQuote returns the character used to quote identifiers.
func (d Dialect) IdentifierQuote() byte {
	if d == MySQL {
		return '`'
	}
	return '"'
}

// Features lists the optional clauses a dialect supports.
type Features struct {
	Upsert          bool // ON CONFLICT / ON DUPLICATE KEY
	Returning       bool
	DistinctOn      bool
	NullsOrder      bool // NULLS FIRST / NULLS LAST
	Truncate        bool
	TruncateCascade bool
	FetchFirst      bool
}

// DefaultFeatures returns the features of a current server of the dialect.
func DefaultFeatures(d Dialect) Features {
	switch d {
	case MySQL:
		return Features{Upsert: true, Truncate: true}
	case SQLite:
		return Features{Upsert: true, Returning: true, NullsOrder: true}
	default:
		return Features{
			Upsert:          true,
			Returning:       true,
			DistinctOn:      true,
			NullsOrder:      true,
			Truncate:        true,
			TruncateCascade: true,
			FetchFirst:      true,
		}
	}
}

// SQL is a compiled statement.
type SQL struct {
	Query   string
	Args    map[string]any
	Dialect Dialect
	// Groups maps select-group lookup aliases to their dotted output names.
	Groups map[string]string
}

// Bound reports whether the statement carries named parameters.
func (s SQL) Bound() bool {
	return len(s.Args) > 0
}
