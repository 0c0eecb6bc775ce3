package database

import (
	"fmt"
	"strings"
)

// Dialect controls the SQL flavour the statement builders emit.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and "double quoted" identifiers.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and `backtick` identifiers.
	DialectMySQL

	// DialectSQLite uses ? placeholders and "double quoted" identifiers.
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Placeholder returns the bind parameter marker for the idx-th (1-based) argument.
func (d Dialect) Placeholder(idx int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", idx)
	}
	return "?"
}

// QuoteIdent wraps a SQL identifier in the dialect's quote characters,
// doubling any embedded quote. Identifiers handed to it must already be
// resolved against introspected metadata; quoting is not a substitute for that.
func (d Dialect) QuoteIdent(name string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TextCast renders expr converted to the dialect's text type.
func (d Dialect) TextCast(expr string) string {
	if d == DialectMySQL {
		return "CAST(" + expr + " AS CHAR)"
	}
	return "CAST(" + expr + " AS TEXT)"
}

// likeEscape is the ESCAPE clause matching EscapeLike.
func (d Dialect) likeEscape() string {
	if d == DialectMySQL {
		return ` ESCAPE '\\'`
	}
	return ` ESCAPE '\'`
}

// SupportsReturning reports whether INSERT … RETURNING is available.
func (d Dialect) SupportsReturning() bool {
	return d == DialectPostgres || d == DialectSQLite
}

// EscapeLike escapes the LIKE wildcards in s so it matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
