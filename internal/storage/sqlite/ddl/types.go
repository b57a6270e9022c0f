// Package ddl contains SQLite-specific helpers for generating DDL.
//
// SQLite uses dynamic typing, so MapType prefers the canonical affinities.
package ddl

import (
	"strings"

	gddl "loanprep/internal/ddl"
)

// MapType maps a logical type string (e.g., "int", "float") into a SQLite
// column type.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "INTEGER"
	case "bool", "boolean":
		return "INTEGER" // 0/1
	case "float", "double", "float64", "real":
		return "REAL"
	case "numeric", "decimal":
		return "NUMERIC"
	case "blob", "bytes":
		return "BLOB"
	default:
		return "TEXT"
	}
}

func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// Dialect renders double-quoted identifiers and supports IF [NOT] EXISTS.
// FQN values such as "main.events" have each segment quoted.
var Dialect = gddl.Dialect{Ident: quoteIdent, IfNotExists: true}
