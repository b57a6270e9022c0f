// Package ddl contains MSSQL-specific helpers for generating DDL.
//
// T-SQL has no CREATE TABLE IF NOT EXISTS, so the builders here wrap the
// generic statement in an OBJECT_ID guard.
package ddl

import (
	"strings"

	gddl "loanprep/internal/ddl"
)

// MapType maps a logical type string into a SQL Server column type. Unknown
// or empty kinds fall back to NVARCHAR(MAX).
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "bool", "boolean":
		return "BIT"
	case "float", "double", "float64":
		return "FLOAT"
	case "date":
		return "DATE"
	case "timestamp", "datetime", "timestamptz":
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

// quoteIdent quotes a single identifier segment using bracket syntax,
// escaping closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func quoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// Dialect renders bracket identifiers. IF [NOT] EXISTS is emulated.
var Dialect = gddl.Dialect{Ident: quoteIdent}
