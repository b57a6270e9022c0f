// Package ddl contains MySQL-specific helpers for generating DDL.
package ddl

import (
	"strings"

	gddl "loanprep/internal/ddl"
)

// MapType maps a logical type string into a MySQL column type.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "bool", "boolean":
		return "TINYINT(1)"
	case "float", "double", "float64":
		return "DOUBLE"
	case "date":
		return "DATE"
	case "timestamp", "datetime":
		return "DATETIME(6)"
	default:
		return "LONGTEXT"
	}
}

// quoteIdent backtick-quotes an identifier, doubling embedded backticks.
func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// Dialect renders backtick identifiers and supports IF [NOT] EXISTS.
var Dialect = gddl.Dialect{Ident: quoteIdent, IfNotExists: true}
