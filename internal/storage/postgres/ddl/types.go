// Package ddl contains Postgres-specific helpers for generating DDL.
package ddl

import (
	"strings"

	gddl "loanprep/internal/ddl"
)

// MapType normalizes a loosely-specified logical type into a Postgres SQL type.
//
//	"int"/"integer"/"bigint"      -> BIGINT
//	"bool"/"boolean"              -> BOOLEAN
//	"float"/"double"/"float64"    -> DOUBLE PRECISION
//	"date"                        -> DATE
//	"timestamp"/"timestamptz"     -> TIMESTAMPTZ
//	everything else               -> TEXT
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return "BIGINT"
	case "bool", "boolean":
		return "BOOLEAN"
	case "float", "double", "float64":
		return "DOUBLE PRECISION"
	case "date":
		return "DATE"
	case "timestamp", "timestamptz":
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// quoteIdent quotes a single identifier segment, doubling embedded quotes.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// Dialect renders Postgres identifiers and supports IF [NOT] EXISTS.
var Dialect = gddl.Dialect{Ident: quoteIdent, IfNotExists: true}
