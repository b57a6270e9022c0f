// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE and DROP TABLE statements from that model.
//
// Dialect differences (identifier quoting, IF [NOT] EXISTS support) are passed
// in through a Dialect value. Backend packages such as
// internal/storage/postgres/ddl define their Dialect and type mapping and
// wrap the builders here.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect captures the few syntax differences between SQL backends.
type Dialect struct {
	// Ident quotes a single identifier segment. nil emits names verbatim.
	Ident func(string) string

	// IfNotExists adds IF NOT EXISTS to CREATE TABLE and IF EXISTS to DROP
	// TABLE.
	IfNotExists bool
}

// QuoteFQN quotes each dot-separated segment of name.
func (d Dialect) QuoteFQN(name string) string {
	parts := strings.Split(strings.TrimSpace(name), ".")
	for i, p := range parts {
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, ".")
}

func (d Dialect) quote(id string) string {
	if d.Ident == nil {
		return id
	}
	return d.Ident(id)
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty.
//   - Each column must have a non-empty Name and SQLType.
//   - A column is rendered as: <Name> <SQLType> [NOT NULL]
//
// Column names are never trimmed or rewritten beyond quoting: engineered
// indicator names may contain spaces and punctuation.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		if _, dup := seen[c.Name]; dup {
			return "", fmt.Errorf("ddl: duplicate column %s in table %s", c.Name, fqn)
		}
		seen[c.Name] = struct{}{}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", c.Name)
		}

		var sb strings.Builder
		sb.WriteString(d.quote(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())
	}

	create := "CREATE TABLE "
	if d.IfNotExists {
		create += "IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n);", create, d.QuoteFQN(fqn), strings.Join(cols, ",\n  ")), nil
}

// BuildDropTableSQL renders DROP TABLE for fqn.
func BuildDropTableSQL(fqn string, d Dialect) (string, error) {
	if strings.TrimSpace(fqn) == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if d.IfNotExists {
		return "DROP TABLE IF EXISTS " + d.QuoteFQN(fqn) + ";", nil
	}
	return "DROP TABLE " + d.QuoteFQN(fqn) + ";", nil
}
