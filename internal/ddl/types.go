package ddl

// ColumnDef describes a single column in a table definition. Name is the
// logical, unquoted column name; quoting happens at render time.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef holds the table name (optionally dotted, e.g. "schema.table") and
// an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// FromColumns builds a TableDef where every column has the same SQL type and
// is NOT NULL. Engineered feature tables are dense, so this is the only shape
// the sinks need.
func FromColumns(fqn string, columns []string, sqlType string) TableDef {
	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(columns))}
	for i, c := range columns {
		def.Columns[i] = ColumnDef{Name: c, SQLType: sqlType}
	}
	return def
}
