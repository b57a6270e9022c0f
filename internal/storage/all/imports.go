// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories and DDL bootstrappers with the storage package:
//
//   - "postgres" (loanprep/internal/storage/postgres)
//   - "mssql"    (loanprep/internal/storage/mssql)
//   - "mysql"    (loanprep/internal/storage/mysql)
//   - "sqlite"   (loanprep/internal/storage/sqlite)
//
// A binary that needs only a subset can import the backends it wants instead.
package all

import (
	_ "loanprep/internal/storage/mssql"
	_ "loanprep/internal/storage/mysql"
	_ "loanprep/internal/storage/postgres"
	_ "loanprep/internal/storage/sqlite"
)
