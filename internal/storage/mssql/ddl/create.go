package ddl

import (
	"fmt"
	"strings"

	gddl "loanprep/internal/ddl"
)

// BuildCreateTableSQL returns a T-SQL script that creates the table if it
// does not already exist:
//
//	IF OBJECT_ID(N'[dbo].[features]', N'U') IS NULL
//	BEGIN
//	CREATE TABLE [dbo].[features] (
//	  [col1] FLOAT NOT NULL
//	);
//	END;
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	create, err := gddl.BuildCreateTableSQL(t, Dialect)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n%s\nEND;", objectName(t.FQN), create), nil
}

// BuildDropTableSQL drops the table when it exists.
func BuildDropTableSQL(fqn string) (string, error) {
	drop, err := gddl.BuildDropTableSQL(fqn, Dialect)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL %s", objectName(fqn), drop), nil
}

// objectName is the quoted FQN escaped for use inside an N'...' literal.
func objectName(fqn string) string {
	return strings.ReplaceAll(Dialect.QuoteFQN(fqn), "'", "''")
}
