package ddl

import (
	"context"
	"fmt"

	gddl "loanprep/internal/ddl"
	"loanprep/internal/storage"
)

// EnsureTable creates the target table, dropping an existing one first when
// recreate is set.
func EnsureTable(ctx context.Context, repo storage.Repository, def gddl.TableDef, recreate bool) error {
	if recreate {
		drop, err := BuildDropTableSQL(def.FQN)
		if err != nil {
			return err
		}
		if err := repo.Exec(ctx, drop); err != nil {
			return fmt.Errorf("postgres ddl: drop: %w", err)
		}
	}
	create, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, create); err != nil {
		return fmt.Errorf("postgres ddl: create: %w", err)
	}
	return nil
}
