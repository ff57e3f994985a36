package migration

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed schema/*.sql
var schemaFiles embed.FS

// contexts maps each schema context to its DDL file. The DDL is written to
// be re-runnable, so applying it on every start is safe.
var contexts = map[string]string{
	"workitems":  "schema/workitems.sql",
	"parequests": "schema/parequests.sql",
}

// RunPostgres registers all schema contexts on the gate, applies their DDL
// and marks each context complete as it finishes. The gate stays closed if
// any context fails.
func RunPostgres(ctx context.Context, pool *pgxpool.Pool, gate *Gate) error {
	for name := range contexts {
		gate.RegisterExpected(name)
	}
	for name, file := range contexts {
		ddl, err := schemaFiles.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply schema %s: %w", name, err)
		}
		gate.MarkComplete(name)
		log.Ctx(ctx).Info().Msgf("Applied schema context %s", name)
	}
	return nil
}

// RunMemory registers the schema contexts and marks them complete right
// away: the in-memory stores need no migrations, but the gate semantics
// stay identical to a database-backed deployment.
func RunMemory(gate *Gate) {
	for name := range contexts {
		gate.RegisterExpected(name)
		gate.MarkComplete(name)
	}
}
