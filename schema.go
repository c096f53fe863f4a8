package upkeep

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// schemaModels lists every persisted entity, dependencies first
var schemaModels = []any{
	(*User)(nil),
	(*Organization)(nil),
	(*House)(nil),
	(*HouseMember)(nil),
	(*Device)(nil),
	(*MaintenanceType)(nil),
	(*MaintenanceInstance)(nil),
	(*RefreshToken)(nil),
	(*AuditLog)(nil),
}

// EnsureSchema creates any missing tables for the registered models. Full
// migration tooling is a deployment concern; this bootstrap covers embedded
// databases and test setups.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create schema")
		}
	}
	return nil
}
