package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	identitydb "github.com/davidhouweling/guilty-spark-sub001/app/modules/identity/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Creating platform_associations table...")
			if _, err := db.NewCreateTable().Model((*identitydb.Association)(nil)).IfNotExists().Exec(ctx); err != nil {
				return err
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Dropping platform_associations table...")
			if _, err := db.NewDropTable().Model((*identitydb.Association)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
			return nil
		},
	)
}
