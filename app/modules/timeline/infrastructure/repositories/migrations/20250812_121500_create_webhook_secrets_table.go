package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	timelinedb "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Creating webhook_secrets table...")
			if _, err := db.NewCreateTable().Model((*timelinedb.WebhookSecret)(nil)).IfNotExists().Exec(ctx); err != nil {
				return err
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Dropping webhook_secrets table...")
			if _, err := db.NewDropTable().Model((*timelinedb.WebhookSecret)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
			return nil
		},
	)
}
