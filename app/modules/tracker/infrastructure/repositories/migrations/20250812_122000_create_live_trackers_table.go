package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Creating live_trackers table...")
			if _, err := db.NewCreateTable().Model((*trackerdb.Tracker)(nil)).IfNotExists().Exec(ctx); err != nil {
				return err
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Dropping live_trackers table...")
			if _, err := db.NewDropTable().Model((*trackerdb.Tracker)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
			return nil
		},
	)
}
