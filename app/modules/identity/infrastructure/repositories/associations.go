package identitydb

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// AssociationDBImpl is the bun-backed association store.
type AssociationDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*AssociationDBImpl)(nil)

func (db *AssociationDBImpl) GetByDiscordUserIDs(ctx context.Context, ids []sharedtypes.UserID) (map[sharedtypes.UserID]Association, error) {
	if len(ids) == 0 {
		return map[sharedtypes.UserID]Association{}, nil
	}

	var rows []Association
	err := db.DB.NewSelect().
		Model(&rows).
		Where("discord_user_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[sharedtypes.UserID]Association, len(rows))
	for _, row := range rows {
		out[row.DiscordUserID] = row
	}
	return out, nil
}

func (db *AssociationDBImpl) UpsertBulk(ctx context.Context, associations []Association) error {
	if len(associations) == 0 {
		return nil
	}

	now := time.Now()
	for i := range associations {
		associations[i].UpdatedAt = now
		if associations[i].AssociatedAt.IsZero() {
			associations[i].AssociatedAt = now
		}
	}

	_, err := db.DB.NewInsert().
		Model(&associations).
		On("CONFLICT (discord_user_id) DO UPDATE").
		Set("xbox_user_id = EXCLUDED.xbox_user_id").
		Set("reason = EXCLUDED.reason").
		Set("games_retrievable = EXCLUDED.games_retrievable").
		Set("display_name_searched = EXCLUDED.display_name_searched").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
