package trackerdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// TrackerDBImpl is the bun-backed tracker store.
type TrackerDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*TrackerDBImpl)(nil)

func (db *TrackerDBImpl) Get(ctx context.Context, key TrackerKey) (*Tracker, error) {
	row := &Tracker{}
	err := db.DB.NewSelect().
		Model(row).
		Where("guild_id = ?", key.GuildID).
		Where("channel_id = ?", key.ChannelID).
		Where("user_id = ?", key.UserID).
		Where("queue_number = ?", key.QueueNumber).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (db *TrackerDBImpl) ListByQueue(ctx context.Context, guildID sharedtypes.GuildID, channelID sharedtypes.ChannelID, queueNumber sharedtypes.QueueNumber) ([]*Tracker, error) {
	var rows []*Tracker
	err := db.DB.NewSelect().
		Model(&rows).
		Where("guild_id = ?", guildID).
		Where("channel_id = ?", channelID).
		Where("queue_number = ?", queueNumber).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (db *TrackerDBImpl) Save(ctx context.Context, tracker *Tracker) error {
	now := time.Now()
	tracker.UpdatedAt = now
	if tracker.CreatedAt.IsZero() {
		tracker.CreatedAt = now
	}

	_, err := db.DB.NewInsert().
		Model(tracker).
		On("CONFLICT (guild_id, channel_id, user_id, queue_number) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("check_count = EXCLUDED.check_count").
		Set("last_update_time = EXCLUDED.last_update_time").
		Set("live_message_id = EXCLUDED.live_message_id").
		Set("teams = EXCLUDED.teams").
		Set("team_names = EXCLUDED.team_names").
		Set("substitutions = EXCLUDED.substitutions").
		Set("discovered_matches = EXCLUDED.discovered_matches").
		Set("raw_matches = EXCLUDED.raw_matches").
		Set("error_state = EXCLUDED.error_state").
		Set("metrics = EXCLUDED.metrics").
		Set("last_message_state = EXCLUDED.last_message_state").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (db *TrackerDBImpl) Delete(ctx context.Context, key TrackerKey) error {
	_, err := db.DB.NewDelete().
		Model((*Tracker)(nil)).
		Where("guild_id = ?", key.GuildID).
		Where("channel_id = ?", key.ChannelID).
		Where("user_id = ?", key.UserID).
		Where("queue_number = ?", key.QueueNumber).
		Exec(ctx)
	return err
}
