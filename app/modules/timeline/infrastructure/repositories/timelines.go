package timelinedb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	timelineevents "github.com/davidhouweling/guilty-spark-sub001/app/modules/timeline/domain/events"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
)

// TimelineDBImpl is the bun-backed timeline store.
type TimelineDBImpl struct {
	DB  *bun.DB
	TTL time.Duration
}

var _ Repository = (*TimelineDBImpl)(nil)

func (db *TimelineDBImpl) ttl() time.Duration {
	if db.TTL > 0 {
		return db.TTL
	}
	return DefaultTTL
}

func (db *TimelineDBImpl) Get(ctx context.Context, key TimelineKey) ([]timelineevents.TimelineEvent, error) {
	row := &Timeline{}
	err := db.DB.NewSelect().
		Model(row).
		Where("guild_id = ?", key.GuildID).
		Where("channel_id = ?", key.ChannelID).
		Where("source_channel_id = ?", key.SourceChannelID).
		Where("expires_at > ?", time.Now()).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Events, nil
}

func (db *TimelineDBImpl) Append(ctx context.Context, key TimelineKey, event timelineevents.TimelineEvent) error {
	existing, err := db.Get(ctx, key)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	now := time.Now()
	row := &Timeline{
		GuildID:         key.GuildID,
		ChannelID:       key.ChannelID,
		SourceChannelID: key.SourceChannelID,
		Events:          append(existing, event),
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(db.ttl()),
	}

	_, err = db.DB.NewInsert().
		Model(row).
		On("CONFLICT (guild_id, channel_id, source_channel_id) DO UPDATE").
		Set("events = EXCLUDED.events").
		Set("updated_at = EXCLUDED.updated_at").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	return err
}

func (db *TimelineDBImpl) Clear(ctx context.Context, key TimelineKey) error {
	_, err := db.DB.NewDelete().
		Model((*Timeline)(nil)).
		Where("guild_id = ?", key.GuildID).
		Where("channel_id = ?", key.ChannelID).
		Where("source_channel_id = ?", key.SourceChannelID).
		Exec(ctx)
	return err
}

func (db *TimelineDBImpl) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := db.DB.NewDelete().
		Model((*Timeline)(nil)).
		Where("expires_at <= ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
