package timelinedb

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// HashSecret computes the stored form of a webhook secret: HMAC-SHA256 of
// the secret keyed by the guild id, hex-encoded.
func HashSecret(guildID sharedtypes.GuildID, secret string) string {
	mac := hmac.New(sha256.New, []byte(guildID))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySecret compares a presented secret against a stored hash in
// constant time.
func VerifySecret(guildID sharedtypes.GuildID, presented, storedHash string) bool {
	return hmac.Equal([]byte(HashSecret(guildID, presented)), []byte(storedHash))
}

// SecretDBImpl is the bun-backed webhook secret store.
type SecretDBImpl struct {
	DB *bun.DB
}

var _ SecretRepository = (*SecretDBImpl)(nil)

func (db *SecretDBImpl) GetSecretHash(ctx context.Context, guildID sharedtypes.GuildID, channelID sharedtypes.ChannelID) (string, error) {
	row := &WebhookSecret{}
	err := db.DB.NewSelect().
		Model(row).
		Where("guild_id = ?", guildID).
		Where("channel_id = ?", channelID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errs.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return row.SecretHash, nil
}

func (db *SecretDBImpl) StoreSecretHash(ctx context.Context, guildID sharedtypes.GuildID, channelID sharedtypes.ChannelID, hash string) error {
	now := time.Now()
	row := &WebhookSecret{
		GuildID:    guildID,
		ChannelID:  channelID,
		SecretHash: hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := db.DB.NewInsert().
		Model(row).
		On("CONFLICT (guild_id, channel_id) DO UPDATE").
		Set("secret_hash = EXCLUDED.secret_hash").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
