package errs

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// ResumptionClaims is the serializable retry payload embedded in a rendered
// reconstruction error. It carries everything a retry needs so the
// (possibly already-cleared) timeline never has to be re-read.
type ResumptionClaims struct {
	GuildID       sharedtypes.GuildID        `json:"guild_id"`
	ChannelID     sharedtypes.ChannelID      `json:"channel_id"`
	QueueNumber   sharedtypes.QueueNumber    `json:"queue_number"`
	StartedAt     time.Time                  `json:"started_at"`
	CompletedAt   time.Time                  `json:"completed_at"`
	Teams         [][]sharedtypes.MatchPlayer `json:"teams"`
	Substitutions []sharedtypes.Substitution `json:"substitutions,omitempty"`

	jwt.RegisteredClaims
}

// SignResumptionToken serializes claims as an HS256 JWT. The secret is the
// caller's per-guild signing key; tokens expire with the timeline TTL so a
// stale retry cannot outlive the data it describes.
func SignResumptionToken(claims ResumptionClaims, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign resumption token: %w", err)
	}
	return signed, nil
}

// ParseResumptionToken verifies and decodes a resumption token.
func ParseResumptionToken(tokenString string, secret []byte) (*ResumptionClaims, error) {
	claims := &ResumptionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse resumption token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("resumption token is not valid")
	}
	return claims, nil
}
