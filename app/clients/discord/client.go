package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// Discord error codes that mean the target channel or message no longer
// exists or is no longer reachable by the bot.
const (
	codeUnknownChannel = 10003
	codeUnknownMessage = 10008
	codeMissingAccess  = 50001
)

// Session is the subset of discordgo.Session the messenger uses.
type Session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Messenger posts and maintains live tracker messages in Discord channels.
type Messenger struct {
	session Session
	logger  *slog.Logger
}

// NewMessenger creates a Messenger on top of an open discordgo session.
func NewMessenger(session Session, logger *slog.Logger) *Messenger {
	return &Messenger{session: session, logger: logger}
}

func (m *Messenger) CreateMessage(ctx context.Context, channelID sharedtypes.ChannelID, content string) (sharedtypes.MessageID, error) {
	msg, err := m.session.ChannelMessageSend(string(channelID), content)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to create Discord message",
			attr.String("channel_id", string(channelID)),
			attr.Error(err),
		)
		return "", classify(err)
	}
	return sharedtypes.MessageID(msg.ID), nil
}

func (m *Messenger) EditMessage(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID, content string) error {
	_, err := m.session.ChannelMessageEdit(string(channelID), string(messageID), content)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to edit Discord message",
			attr.String("channel_id", string(channelID)),
			attr.String("message_id", string(messageID)),
			attr.Error(err),
		)
		return classify(err)
	}
	return nil
}

func (m *Messenger) DeleteMessage(ctx context.Context, channelID sharedtypes.ChannelID, messageID sharedtypes.MessageID) error {
	err := m.session.ChannelMessageDelete(string(channelID), string(messageID))
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to delete Discord message",
			attr.String("channel_id", string(channelID)),
			attr.String("message_id", string(messageID)),
			attr.Error(err),
		)
		return classify(err)
	}
	return nil
}

// classify maps Discord API failures onto the shared sentinels: rate
// limits and 5xx responses are retryable, unknown-channel and
// missing-access responses mean the target is permanently gone.
func classify(err error) error {
	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("discord rate limited: %w", errs.ErrRetryLater)
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case codeUnknownChannel, codeUnknownMessage, codeMissingAccess:
				return fmt.Errorf("discord target gone (code %d): %w", restErr.Message.Code, errs.ErrTargetGone)
			}
		}
		if restErr.Response != nil && restErr.Response.StatusCode >= 500 {
			return fmt.Errorf("discord server error (status %d): %w", restErr.Response.StatusCode, errs.ErrRetryLater)
		}
		return err
	}

	return err
}
