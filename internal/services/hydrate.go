package services

import (
	"context"

	"go.uber.org/zap"

	"chat-realtime/internal/models"
	"chat-realtime/internal/repositories"
)

// Delivery pushes an encoded frame to a user's live session, if any.
type Delivery interface {
	Send(userID int64, frame []byte) bool
}

type hydrator struct {
	users     repositories.UserRepository
	reactions repositories.ReactionRepository
	logger    *zap.Logger
}

// one builds the response view of msg. Lookup failures degrade to an empty
// display name or tally rather than failing the caller.
func (h hydrator) one(ctx context.Context, msg models.Message, names map[int64]string) models.MessageResponse {
	name, ok := names[msg.SenderID]
	if !ok {
		if user, err := h.users.FindByID(ctx, msg.SenderID); err == nil {
			name = user.DisplayName
		} else {
			h.logger.Warn("sender lookup failed", zap.Int64("user_id", msg.SenderID), zap.Error(err))
		}
		names[msg.SenderID] = name
	}

	tally, err := h.reactions.CountByEmoji(ctx, msg.ID)
	if err != nil {
		h.logger.Warn("reaction tally failed", zap.Int64("message_id", msg.ID), zap.Error(err))
	}
	return models.NewMessageResponse(msg, name, tally)
}

func (h hydrator) many(ctx context.Context, msgs []models.Message) []models.MessageResponse {
	names := map[int64]string{}
	out := make([]models.MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, h.one(ctx, msg, names))
	}
	return out
}
