package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"chat-realtime/internal/apperrors"
	"chat-realtime/internal/events"
	"chat-realtime/internal/models"
	"chat-realtime/internal/observability"
	"chat-realtime/internal/protocol"
	"chat-realtime/internal/repositories"
)

const reactionLockStripes = 64

// Reactions toggles and tallies emoji reactions. A message carries at most one
// distinct emoji: adding a new one clears every existing reaction first.
type Reactions struct {
	users     repositories.UserRepository
	messages  repositories.MessageRepository
	reactions repositories.ReactionRepository
	delivery  Delivery
	emitter   *events.Emitter
	logger    *zap.Logger

	// find, delete and insert for one message run under its stripe.
	locks [reactionLockStripes]sync.Mutex
}

func NewReactions(users repositories.UserRepository, messages repositories.MessageRepository, reactions repositories.ReactionRepository, delivery Delivery, emitter *events.Emitter, logger *zap.Logger) *Reactions {
	return &Reactions{
		users:     users,
		messages:  messages,
		reactions: reactions,
		delivery:  delivery,
		emitter:   emitter,
		logger:    logger.Named("reactions"),
	}
}

func (s *Reactions) lockFor(messageID int64) *sync.Mutex {
	return &s.locks[uint64(messageID)%reactionLockStripes]
}

// Toggle removes the caller's emoji if present, otherwise replaces whatever is
// on the message with it. The result goes to both participants.
func (s *Reactions) Toggle(ctx context.Context, messageID, userID int64, emoji string) (models.ReactionResult, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return models.ReactionResult{}, apperrors.InvalidArgument("emoji is required")
	}

	msg, err := s.messages.FindByID(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) || (err == nil && msg.IsDeleted) {
		return models.ReactionResult{}, apperrors.NotFound("message not found")
	}
	if err != nil {
		return models.ReactionResult{}, apperrors.Internal("failed to load message", err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.ReactionResult{}, apperrors.NotFound("user not found")
	}
	if err != nil {
		return models.ReactionResult{}, apperrors.Internal("failed to look up user", err)
	}

	action, tally, err := s.apply(ctx, messageID, userID, emoji)
	if err != nil {
		s.logger.Error("toggle reaction failed", zap.Int64("message_id", messageID), zap.Int64("user_id", userID), zap.Error(err))
		return models.ReactionResult{}, apperrors.Internal("failed to toggle reaction", err)
	}
	observability.IncReactionToggle(string(action))

	result := models.ReactionResult{
		MessageID:       messageID,
		UserID:          userID,
		UserDisplayName: user.DisplayName,
		Emoji:           emoji,
		Action:          action,
		Reactions:       tally,
	}
	if frame, err := protocol.Encode(protocol.KindReactionUpdate, result); err == nil {
		s.delivery.Send(msg.SenderID, frame)
		s.delivery.Send(msg.ReceiverID, frame)
	}
	s.emitter.Emit(ctx, events.ReactionToggled, userID, result)
	return result, nil
}

func (s *Reactions) apply(ctx context.Context, messageID, userID int64, emoji string) (models.ReactionAction, map[string]int, error) {
	mu := s.lockFor(messageID)
	mu.Lock()
	defer mu.Unlock()

	var action models.ReactionAction
	existing, err := s.reactions.Find(ctx, messageID, userID, emoji)
	switch {
	case err == nil:
		if err := s.reactions.Delete(ctx, existing.ID); err != nil {
			return "", nil, err
		}
		action = models.ReactionRemove
	case errors.Is(err, repositories.ErrReactionNotFound):
		if err := s.reactions.DeleteAll(ctx, messageID); err != nil {
			return "", nil, err
		}
		if _, err := s.reactions.Save(ctx, models.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}); err != nil {
			return "", nil, err
		}
		action = models.ReactionAdd
	default:
		return "", nil, err
	}

	tally, err := s.reactions.CountByEmoji(ctx, messageID)
	if err != nil {
		return "", nil, err
	}
	return action, tally, nil
}

// Counts returns the emoji tally of a message. Deleted messages tally empty.
func (s *Reactions) Counts(ctx context.Context, messageID int64) (map[string]int, error) {
	if _, err := s.messages.FindByID(ctx, messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return nil, apperrors.NotFound("message not found")
		}
		return nil, apperrors.Internal("failed to load message", err)
	}
	tally, err := s.reactions.CountByEmoji(ctx, messageID)
	if err != nil {
		return nil, apperrors.Internal("failed to count reactions", err)
	}
	return tally, nil
}

// List returns the stored reaction rows of a message, including those of a deleted message.
func (s *Reactions) List(ctx context.Context, messageID int64) ([]models.Reaction, error) {
	rows, err := s.reactions.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, apperrors.Internal("failed to list reactions", err)
	}
	return rows, nil
}
