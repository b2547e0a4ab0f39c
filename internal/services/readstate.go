package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"chat-realtime/internal/apperrors"
	"chat-realtime/internal/events"
	"chat-realtime/internal/repositories"
)

// ReadState tracks read receipts. Only the receiver of a message may acknowledge it.
type ReadState struct {
	users    repositories.UserRepository
	messages repositories.MessageRepository
	emitter  *events.Emitter
	logger   *zap.Logger
}

func NewReadState(users repositories.UserRepository, messages repositories.MessageRepository, emitter *events.Emitter, logger *zap.Logger) *ReadState {
	return &ReadState{users: users, messages: messages, emitter: emitter, logger: logger.Named("read_state")}
}

func (s *ReadState) MarkRead(ctx context.Context, messageID, requesterID int64) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return apperrors.NotFound("message not found")
	}
	if err != nil {
		return apperrors.Internal("failed to load message", err)
	}
	if msg.ReceiverID != requesterID {
		return apperrors.Forbidden("only the receiver can mark a message as read")
	}
	if msg.IsRead {
		return nil
	}
	if err := s.messages.MarkRead(ctx, messageID); err != nil {
		return apperrors.Internal("failed to mark message read", err)
	}
	s.emitter.Emit(ctx, events.MessageRead, requesterID, map[string]any{
		"message_id": messageID,
		"sender_id":  msg.SenderID,
	})
	return nil
}

// MarkAllRead acknowledges every unread message from senderID to receiverID.
func (s *ReadState) MarkAllRead(ctx context.Context, senderID, receiverID int64) error {
	if err := s.checkPair(ctx, senderID, receiverID); err != nil {
		return err
	}
	changed, err := s.messages.MarkAllRead(ctx, senderID, receiverID)
	if err != nil {
		return apperrors.Internal("failed to mark messages read", err)
	}
	if changed > 0 {
		s.logger.Debug("marked read", zap.Int64("sender_id", senderID), zap.Int64("receiver_id", receiverID), zap.Int64("count", changed))
		s.emitter.Emit(ctx, events.MessageRead, receiverID, map[string]any{
			"sender_id": senderID,
			"count":     changed,
		})
	}
	return nil
}

// CountUnread counts visible unread messages from senderID to receiverID.
func (s *ReadState) CountUnread(ctx context.Context, senderID, receiverID int64) (int64, error) {
	if err := s.checkPair(ctx, senderID, receiverID); err != nil {
		return 0, err
	}
	count, err := s.messages.CountUnread(ctx, senderID, receiverID)
	if err != nil {
		return 0, apperrors.Internal("failed to count unread messages", err)
	}
	return count, nil
}

func (s *ReadState) checkPair(ctx context.Context, senderID, receiverID int64) error {
	ok, err := s.users.Exists(ctx, senderID)
	if err != nil {
		return apperrors.Internal("failed to look up user", err)
	}
	if !ok {
		return apperrors.NotFound("sender not found")
	}
	if senderID == receiverID {
		return apperrors.InvalidArgument("sender and receiver must differ")
	}
	return nil
}
