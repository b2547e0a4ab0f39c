// Package services holds the chat core: message routing, reactions and read state.
package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"chat-realtime/internal/apperrors"
	"chat-realtime/internal/events"
	"chat-realtime/internal/models"
	"chat-realtime/internal/observability"
	"chat-realtime/internal/protocol"
	"chat-realtime/internal/repositories"
)

// SendRequest is a chat message on its way in. SenderID always comes from the
// authenticated session.
type SendRequest struct {
	SenderID    int64
	ReceiverID  int64
	Content     *string
	MessageType models.MessageType
	ImageURL    *string
}

// Router validates, persists and delivers chat and typing events.
type Router struct {
	users    repositories.UserRepository
	messages repositories.MessageRepository
	delivery Delivery
	hydrate  hydrator
	emitter  *events.Emitter
	logger   *zap.Logger
}

func NewRouter(users repositories.UserRepository, messages repositories.MessageRepository, reactions repositories.ReactionRepository, delivery Delivery, emitter *events.Emitter, logger *zap.Logger) *Router {
	logger = logger.Named("router")
	return &Router{
		users:    users,
		messages: messages,
		delivery: delivery,
		hydrate:  hydrator{users: users, reactions: reactions, logger: logger},
		emitter:  emitter,
		logger:   logger,
	}
}

// Send persists a message and pushes it to the receiver, then echoes the same
// frame to the sender. Nothing is delivered unless the save succeeded.
func (r *Router) Send(ctx context.Context, req SendRequest) (models.MessageResponse, error) {
	if err := r.requireUser(ctx, req.ReceiverID, "receiver not found"); err != nil {
		return models.MessageResponse{}, err
	}
	if req.SenderID == req.ReceiverID {
		return models.MessageResponse{}, apperrors.InvalidArgument("cannot message self")
	}
	msg, err := buildMessage(req)
	if err != nil {
		return models.MessageResponse{}, err
	}

	saved, err := r.messages.Save(ctx, msg)
	if err != nil {
		r.logger.Error("save message failed", zap.Int64("sender_id", req.SenderID), zap.Int64("receiver_id", req.ReceiverID), zap.Error(err))
		return models.MessageResponse{}, apperrors.Internal("failed to store message", err)
	}
	observability.IncMessageSent(string(saved.MessageType))

	resp := r.hydrate.one(ctx, saved, map[int64]string{})
	frame, err := protocol.Encode(protocol.KindChatMessage, resp)
	if err != nil {
		return models.MessageResponse{}, apperrors.Internal("failed to encode message", err)
	}
	r.delivery.Send(saved.ReceiverID, frame)
	r.delivery.Send(saved.SenderID, frame)

	r.emitter.Emit(ctx, events.MessageSent, saved.SenderID, map[string]any{
		"message_id":   saved.ID,
		"receiver_id":  saved.ReceiverID,
		"message_type": saved.MessageType,
	})
	return resp, nil
}

func buildMessage(req SendRequest) (models.Message, error) {
	msgType := req.MessageType
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	msg := models.Message{SenderID: req.SenderID, ReceiverID: req.ReceiverID, MessageType: msgType}

	switch msgType {
	case models.MessageTypeText:
		if req.Content == nil || strings.TrimSpace(*req.Content) == "" {
			return models.Message{}, apperrors.InvalidArgument("content is required for TEXT messages")
		}
		msg.Content = req.Content
	case models.MessageTypeImage:
		if req.ImageURL == nil || strings.TrimSpace(*req.ImageURL) == "" {
			return models.Message{}, apperrors.InvalidArgument("image_url is required for IMAGE messages")
		}
		msg.ImageURL = req.ImageURL
		if req.Content != nil && strings.TrimSpace(*req.Content) != "" {
			msg.Content = req.Content
		}
	default:
		return models.Message{}, apperrors.InvalidArgument("unknown message type")
	}
	return msg, nil
}

// Typing relays a typing indicator to the receiver only. Every failure is dropped.
func (r *Router) Typing(ctx context.Context, senderID, receiverID int64, isTyping bool) {
	if senderID == receiverID {
		return
	}
	ok, err := r.users.Exists(ctx, receiverID)
	if err != nil || !ok {
		r.logger.Debug("typing dropped", zap.Int64("sender_id", senderID), zap.Int64("receiver_id", receiverID), zap.Error(err))
		return
	}

	var name string
	if sender, err := r.users.FindByID(ctx, senderID); err == nil {
		name = sender.DisplayName
	}
	frame, err := protocol.Encode(protocol.KindTypingStatus, protocol.TypingStatus{
		SenderID:          senderID,
		SenderDisplayName: name,
		IsTyping:          isTyping,
	})
	if err != nil {
		return
	}
	r.delivery.Send(receiverID, frame)
}

// ChatHistory returns the visible conversation between userID and otherID, oldest first.
func (r *Router) ChatHistory(ctx context.Context, userID, otherID int64) ([]models.MessageResponse, error) {
	if err := r.requireUser(ctx, otherID, "user not found"); err != nil {
		return nil, err
	}
	if userID == otherID {
		return nil, apperrors.InvalidArgument("cannot load a conversation with self")
	}
	msgs, err := r.messages.FindChatHistory(ctx, userID, otherID)
	if err != nil {
		return nil, apperrors.Internal("failed to load messages", err)
	}
	return r.hydrate.many(ctx, msgs), nil
}

// Unread returns messages addressed to userID that are neither read nor deleted, oldest first.
func (r *Router) Unread(ctx context.Context, userID int64) ([]models.MessageResponse, error) {
	msgs, err := r.messages.FindUnread(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load messages", err)
	}
	return r.hydrate.many(ctx, msgs), nil
}

// Latest returns the newest visible message between the two users.
func (r *Router) Latest(ctx context.Context, userID, otherID int64) (models.MessageResponse, error) {
	if err := r.requireUser(ctx, otherID, "user not found"); err != nil {
		return models.MessageResponse{}, err
	}
	if userID == otherID {
		return models.MessageResponse{}, apperrors.InvalidArgument("cannot load a conversation with self")
	}
	msg, err := r.messages.FindLatest(ctx, userID, otherID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return models.MessageResponse{}, apperrors.NotFound("no messages yet")
	}
	if err != nil {
		return models.MessageResponse{}, apperrors.Internal("failed to load message", err)
	}
	return r.hydrate.one(ctx, msg, map[int64]string{}), nil
}

// Delete soft-deletes a message on behalf of either participant and tells both.
// Repeating it is a no-op.
func (r *Router) Delete(ctx context.Context, messageID, requesterID int64) error {
	msg, err := r.messages.FindByID(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return apperrors.NotFound("message not found")
	}
	if err != nil {
		return apperrors.Internal("failed to load message", err)
	}
	if !msg.IsParticipant(requesterID) {
		return apperrors.Forbidden("only the sender or receiver can delete a message")
	}
	if msg.IsDeleted {
		return nil
	}
	if err := r.messages.SoftDelete(ctx, messageID); err != nil {
		return apperrors.Internal("failed to delete message", err)
	}

	deleted := protocol.MessageDeleted{MessageID: messageID, DeletedBy: requesterID}
	if frame, err := protocol.Encode(protocol.KindMessageDeleted, deleted); err == nil {
		r.delivery.Send(msg.SenderID, frame)
		r.delivery.Send(msg.ReceiverID, frame)
	}
	r.emitter.Emit(ctx, events.MessageDeleted, requesterID, deleted)
	return nil
}

func (r *Router) requireUser(ctx context.Context, userID int64, msg string) error {
	ok, err := r.users.Exists(ctx, userID)
	if err != nil {
		return apperrors.Internal("failed to look up user", err)
	}
	if !ok {
		return apperrors.NotFound(msg)
	}
	return nil
}
