// Package protocol defines the JSON frames exchanged over the chat websocket.
package protocol

import (
	"encoding/json"

	"chat-realtime/internal/models"
)

// Kind tags every frame.
type Kind string

// Client to server.
const (
	KindSendChatMessage Kind = "send-chat-message"
	KindSendTyping      Kind = "send-typing"
	KindToggleReaction  Kind = "toggle-reaction"
)

// Server to client.
const (
	KindChatMessage    Kind = "chat-message"
	KindTypingStatus   Kind = "typing-status"
	KindPresenceUpdate Kind = "presence-update"
	KindReactionUpdate Kind = "reaction-update"
	KindMessageDeleted Kind = "message-deleted"
	KindError          Kind = "error"
)

// Envelope is the outer shape of every frame.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type SendChatMessage struct {
	ReceiverID  int64              `json:"receiver_id"`
	Content     *string            `json:"content,omitempty"`
	MessageType models.MessageType `json:"message_type,omitempty"`
	ImageURL    *string            `json:"image_url,omitempty"`
}

type SendTyping struct {
	ReceiverID int64 `json:"receiver_id"`
	IsTyping   bool  `json:"is_typing"`
}

type ToggleReaction struct {
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type TypingStatus struct {
	SenderID          int64  `json:"sender_id"`
	SenderDisplayName string `json:"sender_display_name"`
	IsTyping          bool   `json:"is_typing"`
}

type PresenceUpdate struct {
	UserID      int64                 `json:"user_id"`
	DisplayName string                `json:"display_name"`
	Status      models.PresenceStatus `json:"status"`
}

type MessageDeleted struct {
	MessageID int64 `json:"message_id"`
	DeletedBy int64 `json:"deleted_by"`
}

// ErrorPayload reports a failed request to the user who sent it.
type ErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	RequestType Kind   `json:"request_type,omitempty"`
}
