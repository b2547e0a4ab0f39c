package models

import "time"

// MessageType distinguishes text from image messages.
type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

// Message represents a direct message between two users.
type Message struct {
	ID          int64       `db:"id" json:"id"`
	SenderID    int64       `db:"sender_id" json:"sender_id"`
	ReceiverID  int64       `db:"receiver_id" json:"receiver_id"`
	Content     *string     `db:"content" json:"content"`
	MessageType MessageType `db:"message_type" json:"message_type"`
	ImageURL    *string     `db:"image_url" json:"image_url,omitempty"`
	SentAt      time.Time   `db:"sent_at" json:"sent_at"`
	IsRead      bool        `db:"is_read" json:"is_read"`
	IsDeleted   bool        `db:"is_deleted" json:"is_deleted"`
}

// IsParticipant reports whether userID sent or received the message.
func (m Message) IsParticipant(userID int64) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// MessageResponse is the hydrated view pushed to clients and returned by the API.
type MessageResponse struct {
	ID                int64          `json:"id"`
	SenderID          int64          `json:"sender_id"`
	ReceiverID        int64          `json:"receiver_id"`
	Content           string         `json:"content"`
	MessageType       MessageType    `json:"message_type"`
	ImageURL          string         `json:"image_url,omitempty"`
	SentAt            time.Time      `json:"sent_at"`
	IsRead            bool           `json:"is_read"`
	SenderDisplayName string         `json:"sender_display_name"`
	Reactions         map[string]int `json:"reactions"`
}

// NewMessageResponse builds the response view of msg.
func NewMessageResponse(msg Message, senderDisplayName string, reactions map[string]int) MessageResponse {
	if reactions == nil {
		reactions = map[string]int{}
	}
	resp := MessageResponse{
		ID:                msg.ID,
		SenderID:          msg.SenderID,
		ReceiverID:        msg.ReceiverID,
		MessageType:       msg.MessageType,
		SentAt:            msg.SentAt,
		IsRead:            msg.IsRead,
		SenderDisplayName: senderDisplayName,
		Reactions:         reactions,
	}
	if msg.Content != nil {
		resp.Content = *msg.Content
	}
	if msg.ImageURL != nil {
		resp.ImageURL = *msg.ImageURL
	}
	return resp
}
