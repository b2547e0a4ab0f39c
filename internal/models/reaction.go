package models

import "time"

// Reaction is a single emoji placed on a message by a user.
type Reaction struct {
	ID        int64     `db:"id" json:"id"`
	MessageID int64     `db:"message_id" json:"message_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReactionAction reports what a toggle did.
type ReactionAction string

const (
	ReactionAdd    ReactionAction = "ADD"
	ReactionRemove ReactionAction = "REMOVE"
)

// ReactionResult is returned from a toggle and pushed to both participants.
type ReactionResult struct {
	MessageID       int64          `json:"message_id"`
	UserID          int64          `json:"user_id"`
	UserDisplayName string         `json:"user_display_name"`
	Emoji           string         `json:"emoji"`
	Action          ReactionAction `json:"action"`
	Reactions       map[string]int `json:"reactions"`
}
