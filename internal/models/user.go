package models

import "time"

// User is the directory entry for an account. The chat core only mutates LastSeen.
type User struct {
	ID          int64      `db:"id" json:"id"`
	Email       string     `db:"email" json:"email"`
	DisplayName string     `db:"display_name" json:"display_name"`
	LastSeen    *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// PresenceStatus is the derived online state of a user.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "ONLINE"
	StatusOffline PresenceStatus = "OFFLINE"
)
