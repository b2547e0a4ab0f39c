package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-realtime/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines persistence for direct messages.
type MessageRepository interface {
	Save(ctx context.Context, msg models.Message) (models.Message, error)
	FindByID(ctx context.Context, id int64) (models.Message, error)
	FindChatHistory(ctx context.Context, userA, userB int64) ([]models.Message, error)
	FindUnread(ctx context.Context, userID int64) ([]models.Message, error)
	FindLatest(ctx context.Context, userA, userB int64) (models.Message, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, senderID, receiverID int64) (int64, error)
	CountUnread(ctx context.Context, senderID, receiverID int64) (int64, error)
	SoftDelete(ctx context.Context, id int64) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, sender_id, receiver_id, content, message_type, image_url, sent_at, is_read, is_deleted`

// Save inserts msg; the store assigns id and sent_at.
func (r *MessageRepo) Save(ctx context.Context, msg models.Message) (models.Message, error) {
	var saved models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, receiver_id, content, message_type, image_url)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.SenderID, msg.ReceiverID, msg.Content, msg.MessageType, msg.ImageURL).StructScan(&saved)
	return saved, err
}

// FindByID returns the message regardless of its deleted flag.
func (r *MessageRepo) FindByID(ctx context.Context, id int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// FindChatHistory returns visible messages between two users, oldest first.
func (r *MessageRepo) FindChatHistory(ctx context.Context, userA, userB int64) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
        AND is_deleted = FALSE
        ORDER BY sent_at ASC, id ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, userA, userB)
	return msgs, err
}

// FindUnread returns visible unread messages addressed to userID, oldest first.
func (r *MessageRepo) FindUnread(ctx context.Context, userID int64) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE receiver_id=$1 AND is_read = FALSE AND is_deleted = FALSE
        ORDER BY sent_at ASC, id ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, userID)
	return msgs, err
}

// FindLatest returns the newest visible message between two users.
func (r *MessageRepo) FindLatest(ctx context.Context, userA, userB int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+`
        FROM messages
        WHERE ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
        AND is_deleted = FALSE
        ORDER BY sent_at DESC, id DESC
        LIMIT 1`, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

func (r *MessageRepo) MarkRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrMessageNotFound)
}

// MarkAllRead flips every unread visible message from sender to receiver and returns how many changed.
func (r *MessageRepo) MarkAllRead(ctx context.Context, senderID, receiverID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE
        WHERE sender_id=$1 AND receiver_id=$2 AND is_read = FALSE AND is_deleted = FALSE`, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *MessageRepo) CountUnread(ctx context.Context, senderID, receiverID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE sender_id=$1 AND receiver_id=$2 AND is_read = FALSE AND is_deleted = FALSE`, senderID, receiverID)
	return count, err
}

// SoftDelete hides a message from queries; repeated calls succeed.
func (r *MessageRepo) SoftDelete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_deleted = TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrMessageNotFound)
}

func expectRow(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
