package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-realtime/internal/models"
)

var (
	ErrReactionNotFound  = errors.New("reaction not found")
	ErrDuplicateReaction = errors.New("reaction already exists")
)

// ReactionRepository defines persistence for message reactions.
type ReactionRepository interface {
	Find(ctx context.Context, messageID, userID int64, emoji string) (models.Reaction, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context, messageID int64) error
	Save(ctx context.Context, reaction models.Reaction) (models.Reaction, error)
	CountByEmoji(ctx context.Context, messageID int64) (map[string]int, error)
	ListByMessage(ctx context.Context, messageID int64) ([]models.Reaction, error)
}

// ReactionRepo is a sqlx-backed ReactionRepository.
type ReactionRepo struct {
	db *sqlx.DB
}

func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

const reactionColumns = `id, message_id, user_id, emoji, created_at`

func (r *ReactionRepo) Find(ctx context.Context, messageID, userID int64, emoji string) (models.Reaction, error) {
	var reaction models.Reaction
	err := r.db.GetContext(ctx, &reaction, `SELECT `+reactionColumns+` FROM message_reactions
        WHERE message_id=$1 AND user_id=$2 AND emoji=$3`, messageID, userID, emoji)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reaction{}, ErrReactionNotFound
	}
	return reaction, err
}

func (r *ReactionRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE id=$1`, id)
	return err
}

// DeleteAll removes every reaction on the message, whoever placed it.
func (r *ReactionRepo) DeleteAll(ctx context.Context, messageID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1`, messageID)
	return err
}

func (r *ReactionRepo) Save(ctx context.Context, reaction models.Reaction) (models.Reaction, error) {
	var saved models.Reaction
	err := r.db.QueryRowxContext(ctx, `INSERT INTO message_reactions (message_id, user_id, emoji)
        VALUES ($1, $2, $3) RETURNING `+reactionColumns,
		reaction.MessageID, reaction.UserID, reaction.Emoji).StructScan(&saved)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return models.Reaction{}, ErrDuplicateReaction
	}
	return saved, err
}

// CountByEmoji tallies reactions per emoji. Reactions on deleted messages are not counted.
func (r *ReactionRepo) CountByEmoji(ctx context.Context, messageID int64) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT mr.emoji, COUNT(*) FROM message_reactions mr
        JOIN messages m ON m.id = mr.message_id
        WHERE mr.message_id=$1 AND m.is_deleted = FALSE
        GROUP BY mr.emoji`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			emoji string
			count int
		)
		if err := rows.Scan(&emoji, &count); err != nil {
			return nil, err
		}
		counts[emoji] = count
	}
	return counts, rows.Err()
}

// ListByMessage returns the raw reaction rows, including those on deleted messages.
func (r *ReactionRepo) ListByMessage(ctx context.Context, messageID int64) ([]models.Reaction, error) {
	reactions := []models.Reaction{}
	err := r.db.SelectContext(ctx, &reactions, `SELECT `+reactionColumns+` FROM message_reactions
        WHERE message_id=$1 ORDER BY created_at ASC, id ASC`, messageID)
	return reactions, err
}
