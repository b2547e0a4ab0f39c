package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"chat-realtime/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository is the user directory as seen by the chat core.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (models.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	SearchByDisplayName(ctx context.Context, query string) ([]models.User, error)
	UpdateLastSeen(ctx context.Context, id int64, at time.Time) error
}

// UserRepo is a sqlx-backed UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, display_name, last_seen, created_at`

func (r *UserRepo) FindByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}

func (r *UserRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, id)
	return exists, err
}

// SearchByDisplayName does a case-insensitive substring match. Wildcards in
// query match literally.
func (r *UserRepo) SearchByDisplayName(ctx context.Context, query string) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users
        WHERE display_name ILIKE '%' || $1 || '%' ESCAPE '\'
        ORDER BY display_name ASC, id ASC
        LIMIT 50`, likeEscaper.Replace(query))
	return users, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *UserRepo) UpdateLastSeen(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen=$2 WHERE id=$1`, id, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
