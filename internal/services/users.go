package services

import (
	"context"
	"errors"
	"strings"

	"chat-realtime/internal/apperrors"
	"chat-realtime/internal/models"
	"chat-realtime/internal/repositories"
)

// OnlineChecker reports live session state.
type OnlineChecker interface {
	IsOnline(userID int64) bool
}

// UserView is a directory entry with its live presence.
type UserView struct {
	models.User
	Online bool `json:"online"`
}

// Directory serves user lookups for the REST surface.
type Directory struct {
	users  repositories.UserRepository
	online OnlineChecker
}

func NewDirectory(users repositories.UserRepository, online OnlineChecker) *Directory {
	return &Directory{users: users, online: online}
}

func (d *Directory) Get(ctx context.Context, userID int64) (UserView, error) {
	user, err := d.users.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return UserView{}, apperrors.NotFound("user not found")
	}
	if err != nil {
		return UserView{}, apperrors.Internal("failed to look up user", err)
	}
	return UserView{User: user, Online: d.online.IsOnline(userID)}, nil
}

func (d *Directory) Search(ctx context.Context, query string) ([]UserView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.InvalidArgument("query is required")
	}
	users, err := d.users.SearchByDisplayName(ctx, query)
	if err != nil {
		return nil, apperrors.Internal("failed to search users", err)
	}
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, UserView{User: u, Online: d.online.IsOnline(u.ID)})
	}
	return out, nil
}
