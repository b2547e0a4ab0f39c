// Package presence announces ONLINE and OFFLINE transitions of connected users.
package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chat-realtime/internal/events"
	"chat-realtime/internal/models"
	"chat-realtime/internal/protocol"
	"chat-realtime/internal/repositories"
)

// Fanout delivers a frame to every bound session.
type Fanout interface {
	BroadcastAll(frame []byte)
}

// Broadcaster persists last-seen and announces presence. Both calls run
// synchronously on the connection goroutine so a user's ONLINE frame is always
// enqueued before the OFFLINE frame of the same connection. Publishing to the
// event bus is left to EmitChange so callers can do it outside their locks.
type Broadcaster struct {
	users   repositories.UserRepository
	fanout  Fanout
	store   Store
	emitter *events.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

func NewBroadcaster(users repositories.UserRepository, fanout Fanout, store Store, emitter *events.Emitter, logger *zap.Logger) *Broadcaster {
	if store == nil {
		store = NoopStore{}
	}
	return &Broadcaster{
		users:   users,
		fanout:  fanout,
		store:   store,
		emitter: emitter,
		logger:  logger.Named("presence"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (b *Broadcaster) Connected(ctx context.Context, userID int64) protocol.PresenceUpdate {
	return b.announce(ctx, userID, models.StatusOnline)
}

func (b *Broadcaster) Disconnected(ctx context.Context, userID int64) protocol.PresenceUpdate {
	return b.announce(ctx, userID, models.StatusOffline)
}

// EmitChange publishes an update returned by Connected or Disconnected.
func (b *Broadcaster) EmitChange(ctx context.Context, update protocol.PresenceUpdate) {
	b.emitter.Emit(ctx, events.PresenceChanged, update.UserID, update)
}

func (b *Broadcaster) announce(ctx context.Context, userID int64, status models.PresenceStatus) protocol.PresenceUpdate {
	at := b.now()
	if err := b.users.UpdateLastSeen(ctx, userID, at); err != nil {
		b.logger.Error("update last seen failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	var displayName string
	if user, err := b.users.FindByID(ctx, userID); err == nil {
		displayName = user.DisplayName
	} else {
		b.logger.Warn("presence user lookup failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	if err := b.store.SetStatus(ctx, userID, status, at); err != nil {
		b.logger.Warn("presence mirror failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	update := protocol.PresenceUpdate{UserID: userID, DisplayName: displayName, Status: status}
	frame, err := protocol.Encode(protocol.KindPresenceUpdate, update)
	if err != nil {
		b.logger.Error("encode presence failed", zap.Error(err))
		return update
	}
	b.fanout.BroadcastAll(frame)
	b.logger.Info("presence changed", zap.Int64("user_id", userID), zap.String("status", string(status)))
	return update
}
