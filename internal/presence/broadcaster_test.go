package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-realtime/internal/events"
	"chat-realtime/internal/mocks"
	"chat-realtime/internal/models"
	"chat-realtime/internal/protocol"
	"chat-realtime/internal/repositories"
)

type recordingFanout struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *recordingFanout) BroadcastAll(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
}

func (f *recordingFanout) updates(t *testing.T) []protocol.PresenceUpdate {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.PresenceUpdate, 0, len(f.frames))
	for _, frame := range f.frames {
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		require.Equal(t, protocol.KindPresenceUpdate, env.Type)
		var update protocol.PresenceUpdate
		require.NoError(t, json.Unmarshal(env.Payload, &update))
		out = append(out, update)
	}
	return out
}

type recordingStore struct {
	statuses []models.PresenceStatus
}

func (s *recordingStore) SetStatus(_ context.Context, _ int64, status models.PresenceStatus, _ time.Time) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *recordingStore) Close() error { return nil }

func TestOnlineIsAnnouncedBeforeOffline(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	store.AddUser(models.User{ID: 1, Email: "ana@example.com", DisplayName: "Ana"})
	fanout := &recordingFanout{}
	mirror := &recordingStore{}
	b := NewBroadcaster(store.Users(), fanout, mirror, nil, zap.NewNop())

	b.Connected(ctx, 1)
	b.Disconnected(ctx, 1)

	updates := fanout.updates(t)
	require.Len(t, updates, 2)
	assert.Equal(t, protocol.PresenceUpdate{UserID: 1, DisplayName: "Ana", Status: models.StatusOnline}, updates[0])
	assert.Equal(t, protocol.PresenceUpdate{UserID: 1, DisplayName: "Ana", Status: models.StatusOffline}, updates[1])
	assert.Equal(t, []models.PresenceStatus{models.StatusOnline, models.StatusOffline}, mirror.statuses)
}

func TestConnectedPersistsLastSeen(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	store.AddUser(models.User{ID: 1, DisplayName: "Ana"})
	b := NewBroadcaster(store.Users(), &recordingFanout{}, nil, nil, zap.NewNop())
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	b.Connected(ctx, 1)

	user, err := store.Users().FindByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user.LastSeen)
	assert.True(t, fixed.Equal(*user.LastSeen))
}

func TestLookupFailureStillAnnounces(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("UpdateLastSeen", mock.Anything, int64(4), mock.Anything).Return(nil)
	users.On("FindByID", mock.Anything, int64(4)).Return(nil, errors.New("connection reset"))
	fanout := &recordingFanout{}
	b := NewBroadcaster(users, fanout, nil, nil, zap.NewNop())

	update := b.Connected(context.Background(), 4)

	assert.Equal(t, protocol.PresenceUpdate{UserID: 4, Status: models.StatusOnline}, update)
	assert.Equal(t, []protocol.PresenceUpdate{update}, fanout.updates(t))
	users.AssertExpectations(t)
}

func TestPresenceIsPublishedOnlyByEmitChange(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	store.AddUser(models.User{ID: 1, DisplayName: "Ana"})
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "chat_events.presence_changed", mock.Anything, mock.Anything).Return(nil)
	emitter := events.NewEmitter(publisher, "chat-realtime", "test", zap.NewNop())
	b := NewBroadcaster(store.Users(), &recordingFanout{}, nil, emitter, zap.NewNop())

	online := b.Connected(ctx, 1)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	b.EmitChange(ctx, online)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
	envelope := publisher.Calls[0].Arguments.Get(2).(events.Envelope)
	assert.Equal(t, events.PresenceChanged, envelope.EventType)
	assert.Equal(t, int64(1), envelope.UserID)
	assert.Equal(t, online, envelope.Payload)
}
