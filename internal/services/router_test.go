package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-realtime/internal/apperrors"
	"chat-realtime/internal/mocks"
	"chat-realtime/internal/models"
	"chat-realtime/internal/protocol"
)

func newTestRouter(t *testing.T) (*Router, *recordingDelivery, context.Context) {
	t.Helper()
	store := seededStore()
	delivery := newRecordingDelivery()
	router := NewRouter(store.Users(), store.Messages(), store.Reactions(), delivery, nil, zap.NewNop())
	return router, delivery, context.Background()
}

func TestSendDeliversToReceiverAndEchoesSender(t *testing.T) {
	router, delivery, ctx := newTestRouter(t)

	resp, err := router.Send(ctx, SendRequest{SenderID: 1, ReceiverID: 2, Content: strPtr("hi")})
	require.NoError(t, err)
	assert.NotZero(t, resp.ID)
	assert.False(t, resp.SentAt.IsZero())
	assert.Equal(t, models.MessageTypeText, resp.MessageType)

	toB := delivery.to(2)
	toA := delivery.to(1)
	require.Len(t, toB, 1)
	require.Len(t, toA, 1)
	assert.Equal(t, toB[0], toA[0])

	var pushed models.MessageResponse
	decodeFrame(t, toB[0], protocol.KindChatMessage, &pushed)
	assert.Equal(t, "hi", pushed.Content)
	assert.Equal(t, int64(1), pushed.SenderID)
	assert.Equal(t, "Ana", pushed.SenderDisplayName)
	assert.Empty(t, pushed.Reactions)

	history, err := router.ChatHistory(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, resp.ID, history[0].ID)
}

func TestSendValidationOrder(t *testing.T) {
	router, delivery, ctx := newTestRouter(t)

	cases := []struct {
		name string
		req  SendRequest
		kind apperrors.Kind
	}{
		{"unknown receiver checked first", SendRequest{SenderID: 99, ReceiverID: 99, Content: strPtr("hi")}, apperrors.KindNotFound},
		{"self", SendRequest{SenderID: 1, ReceiverID: 1, Content: strPtr("hi")}, apperrors.KindInvalidArgument},
		{"text without content", SendRequest{SenderID: 1, ReceiverID: 2}, apperrors.KindInvalidArgument},
		{"blank text", SendRequest{SenderID: 1, ReceiverID: 2, Content: strPtr("   ")}, apperrors.KindInvalidArgument},
		{"image without url", SendRequest{SenderID: 1, ReceiverID: 2, MessageType: models.MessageTypeImage, Content: strPtr("look")}, apperrors.KindInvalidArgument},
		{"unknown type", SendRequest{SenderID: 1, ReceiverID: 2, MessageType: "VIDEO", Content: strPtr("x")}, apperrors.KindInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := router.Send(ctx, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperrors.KindOf(err))
		})
	}

	history, err := router.ChatHistory(ctx, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Zero(t, delivery.total())
}

func TestSendImageMessage(t *testing.T) {
	router, delivery, ctx := newTestRouter(t)

	resp, err := router.Send(ctx, SendRequest{SenderID: 1, ReceiverID: 2, MessageType: models.MessageTypeImage, ImageURL: strPtr("http://cdn/a.png")})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/a.png", resp.ImageURL)
	assert.Empty(t, resp.Content)
	assert.Len(t, delivery.to(2), 1)
}

func TestSendPersistFailureDeliversNothing(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	delivery := newRecordingDelivery()
	router := NewRouter(users, messages, new(mocks.ReactionRepositoryMock), delivery, nil, zap.NewNop())

	users.On("Exists", mock.Anything, int64(2)).Return(true, nil).Once()
	messages.On("Save", mock.Anything, mock.AnythingOfType("models.Message")).Return(nil, assert.AnError).Once()

	_, err := router.Send(context.Background(), SendRequest{SenderID: 1, ReceiverID: 2, Content: strPtr("hi")})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.Equal(t, "internal server error", apperrors.PublicMessage(err))
	assert.Zero(t, delivery.total())

	users.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestTypingGoesToReceiverOnly(t *testing.T) {
	router, delivery, ctx := newTestRouter(t)

	router.Typing(ctx, 1, 2, true)

	require.Len(t, delivery.to(2), 1)
	assert.Empty(t, delivery.to(1))
	var status protocol.TypingStatus
	decodeFrame(t, delivery.to(2)[0], protocol.KindTypingStatus, &status)
	assert.Equal(t, protocol.TypingStatus{SenderID: 1, SenderDisplayName: "Ana", IsTyping: true}, status)
}

func TestTypingFailuresAreSilent(t *testing.T) {
	router, delivery, ctx := newTestRouter(t)

	router.Typing(ctx, 1, 99, true)
	router.Typing(ctx, 1, 1, true)

	assert.Zero(t, delivery.total())
}

func TestDeleteHidesMessageForBothParticipants(t *testing.T) {
	store := seededStore()
	delivery := newRecordingDelivery()
	router := NewRouter(store.Users(), store.Messages(), store.Reactions(), delivery, nil, zap.NewNop())
	reactions := NewReactions(store.Users(), store.Messages(), store.Reactions(), delivery, nil, zap.NewNop())
	ctx := context.Background()

	sent, err := router.Send(ctx, SendRequest{SenderID: 1, ReceiverID: 2, Content: strPtr("oops")})
	require.NoError(t, err)
	_, err = reactions.Toggle(ctx, sent.ID, 2, "👍")
	require.NoError(t, err)

	err = router.Delete(ctx, sent.ID, 3)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	err = router.Delete(ctx, 999, 1)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	require.NoError(t, router.Delete(ctx, sent.ID, 2))
	require.NoError(t, router.Delete(ctx, sent.ID, 1))

	for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
		history, err := router.ChatHistory(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Empty(t, history)
	}
	unread, err := router.Unread(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, unread)

	row, err := store.Messages().FindByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.True(t, row.IsDeleted)
	rows, err := reactions.List(ctx, sent.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	var deleted protocol.MessageDeleted
	frames := delivery.to(1)
	decodeFrame(t, frames[len(frames)-1], protocol.KindMessageDeleted, &deleted)
	assert.Equal(t, protocol.MessageDeleted{MessageID: sent.ID, DeletedBy: 2}, deleted)
	frames = delivery.to(2)
	decodeFrame(t, frames[len(frames)-1], protocol.KindMessageDeleted, &deleted)
}

func TestHistoryQueries(t *testing.T) {
	router, _, ctx := newTestRouter(t)

	_, err := router.ChatHistory(ctx, 1, 1)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidArgument))
	_, err = router.ChatHistory(ctx, 1, 99)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	_, err = router.Latest(ctx, 1, 2)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	first, err := router.Send(ctx, SendRequest{SenderID: 1, ReceiverID: 2, Content: strPtr("one")})
	require.NoError(t, err)
	second, err := router.Send(ctx, SendRequest{SenderID: 2, ReceiverID: 1, Content: strPtr("two")})
	require.NoError(t, err)

	latest, err := router.Latest(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "Ben", latest.SenderDisplayName)

	unread, err := router.Unread(ctx, 2)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, first.ID, unread[0].ID)
}
