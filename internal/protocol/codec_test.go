package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-realtime/internal/apperrors"
	"chat-realtime/internal/models"
)

func TestDecodeSendChatMessageDefaultsToText(t *testing.T) {
	req, err := Decode([]byte(`{"type":"send-chat-message","payload":{"receiver_id":2,"content":"hi"}}`))
	require.NoError(t, err)
	require.NotNil(t, req.ChatMessage)
	assert.Equal(t, KindSendChatMessage, req.Kind)
	assert.Equal(t, int64(2), req.ChatMessage.ReceiverID)
	assert.Equal(t, models.MessageTypeText, req.ChatMessage.MessageType)
	require.NotNil(t, req.ChatMessage.Content)
	assert.Equal(t, "hi", *req.ChatMessage.Content)
}

func TestDecodeImageMessage(t *testing.T) {
	req, err := Decode([]byte(`{"type":"send-chat-message","payload":{"receiver_id":2,"message_type":"IMAGE","image_url":"http://x/a.png"}}`))
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeImage, req.ChatMessage.MessageType)
	assert.Nil(t, req.ChatMessage.Content)
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"unknown kind":      `{"type":"shout","payload":{}}`,
		"missing payload":   `{"type":"send-typing"}`,
		"zero receiver":     `{"type":"send-typing","payload":{"receiver_id":0,"is_typing":true}}`,
		"bad message type":  `{"type":"send-chat-message","payload":{"receiver_id":2,"message_type":"VIDEO"}}`,
		"empty emoji":       `{"type":"toggle-reaction","payload":{"message_id":3,"emoji":"  "}}`,
		"negative message":  `{"type":"toggle-reaction","payload":{"message_id":-1,"emoji":"👍"}}`,
		"wrong field types": `{"type":"send-chat-message","payload":{"receiver_id":"two"}}`,
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindInvalidArgument))
		})
	}
}

func TestDecodeKeepsKindOnPayloadError(t *testing.T) {
	req, err := Decode([]byte(`{"type":"toggle-reaction","payload":{"message_id":0,"emoji":"👍"}}`))
	require.Error(t, err)
	assert.Equal(t, KindToggleReaction, req.Kind)
}

func TestEncodeEnvelope(t *testing.T) {
	frame, err := Encode(KindTypingStatus, TypingStatus{SenderID: 1, SenderDisplayName: "Ana", IsTyping: true})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, KindTypingStatus, env.Type)
	assert.JSONEq(t, `{"sender_id":1,"sender_display_name":"Ana","is_typing":true}`, string(env.Payload))
}

func TestEncodeErrorHidesInternalDetail(t *testing.T) {
	frame := EncodeError(apperrors.Internal("save message", errors.New("pq: connection refused")), KindSendChatMessage)
	assert.JSONEq(t, `{"type":"error","payload":{"code":"INTERNAL","message":"internal server error","request_type":"send-chat-message"}}`, string(frame))

	frame = EncodeError(apperrors.InvalidArgument("cannot message self"), KindSendChatMessage)
	assert.Contains(t, string(frame), `"code":"INVALID_ARGUMENT"`)
	assert.Contains(t, string(frame), `"message":"cannot message self"`)
}
