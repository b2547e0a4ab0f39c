package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"chat-realtime/internal/apperrors"
	"chat-realtime/internal/models"
)

const maxEmojiRunes = 16

// Request is a decoded inbound frame. Exactly one payload field is set.
type Request struct {
	Kind           Kind
	ChatMessage    *SendChatMessage
	Typing         *SendTyping
	ToggleReaction *ToggleReaction
}

// Decode parses an inbound frame. Only the shape is checked here; whether
// referenced users or messages exist is decided by the services. On a payload
// error the returned Request still carries the kind so the error can name it.
func Decode(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Request{}, apperrors.InvalidArgument("malformed frame")
	}
	req := Request{Kind: env.Type}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		switch env.Type {
		case KindSendChatMessage, KindSendTyping, KindToggleReaction:
			return req, apperrors.InvalidArgument("missing payload")
		}
	}

	switch env.Type {
	case KindSendChatMessage:
		var p SendChatMessage
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return req, apperrors.InvalidArgument("malformed payload")
		}
		if p.ReceiverID <= 0 {
			return req, apperrors.InvalidArgument("receiver_id must be positive")
		}
		if p.MessageType == "" {
			p.MessageType = models.MessageTypeText
		}
		if !p.MessageType.Valid() {
			return req, apperrors.InvalidArgument(fmt.Sprintf("unknown message_type %q", p.MessageType))
		}
		req.ChatMessage = &p
	case KindSendTyping:
		var p SendTyping
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return req, apperrors.InvalidArgument("malformed payload")
		}
		if p.ReceiverID <= 0 {
			return req, apperrors.InvalidArgument("receiver_id must be positive")
		}
		req.Typing = &p
	case KindToggleReaction:
		var p ToggleReaction
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return req, apperrors.InvalidArgument("malformed payload")
		}
		if p.MessageID <= 0 {
			return req, apperrors.InvalidArgument("message_id must be positive")
		}
		p.Emoji = strings.TrimSpace(p.Emoji)
		if p.Emoji == "" || utf8.RuneCountInString(p.Emoji) > maxEmojiRunes {
			return req, apperrors.InvalidArgument("emoji is required")
		}
		req.ToggleReaction = &p
	default:
		return req, apperrors.InvalidArgument(fmt.Sprintf("unknown event type %q", env.Type))
	}
	return req, nil
}

// Encode wraps payload in an envelope of the given kind.
func Encode(kind Kind, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Payload: body})
}

// EncodeError renders err as an error frame. Internal failures get a generic message.
func EncodeError(err error, requestType Kind) []byte {
	frame, encErr := Encode(KindError, ErrorPayload{
		Code:        string(apperrors.KindOf(err)),
		Message:     apperrors.PublicMessage(err),
		RequestType: requestType,
	})
	if encErr != nil {
		return []byte(`{"type":"error","payload":{"code":"INTERNAL","message":"internal server error"}}`)
	}
	return frame
}
