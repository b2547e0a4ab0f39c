package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"chat-realtime/internal/apperrors"
	"chat-realtime/internal/auth"
	"chat-realtime/internal/config"
	"chat-realtime/internal/events"
	"chat-realtime/internal/middleware"
	"chat-realtime/internal/models"
	"chat-realtime/internal/observability"
	"chat-realtime/internal/protocol"
	"chat-realtime/internal/repositories"
	"chat-realtime/internal/services"
)

type UserFinder interface {
	FindByID(ctx context.Context, id int64) (models.User, error)
}

type MessageRouter interface {
	Send(ctx context.Context, req services.SendRequest) (models.MessageResponse, error)
	Typing(ctx context.Context, senderID, receiverID int64, isTyping bool)
}

type ReactionToggler interface {
	Toggle(ctx context.Context, messageID, userID int64, emoji string) (models.ReactionResult, error)
}

// PresenceNotifier announces status changes to connected users. Connected and
// Disconnected run under the per-user lock; EmitChange runs after it is released.
type PresenceNotifier interface {
	Connected(ctx context.Context, userID int64) protocol.PresenceUpdate
	Disconnected(ctx context.Context, userID int64) protocol.PresenceUpdate
	EmitChange(ctx context.Context, update protocol.PresenceUpdate)
}

const userLockStripes = 64

// ChatWebSocketHandler authenticates the handshake, binds the connection to its
// user and dispatches inbound events.
type ChatWebSocketHandler struct {
	hub       *Hub
	validator auth.Validator
	users     UserFinder
	presence  PresenceNotifier
	router    MessageRouter
	reactions ReactionToggler
	emitter   *events.Emitter
	cfg       config.WSConfig
	logger    *zap.Logger

	// bind+ONLINE and release+OFFLINE for one user never interleave.
	userLocks [userLockStripes]sync.Mutex
}

func NewChatWebSocketHandler(hub *Hub, validator auth.Validator, users UserFinder, presence PresenceNotifier, router MessageRouter, reactions ReactionToggler, emitter *events.Emitter, cfg config.WSConfig, logger *zap.Logger) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{
		hub:       hub,
		validator: validator,
		users:     users,
		presence:  presence,
		router:    router,
		reactions: reactions,
		emitter:   emitter,
		cfg:       withDefaults(cfg),
		logger:    logger.Named("ws"),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle refuses unauthenticated handshakes with 401 before upgrading.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-realtime/ws").Start(c.Request.Context(), "ws.handshake")

	identity, err := h.authenticate(ctx, c.Request)
	if err == nil {
		span.SetAttributes(attribute.Int64("user_id", identity.UserID))
		h.upgrade(ctx, c, identity)
		span.End()
		return
	}
	span.End()

	observability.IncWSEvent("ws_rejected")
	fields := []zap.Field{zap.String("ip", observability.ClientIP(c.Request)), zap.Error(err)}
	if apperrors.KindOf(err) == apperrors.KindInternal {
		h.logger.Error("handshake failed", fields...)
	} else {
		h.logger.Info("handshake refused", fields...)
	}
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.PublicMessage(err)})
}

// authenticate resolves the token to a user that exists in the directory.
func (h *ChatWebSocketHandler) authenticate(ctx context.Context, r *http.Request) (auth.Identity, error) {
	token, err := tokenFromRequest(r)
	if err != nil {
		return auth.Identity{}, invalidToken(err)
	}
	identity, err := h.validator.Validate(ctx, token)
	if err != nil {
		return auth.Identity{}, invalidToken(err)
	}
	user, err := h.users.FindByID(ctx, identity.UserID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return auth.Identity{}, invalidToken(err)
	}
	if err != nil {
		return auth.Identity{}, apperrors.Internal("load user", err)
	}
	if identity.Email != "" && !strings.EqualFold(identity.Email, user.Email) {
		return auth.Identity{}, apperrors.Unauthenticated("invalid token")
	}
	return identity, nil
}

func invalidToken(err error) error {
	return &apperrors.Error{Kind: apperrors.KindUnauthenticated, Message: "invalid token", Err: err}
}

func (h *ChatWebSocketHandler) upgrade(ctx context.Context, c *gin.Context, identity auth.Identity) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	meta := observability.ClientMetaFrom(c.Request)
	requestID := middleware.RequestIDFrom(c)
	if requestID == "" {
		requestID = meta.RequestID
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		Email:       identity.Email,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   requestID,
		TraceID:     otelTraceID(ctx),
		ConnectedAt: time.Now(),
	}
	// the request context ends when the handler returns; the connection outlives it
	connCtx := events.WithRequestID(context.WithoutCancel(ctx), requestID)

	client := newClient(conn, info, h.cfg)
	h.open(connCtx, client)
	go client.writePump()
	go h.serve(connCtx, client)
}

func (h *ChatWebSocketHandler) lockFor(userID int64) *sync.Mutex {
	return &h.userLocks[uint64(userID)%userLockStripes]
}

func (h *ChatWebSocketHandler) open(ctx context.Context, client *Client) {
	userID := client.info.UserID
	mu := h.lockFor(userID)
	mu.Lock()
	h.hub.Bind(userID, client)
	online := h.presence.Connected(ctx, userID)
	mu.Unlock()
	h.presence.EmitChange(ctx, online)

	observability.WSConnected()
	observability.IncWSEvent(events.WSConnect)
	h.logger.Info("websocket connected", zap.Int64("user_id", userID), zap.String("conn_id", client.info.ConnID))
	h.emitter.Emit(ctx, events.WSConnect, userID, client.info.payload(events.WSConnect, ""))
}

func (h *ChatWebSocketHandler) serve(ctx context.Context, client *Client) {
	err := client.readPump(func(frame []byte) {
		h.dispatch(ctx, client, frame)
	})
	reason := ""
	if err != nil {
		reason = err.Error()
	}

	userID := client.info.UserID
	mu := h.lockFor(userID)
	mu.Lock()
	released := h.hub.Release(userID, client)
	var offline protocol.PresenceUpdate
	if released {
		offline = h.presence.Disconnected(ctx, userID)
	}
	mu.Unlock()
	client.Close()
	if released {
		h.presence.EmitChange(ctx, offline)
	}

	observability.WSDisconnected()
	observability.IncWSEvent(events.WSDisconnect)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		observability.IncWSEvent(events.WSError)
		h.emitter.Emit(ctx, events.WSError, userID, client.info.payload(events.WSError, reason))
	}
	h.logger.Info("websocket disconnected", zap.Int64("user_id", userID), zap.String("conn_id", client.info.ConnID), zap.String("reason", reason))
	h.emitter.Emit(ctx, events.WSDisconnect, userID, client.info.payload(events.WSDisconnect, reason))
}

func (h *ChatWebSocketHandler) dispatch(ctx context.Context, client *Client, frame []byte) {
	userID := client.info.UserID
	req, err := protocol.Decode(frame)
	if err != nil {
		if req.Kind == protocol.KindSendTyping {
			return
		}
		h.reject(client, req.Kind, err)
		return
	}
	if !client.allow() {
		// dropped typing indicators are superseded by the next one
		if req.Kind != protocol.KindSendTyping {
			h.reject(client, req.Kind, apperrors.InvalidArgument("rate limit exceeded"))
		}
		return
	}

	switch req.Kind {
	case protocol.KindSendChatMessage:
		p := req.ChatMessage
		_, err = h.router.Send(ctx, services.SendRequest{
			SenderID:    userID,
			ReceiverID:  p.ReceiverID,
			Content:     p.Content,
			MessageType: p.MessageType,
			ImageURL:    p.ImageURL,
		})
	case protocol.KindSendTyping:
		h.router.Typing(ctx, userID, req.Typing.ReceiverID, req.Typing.IsTyping)
	case protocol.KindToggleReaction:
		_, err = h.reactions.Toggle(ctx, req.ToggleReaction.MessageID, userID, req.ToggleReaction.Emoji)
	}
	if err != nil {
		h.reject(client, req.Kind, err)
	}
}

// reject answers the originating connection only.
func (h *ChatWebSocketHandler) reject(client *Client, kind protocol.Kind, err error) {
	fields := []zap.Field{zap.Int64("user_id", client.info.UserID), zap.String("request_type", string(kind)), zap.Error(err)}
	if apperrors.KindOf(err) == apperrors.KindInternal {
		h.logger.Error("event failed", fields...)
	} else {
		h.logger.Warn("event rejected", fields...)
	}
	client.Enqueue(protocol.EncodeError(err, kind))
}
