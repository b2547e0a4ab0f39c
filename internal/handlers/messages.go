package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-realtime/internal/middleware"
	"chat-realtime/internal/services"
)

// MessageHandler exposes history, read receipts and deletion over REST.
// The caller is always the authenticated user, never a path or body value.
type MessageHandler struct {
	router    *services.Router
	reactions *services.Reactions
	readState *services.ReadState
}

func NewMessageHandler(router *services.Router, reactions *services.Reactions, readState *services.ReadState) *MessageHandler {
	return &MessageHandler{router: router, reactions: reactions, readState: readState}
}

// Register mounts the message routes on an authenticated group.
func (h *MessageHandler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.Unread)
	rg.GET("/unread", h.Unread)
	rg.GET("/with/:user_id", h.History)
	rg.GET("/with/:user_id/latest", h.Latest)
	rg.GET("/unread-count/:sender_id", h.CountUnread)
	rg.PUT("/read-all/:sender_id", h.MarkAllRead)
	rg.PUT("/:message_id/read", h.MarkRead)
	rg.GET("/:message_id/reactions", h.Reactions)
	rg.GET("/:message_id/reactions/entries", h.ReactionEntries)
	rg.DELETE("/:message_id", h.Delete)
}

// Unread returns messages waiting for the caller.
func (h *MessageHandler) Unread(c *gin.Context) {
	msgs, err := h.router.Unread(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// History returns the conversation with another user, oldest first.
func (h *MessageHandler) History(c *gin.Context) {
	otherID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	msgs, err := h.router.ChatHistory(c.Request.Context(), middleware.CurrentUserID(c), otherID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) Latest(c *gin.Context) {
	otherID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	msg, err := h.router.Latest(c.Request.Context(), middleware.CurrentUserID(c), otherID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	if err := h.readState.MarkRead(c.Request.Context(), messageID, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead acknowledges everything sender_id sent to the caller.
func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	senderID, ok := parseID(c, "sender_id")
	if !ok {
		return
	}
	if err := h.readState.MarkAllRead(c.Request.Context(), senderID, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) CountUnread(c *gin.Context) {
	senderID, ok := parseID(c, "sender_id")
	if !ok {
		return
	}
	count, err := h.readState.CountUnread(c.Request.Context(), senderID, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sender_id": senderID, "count": count})
}

func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	if err := h.router.Delete(c.Request.Context(), messageID, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) Reactions(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	counts, err := h.reactions.Counts(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "reactions": counts})
}

// ReactionEntries lists who reacted with what, oldest first.
func (h *MessageHandler) ReactionEntries(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}
	rows, err := h.reactions.List(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "entries": rows})
}
