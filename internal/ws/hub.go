package ws

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"chat-realtime/internal/observability"
)

// Channel is a user's delivery queue. Enqueue never blocks and reports false
// once the channel is closed or full. Close is idempotent.
type Channel interface {
	Enqueue(frame []byte) bool
	Close()
}

// Hub is the only owner of user to channel bindings. A user has at most one
// bound channel; binding again pre-empts the previous one.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int64]Channel
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[int64]Channel),
		logger:   logger.Named("hub"),
	}
}

// Bind registers ch for userID and closes the channel it replaces.
func (h *Hub) Bind(userID int64, ch Channel) {
	h.mu.Lock()
	prev := h.sessions[userID]
	h.sessions[userID] = ch
	h.mu.Unlock()

	if prev != nil && prev != ch {
		h.logger.Info("session pre-empted", zap.Int64("user_id", userID))
		prev.Close()
	}
}

// Unbind removes and closes whatever is bound to userID. Safe to repeat.
// It announces nothing: a connection's own teardown goes through Release
// followed by Broadcaster.Disconnected, which broadcasts OFFLINE.
func (h *Hub) Unbind(userID int64) {
	h.mu.Lock()
	ch := h.sessions[userID]
	delete(h.sessions, userID)
	h.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
}

// Release unbinds userID only while ch is still its bound channel. It reports
// whether it removed the binding, which a closing connection uses to decide
// whether the user really went offline.
func (h *Hub) Release(userID int64, ch Channel) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.sessions[userID]; !ok || cur != ch {
		return false
	}
	delete(h.sessions, userID)
	return true
}

// Send queues frame for userID. Absent users are skipped; a channel that cannot
// take the frame is closed so its connection winds down and unbinds.
func (h *Hub) Send(userID int64, frame []byte) bool {
	h.mu.RLock()
	ch := h.sessions[userID]
	h.mu.RUnlock()

	if ch == nil {
		observability.IncDroppedDelivery("offline")
		return false
	}
	return h.deliver(userID, ch, frame)
}

// BroadcastAll queues frame on every bound channel independently.
func (h *Hub) BroadcastAll(frame []byte) {
	h.mu.RLock()
	targets := make(map[int64]Channel, len(h.sessions))
	for userID, ch := range h.sessions {
		targets[userID] = ch
	}
	h.mu.RUnlock()

	for userID, ch := range targets {
		h.deliver(userID, ch, frame)
	}
}

func (h *Hub) deliver(userID int64, ch Channel, frame []byte) bool {
	if ch.Enqueue(frame) {
		return true
	}
	observability.IncDroppedDelivery("slow_consumer")
	h.logger.Warn("dropping frame for unresponsive session", zap.Int64("user_id", userID))
	ch.Close()
	return false
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[userID]
	return ok
}

// OnlineUsers lists bound user ids in ascending order.
func (h *Hub) OnlineUsers() []int64 {
	h.mu.RLock()
	ids := make([]int64, 0, len(h.sessions))
	for userID := range h.sessions {
		ids = append(ids, userID)
	}
	h.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
