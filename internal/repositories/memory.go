package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chat-realtime/internal/models"
)

// MemoryStore keeps users, messages and reactions in process memory.
// Each call is atomic on its own; callers needing check-then-act must serialize themselves.
type MemoryStore struct {
	mu             sync.Mutex
	users          map[int64]models.User
	nextUserID     int64
	messages       map[int64]models.Message
	nextMessageID  int64
	reactions      map[int64]models.Reaction
	nextReactionID int64
	now            func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]models.User),
		messages:  make(map[int64]models.Message),
		reactions: make(map[int64]models.Reaction),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddUser seeds a directory entry. A zero ID is assigned the next free id.
func (s *MemoryStore) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextUserID + 1
	}
	if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return u
}

func (s *MemoryStore) Users() UserRepository         { return memoryUsers{s} }
func (s *MemoryStore) Messages() MessageRepository   { return memoryMessages{s} }
func (s *MemoryStore) Reactions() ReactionRepository { return memoryReactions{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) FindByID(_ context.Context, id int64) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (r memoryUsers) Exists(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.users[id]
	return ok, nil
}

func (r memoryUsers) SearchByDisplayName(_ context.Context, query string) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(query)
	result := []models.User{}
	for _, u := range r.s.users {
		if strings.Contains(strings.ToLower(u.DisplayName), q) {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayName == result[j].DisplayName {
			return result[i].ID < result[j].ID
		}
		return result[i].DisplayName < result[j].DisplayName
	})
	return result, nil
}

func (r memoryUsers) UpdateLastSeen(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastSeen = &at
	r.s.users[id] = u
	return nil
}

type memoryMessages struct{ s *MemoryStore }

func (r memoryMessages) Save(_ context.Context, msg models.Message) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextMessageID++
	msg.ID = r.s.nextMessageID
	msg.SentAt = r.s.now()
	msg.IsRead = false
	msg.IsDeleted = false
	r.s.messages[msg.ID] = msg
	return msg, nil
}

func (r memoryMessages) FindByID(_ context.Context, id int64) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[id]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, nil
}

func (r memoryMessages) filter(keep func(models.Message) bool) []models.Message {
	result := []models.Message{}
	for _, m := range r.s.messages {
		if keep(m) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SentAt.Equal(result[j].SentAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].SentAt.Before(result[j].SentAt)
	})
	return result
}

func between(m models.Message, a, b int64) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

func (r memoryMessages) FindChatHistory(_ context.Context, userA, userB int64) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(m models.Message) bool {
		return between(m, userA, userB) && !m.IsDeleted
	}), nil
}

func (r memoryMessages) FindUnread(_ context.Context, userID int64) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(m models.Message) bool {
		return m.ReceiverID == userID && !m.IsRead && !m.IsDeleted
	}), nil
}

func (r memoryMessages) FindLatest(_ context.Context, userA, userB int64) (models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs := r.filter(func(m models.Message) bool {
		return between(m, userA, userB) && !m.IsDeleted
	})
	if len(msgs) == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return msgs[len(msgs)-1], nil
}

func (r memoryMessages) MarkRead(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	msg.IsRead = true
	r.s.messages[id] = msg
	return nil
}

func (r memoryMessages) MarkAllRead(_ context.Context, senderID, receiverID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var changed int64
	for id, m := range r.s.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.IsRead && !m.IsDeleted {
			m.IsRead = true
			r.s.messages[id] = m
			changed++
		}
	}
	return changed, nil
}

func (r memoryMessages) CountUnread(_ context.Context, senderID, receiverID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, m := range r.s.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.IsRead && !m.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (r memoryMessages) SoftDelete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	msg.IsDeleted = true
	r.s.messages[id] = msg
	return nil
}

type memoryReactions struct{ s *MemoryStore }

func (r memoryReactions) Find(_ context.Context, messageID, userID int64, emoji string) (models.Reaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, re := range r.s.reactions {
		if re.MessageID == messageID && re.UserID == userID && re.Emoji == emoji {
			return re, nil
		}
	}
	return models.Reaction{}, ErrReactionNotFound
}

func (r memoryReactions) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.reactions, id)
	return nil
}

func (r memoryReactions) DeleteAll(_ context.Context, messageID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, re := range r.s.reactions {
		if re.MessageID == messageID {
			delete(r.s.reactions, id)
		}
	}
	return nil
}

func (r memoryReactions) Save(_ context.Context, reaction models.Reaction) (models.Reaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, re := range r.s.reactions {
		if re.MessageID == reaction.MessageID && re.UserID == reaction.UserID && re.Emoji == reaction.Emoji {
			return models.Reaction{}, ErrDuplicateReaction
		}
	}
	r.s.nextReactionID++
	reaction.ID = r.s.nextReactionID
	reaction.CreatedAt = r.s.now()
	r.s.reactions[reaction.ID] = reaction
	return reaction, nil
}

func (r memoryReactions) CountByEmoji(_ context.Context, messageID int64) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[string]int{}
	if msg, ok := r.s.messages[messageID]; !ok || msg.IsDeleted {
		return counts, nil
	}
	for _, re := range r.s.reactions {
		if re.MessageID == messageID {
			counts[re.Emoji]++
		}
	}
	return counts, nil
}

func (r memoryReactions) ListByMessage(_ context.Context, messageID int64) ([]models.Reaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []models.Reaction{}
	for _, re := range r.s.reactions {
		if re.MessageID == messageID {
			result = append(result, re)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
