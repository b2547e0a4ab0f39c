package services

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-realtime/internal/models"
	"chat-realtime/internal/protocol"
	"chat-realtime/internal/repositories"
)

type recordingDelivery struct {
	mu     sync.Mutex
	frames map[int64][][]byte
}

func newRecordingDelivery() *recordingDelivery {
	return &recordingDelivery{frames: map[int64][][]byte{}}
}

func (d *recordingDelivery) Send(userID int64, frame []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames[userID] = append(d.frames[userID], frame)
	return true
}

func (d *recordingDelivery) to(userID int64) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames[userID]
}

func (d *recordingDelivery) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, f := range d.frames {
		n += len(f)
	}
	return n
}

func decodeFrame(t *testing.T, frame []byte, kind protocol.Kind, into any) {
	t.Helper()
	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	require.Equal(t, kind, env.Type)
	require.NoError(t, json.Unmarshal(env.Payload, into))
}

func seededStore() *repositories.MemoryStore {
	store := repositories.NewMemoryStore()
	store.AddUser(models.User{ID: 1, Email: "ana@example.com", DisplayName: "Ana"})
	store.AddUser(models.User{ID: 2, Email: "ben@example.com", DisplayName: "Ben"})
	store.AddUser(models.User{ID: 3, Email: "cleo@example.com", DisplayName: "Cleo"})
	return store
}

func strPtr(s string) *string { return &s }
