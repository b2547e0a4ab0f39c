package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-realtime/internal/auth"
	"chat-realtime/internal/middleware"
	"chat-realtime/internal/models"
	"chat-realtime/internal/repositories"
	"chat-realtime/internal/services"
	"chat-realtime/internal/ws"
)

const testSecret = "test-secret"

type testAPI struct {
	engine    *gin.Engine
	validator *auth.JWTValidator
	router    *services.Router
	reactions *services.Reactions
	hub       *ws.Hub
}

func newTestAPI(t *testing.T, users repositories.UserRepository, messages repositories.MessageRepository, reactions repositories.ReactionRepository) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	hub := ws.NewHub(logger)
	router := services.NewRouter(users, messages, reactions, hub, nil, logger)
	toggles := services.NewReactions(users, messages, reactions, hub, nil, logger)
	readState := services.NewReadState(users, messages, nil, logger)
	userHandler := NewUserHandler(services.NewDirectory(users, hub))
	validator := auth.NewJWTValidator(testSecret)

	engine := gin.New()
	api := engine.Group("/api", middleware.AuthMiddleware(validator))
	NewMessageHandler(router, toggles, readState).Register(api.Group("/messages"))
	userHandler.Register(api.Group("/users"))
	api.GET("/auth/me", userHandler.Me)

	return &testAPI{engine: engine, validator: validator, router: router, reactions: toggles, hub: hub}
}

func seededStore() *repositories.MemoryStore {
	store := repositories.NewMemoryStore()
	store.AddUser(models.User{ID: 1, Email: "ana@example.com", DisplayName: "Ana"})
	store.AddUser(models.User{ID: 2, Email: "ben@example.com", DisplayName: "Ben"})
	store.AddUser(models.User{ID: 3, Email: "cleo@example.com", DisplayName: "Cleo"})
	return store
}

func newMemoryAPI(t *testing.T) *testAPI {
	store := seededStore()
	return newTestAPI(t, store.Users(), store.Messages(), store.Reactions())
}

func (a *testAPI) do(t *testing.T, method, path string, userID int64, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if userID != 0 {
		token, err := a.validator.Sign(userID, "", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}

func strPtr(s string) *string { return &s }

