package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"chat-realtime/internal/auth"
	"chat-realtime/internal/config"
	"chat-realtime/internal/db"
	"chat-realtime/internal/events"
	grpcserver "chat-realtime/internal/grpc"
	"chat-realtime/internal/handlers"
	"chat-realtime/internal/logging"
	"chat-realtime/internal/middleware"
	"chat-realtime/internal/models"
	"chat-realtime/internal/observability"
	"chat-realtime/internal/presence"
	"chat-realtime/internal/repositories"
	"chat-realtime/internal/services"
	"chat-realtime/internal/storage"
	"chat-realtime/internal/ws"
)

type repos struct {
	users     repositories.UserRepository
	messages  repositories.MessageRepository
	reactions repositories.ReactionRepository
	close     func() error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.IsProduction(), cfg.Server.Debug)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	store, err := openRepositories(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open repositories", zap.Error(err))
	}
	defer store.close()

	publisher := events.NewPublisher(cfg.Events, logger)
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, cfg.Tracing.ServiceName, cfg.Server.Env, logger)
	logger.Info("event publisher ready", zap.String("mode", events.Mode(publisher)), zap.String("noop_reason", events.NoopReason(publisher)))

	presenceStore := openPresenceStore(ctx, cfg.Redis, logger)
	defer presenceStore.Close()

	images, localImages, err := openImageStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to open image storage", zap.Error(err))
	}

	validator := auth.NewJWTValidator(cfg.Auth.JWTSecret)
	hub := ws.NewHub(logger)

	router := services.NewRouter(store.users, store.messages, store.reactions, hub, emitter, logger)
	reactions := services.NewReactions(store.users, store.messages, store.reactions, hub, emitter, logger)
	readState := services.NewReadState(store.users, store.messages, emitter, logger)
	directory := services.NewDirectory(store.users, hub)
	broadcaster := presence.NewBroadcaster(store.users, hub, presenceStore, emitter, logger)

	chatWS := ws.NewChatWebSocketHandler(hub, validator, store.users, broadcaster, router, reactions, emitter, cfg.WS, logger)
	messageHandler := handlers.NewMessageHandler(router, reactions, readState)
	userHandler := handlers.NewUserHandler(directory)
	fileHandler := handlers.NewFileHandler(images, localImages, cfg.Storage.MaxImageBytes, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// middlewares
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	engine.Use(middleware.RequestID())
	engine.Use(observability.HTTPMetricsMiddleware())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": len(hub.OnlineUsers())})
	})

	authMiddleware := middleware.AuthMiddleware(validator)
	api := engine.Group("/api", authMiddleware)
	messageHandler.Register(api.Group("/messages"))
	userHandler.Register(api.Group("/users"))
	api.GET("/auth/me", userHandler.Me)
	api.POST("/files/images", fileHandler.UploadImage)
	engine.GET("/api/files/images/:name", fileHandler.ServeImage)

	engine.GET("/ws", chatWS.Handle)
	handlers.RegisterDebugRoutes(engine, hub, emitter, cfg.Server.Debug)

	grpcSrv := grpcserver.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		logger.Fatal("failed to listen grpc", zap.Error(err))
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", zap.Error(err))
		}
	}()

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: engine}
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	grpcSrv.SetServing(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
	grpcSrv.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}
}

func openRepositories(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repos, error) {
	if cfg.Driver == "memory" {
		mem := repositories.NewMemoryStore()
		for _, u := range []models.User{
			{Email: "alice@example.com", DisplayName: "Alice"},
			{Email: "bob@example.com", DisplayName: "Bob"},
		} {
			mem.AddUser(u)
		}
		logger.Warn("using in-memory repositories, data is lost on restart")
		return repos{users: mem.Users(), messages: mem.Messages(), reactions: mem.Reactions(), close: func() error { return nil }}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	database, err := db.Connect(connectCtx, cfg.DSN, logger)
	if err != nil {
		return repos{}, err
	}
	return repos{
		users:     repositories.NewUserRepo(database),
		messages:  repositories.NewMessageRepo(database),
		reactions: repositories.NewReactionRepo(database),
		close:     database.Close,
	}, nil
}

// openPresenceStore mirrors presence into redis when reachable; the chat core never depends on it.
func openPresenceStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) presence.Store {
	if cfg.Addr == "" {
		return presence.NoopStore{}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, presence mirror disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return presence.NoopStore{}
	}
	logger.Info("presence mirror ready", zap.String("addr", cfg.Addr))
	return presence.NewRedisStore(client, cfg.Prefix)
}

func openImageStore(ctx context.Context, cfg config.StorageConfig) (storage.ImageStore, *storage.LocalStore, error) {
	if cfg.Driver == "s3" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Region, cfg.Bucket, cfg.Endpoint, cfg.PublicBaseURL)
		return s3Store, nil, err
	}
	local, err := storage.NewLocalStore(cfg.Dir, cfg.PublicBaseURL)
	return local, local, err
}
