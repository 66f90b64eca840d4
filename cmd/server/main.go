// Package main runs the session orchestration HTTP server with WebSocket
// fan-out and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/convene-app/backend/config"
	"github.com/convene-app/backend/internal/assignments"
	"github.com/convene-app/backend/internal/middleware"
	"github.com/convene-app/backend/internal/models"
	"github.com/convene-app/backend/internal/realtime"
	"github.com/convene-app/backend/internal/sessionlog"
	"github.com/convene-app/backend/internal/sessions"
	"github.com/convene-app/backend/internal/stage"
	"github.com/convene-app/backend/internal/video"
	"github.com/convene-app/backend/pkg/database"
	"github.com/convene-app/backend/pkg/queue"
	"github.com/convene-app/backend/pkg/redis"
	"github.com/convene-app/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Video provider: deterministic room addresses plus join tokens.
	rooms := video.NewRooms(cfg.Video.RoomPrefix)
	tokens := video.NewTokenService(cfg.Video.TokenSecret, cfg.Video.TokenExpireMinutes)

	// Snapshot store, event queue, and cross-instance pub/sub.
	synchronizer := assignments.NewSynchronizer(rdb.Client, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub, synchronizer)

	// Session orchestration.
	sessionRepo := sessions.NewRepository(pool)
	registry := stage.NewRegistry()
	sessionService := sessions.NewService(sessionRepo, registry, synchronizer, jobQueue, hub, rooms.AddressFor, logger)
	sessionHandler := sessions.NewHandler(sessionService, tokens)

	// Transition log read side.
	sessionLogRepo := sessionlog.NewRepository(pool)
	sessionLogHandler := sessionlog.NewHandler(sessionLogRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Sessions
	router.POST("/sessions", sessionHandler.Create)
	router.GET("/sessions", sessionHandler.List)
	router.GET("/sessions/:id", sessionHandler.Get)

	// Roster
	router.POST("/sessions/:id/participants", sessionHandler.Join)
	router.GET("/sessions/:id/participants", sessionHandler.ListParticipants)
	router.DELETE("/sessions/:id/participants/:participant_id", sessionHandler.Leave)

	// Host controls
	router.POST("/sessions/:id/start", sessionHandler.Start)
	router.POST("/sessions/:id/pause", sessionHandler.Pause)
	router.POST("/sessions/:id/resume", sessionHandler.Resume)
	router.POST("/sessions/:id/advance-substage", sessionHandler.AdvanceSubstage)
	router.POST("/sessions/:id/advance-stage", sessionHandler.AdvanceStage)
	router.POST("/sessions/:id/previous-substage", sessionHandler.PreviousSubstage)
	router.POST("/sessions/:id/end", sessionHandler.End)
	router.POST("/sessions/:id/timer", sessionHandler.AdjustTimer)

	// Read side
	router.GET("/sessions/:id/assignments", sessionHandler.GetAssignments)
	router.GET("/sessions/:id/organization", sessionHandler.GetOrganization)
	router.GET("/sessions/:id/room-token", sessionHandler.GetRoomToken)
	router.GET("/sessions/:id/events", sessionLogHandler.GetEvents)
	router.GET("/sessions/:id/summary", sessionLogHandler.GetSummary)

	// WebSocket (participant identity in query params)
	lookup := func(sessionID, participantID uuid.UUID) (*models.Participant, error) {
		return sessionService.Participant(context.Background(), sessionID, participantID)
	}
	mint := func(sessionID, participantID uuid.UUID, roomAddress, displayName string) (string, error) {
		return tokens.Generate(sessionID, participantID, roomAddress, displayName)
	}
	router.GET("/ws", realtime.ServeWs(hub, logger, lookup, rooms, synchronizer, mint))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
