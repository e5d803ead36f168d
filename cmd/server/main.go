// Package main runs the practice dashboard HTTP server with WebSocket and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/odontosync/backend/config"
	"github.com/odontosync/backend/internal/analytics"
	"github.com/odontosync/backend/internal/assistant"
	"github.com/odontosync/backend/internal/attachments"
	"github.com/odontosync/backend/internal/audit"
	"github.com/odontosync/backend/internal/auth"
	"github.com/odontosync/backend/internal/crm"
	"github.com/odontosync/backend/internal/directory"
	"github.com/odontosync/backend/internal/middleware"
	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/internal/pipeline"
	"github.com/odontosync/backend/internal/realtime"
	"github.com/odontosync/backend/internal/scheduling"
	"github.com/odontosync/backend/internal/store"
	"github.com/odontosync/backend/internal/voice"
	"github.com/odontosync/backend/internal/worker"
	"github.com/odontosync/backend/pkg/database"
	"github.com/odontosync/backend/pkg/queue"
	"github.com/odontosync/backend/pkg/redis"
	"github.com/odontosync/backend/pkg/response"
	"github.com/odontosync/backend/pkg/storage"
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

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			FilesBucket:          cfg.AWS.FilesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	if err := authRepo.EnsureDemo(ctx, cfg.Demo.Email, cfg.Demo.Password, cfg.Demo.Name); err != nil {
		logger.Warn("demo account seed failed", zap.Error(err))
	}

	// Audit pipeline: store mutations enqueue, the worker drains to Postgres.
	jobQueue := queue.NewQueue(rdb.Client, logger)
	auditRepo := audit.NewRepository(pool)
	recorder := audit.NewQueueRecorder(jobQueue, logger)
	auditProcessor := worker.NewAuditProcessor(auditRepo, jobQueue, logger)

	// Organization state store over Redis.
	docs := store.NewRedisDocuments(rdb.Client)
	orgStore := store.New(docs, recorder, logger, store.Config{
		DocumentKey:  cfg.Store.DocumentKey,
		SaveRetries:  cfg.Store.SaveRetries,
		RetryBackoff: time.Duration(cfg.Store.RetryBackoffMS) * time.Millisecond,
	})
	orgStore.SetOnChange(func(org *models.Organization) {
		hub.BroadcastToOrgAndPublish(org.ID, "state.updated", map[string]any{"version": org.Version})
	})

	// Assistant: provider, fail-open bridge, proposal policy, dispatcher.
	provider := assistant.NewHTTPProvider(assistant.HTTPConfig{
		BaseURL:        cfg.Assistant.BaseURL,
		APIKey:         cfg.Assistant.APIKey,
		CommandModel:   cfg.Assistant.CommandModel,
		AnalyticsModel: cfg.Assistant.AnalyticsModel,
		Timeout:        time.Duration(cfg.Assistant.TimeoutSec) * time.Second,
	})
	bridge := assistant.NewBridge(provider, logger)

	templatePolicy := pipeline.NewTemplatePolicy()
	var policy pipeline.ProposalPolicy = templatePolicy
	if cfg.Assistant.APIKey != "" {
		policy = &pipeline.AssistantPolicy{
			Suggest: func(ctx context.Context, p models.Patient) (models.Proposal, error) {
				outline, err := provider.SuggestProposal(ctx, string(p.Mode), p.Name, p.AIInsights)
				if err != nil {
					return models.Proposal{}, err
				}
				prop := models.Proposal{
					ID:        "prop_" + orgStore.NewID()[:8],
					Title:     outline.Title,
					Status:    models.ProposalDraft,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				for _, it := range outline.Items {
					prop.Items = append(prop.Items, models.ProposalItem{Description: it.Description, Price: it.Price})
					prop.Total += it.Price
				}
				return prop, nil
			},
			Fallback: templatePolicy,
			Logger:   logger,
		}
	}

	engine := pipeline.NewEngine(orgStore, policy, logger)
	scheduler := scheduling.NewService(orgStore, logger)
	dispatcher := assistant.NewDispatcher(engine, scheduler, orgStore, logger)

	// Handlers
	crmHandler := crm.NewHandler(orgStore, engine, logger)
	schedulingHandler := scheduling.NewHandler(scheduler, logger)
	directoryHandler := directory.NewHandler(orgStore, logger)
	assistantHandler := assistant.NewHandler(bridge, dispatcher, logger)
	analyticsHandler := analytics.NewHandler(orgStore, bridge, auditRepo, logger)
	var attachmentsHandler *attachments.Handler
	if s3Client != nil {
		attachmentsHandler = attachments.NewHandler(orgStore, s3Client,
			time.Duration(cfg.AWS.PresignExpireMinutes)*time.Minute, logger)
	}

	refreshValidate := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
	}
	voiceValidate := func(token string) (voice.Identity, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return voice.Identity{}, err
		}
		return voice.Identity{
			Name:     claims.Name,
			Email:    claims.Email,
			Provider: string(claims.Provider),
		}, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	router.POST("/auth/session", authHandler.Session)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.GET("/users", authHandler.List)

		// Workspace document
		api.GET("/state", crmHandler.State)
		api.PUT("/state", crmHandler.SaveState)

		// Patients and pipeline
		api.GET("/patients/draft", crmHandler.NewDraft)
		api.POST("/patients", crmHandler.CreatePatient)
		api.PATCH("/patients/:id", crmHandler.UpdatePatient)
		api.POST("/patients/:id/stage", crmHandler.MoveStage)
		api.GET("/pipeline/stages", crmHandler.Stages)

		// Patient files (S3)
		if attachmentsHandler != nil {
			api.POST("/patients/:id/files", middleware.DenyProvider("demo"), attachmentsHandler.Upload)
			api.POST("/patients/:id/files/url", middleware.DenyProvider("demo"), attachmentsHandler.UploadURL)
			api.GET("/patients/:id/files", attachmentsHandler.List)
			api.GET("/patients/:id/files/:name", attachmentsHandler.Download)
			api.GET("/patients/:id/files/:name/url", attachmentsHandler.DownloadURL)
			api.DELETE("/patients/:id/files/:name", middleware.DenyProvider("demo"), attachmentsHandler.Delete)
		}

		// Scheduling
		api.GET("/appointments", schedulingHandler.List)
		api.POST("/appointments", schedulingHandler.Create)
		api.DELETE("/appointments/:id", schedulingHandler.Delete)

		// Staff directory
		api.GET("/subusers", directoryHandler.List)
		api.POST("/subusers", directoryHandler.Create)
		api.DELETE("/subusers/:id", directoryHandler.Delete)

		// Assistant and analytics
		api.POST("/assistant/command", assistantHandler.Command)
		api.GET("/analytics/insights", analyticsHandler.Insights)
		api.GET("/analytics/audit", analyticsHandler.History)
	}

	// WebSockets (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, models.SeedOrgID, logger, refreshValidate))
	router.GET("/voice", voice.ServeWs(voice.Config{
		ProviderURL: cfg.Voice.ProviderURL,
		Model:       cfg.Voice.Model,
		SampleRate:  cfg.Voice.SampleRate,
	}, dispatcher, logger, voiceValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (audit drain); cmd/worker runs the same loop when
	// scaled out separately.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go auditProcessor.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
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
