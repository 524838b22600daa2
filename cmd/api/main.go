package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/omreki/domasy/internal/audit"
	"github.com/omreki/domasy/internal/auth"
	"github.com/omreki/domasy/internal/config"
	"github.com/omreki/domasy/internal/documents"
	"github.com/omreki/domasy/internal/notifications"
	"github.com/omreki/domasy/internal/users"
	"github.com/omreki/domasy/internal/workflow"
	"github.com/omreki/domasy/pkg/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Connect to database
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	// The notifications module manages its own tables through gorm, on the
	// same connection pool.
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to open gorm session", zap.Error(err))
	}

	ctx := context.Background()
	s3Client, err := storage.NewS3Client(ctx, cfg.Storage.Config)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	// Wire modules, leaf-first.
	userRepo := users.NewRepository(db)

	auditRepo := audit.NewRepository(db)
	auditService := audit.NewService(auditRepo, logger)
	auditHandler := audit.NewHandler(auditService)

	mailer := notifications.NewSMTPMailer(cfg.Email)
	notificationService, err := notifications.NewService(gormDB, mailer, userRepo, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notifications", zap.Error(err))
	}
	notificationHandler := notifications.NewHandler(notificationService)

	documentRepo := documents.NewRepository(db)
	workflowRepo := workflow.NewRepository(db)
	workflowService := workflow.NewService(
		workflowRepo,
		documents.NewWorkflowBridge(documentRepo),
		userRepo,
		auditService,
		notificationService,
		logger,
	)
	workflowHandler := workflow.NewHandler(workflowService)

	documentService := documents.NewService(
		documentRepo,
		s3Client,
		workflowService,
		userRepo,
		auditService,
		logger,
		cfg.Storage.Bucket,
		cfg.Workflow.FallbackApproverEmail,
	)
	documentHandler := documents.NewHandler(documentService)

	authService := auth.NewService(userRepo, cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	authHandler := auth.NewHandler(authService)

	maintenance := notifications.NewMaintenance(notificationService, workflowRepo, logger)
	if err := maintenance.Start(); err != nil {
		logger.Fatal("Failed to start notification maintenance", zap.Error(err))
	}
	defer maintenance.Stop()

	// Setup Router
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	authHandler.RegisterRoutes(router)

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(authService, userRepo))
	{
		authHandler.RegisterProtectedRoutes(api)
		documentHandler.RegisterRoutes(api)
		workflowHandler.RegisterRoutes(api)
		notificationHandler.RegisterRoutes(api)
		auditHandler.RegisterRoutes(api)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
