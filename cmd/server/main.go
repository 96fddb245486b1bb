package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/helpdesk-io/helpdesk-ce/internal/api"
	"github.com/helpdesk-io/helpdesk-ce/internal/auth"
	"github.com/helpdesk-io/helpdesk-ce/internal/config"
	"github.com/helpdesk-io/helpdesk-ce/internal/database"
	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/middleware"
	"github.com/helpdesk-io/helpdesk-ce/internal/notifications"
	"github.com/helpdesk-io/helpdesk-ce/internal/repository"
	"github.com/helpdesk-io/helpdesk-ce/internal/runner"
	"github.com/helpdesk-io/helpdesk-ce/internal/runner/tasks"
	"github.com/helpdesk-io/helpdesk-ce/internal/sweeper"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	if err := config.Load(configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.Get()

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := log.New(os.Stdout, "[HELPDESK] ", log.LstdFlags)

	db, err := database.Open(database.Options{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Name:            cfg.Database.Name,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Println("connected to database")

	jwtSecret := cfg.Auth.JWT.Secret
	if jwtSecret == "" {
		jwtSecret = os.Getenv("JWT_SECRET")
	}
	if jwtSecret == "" {
		jwtSecret = "default-secret-change-in-production"
		logger.Println("WARNING: using default JWT secret, change this in production")
	}
	jwtManager := auth.NewJWTManager(jwtSecret, cfg.Auth.JWT.Issuer,
		cfg.Auth.JWT.AccessTokenTTL, cfg.Auth.JWT.RefreshTokenTTL)

	userRepo := repository.NewUserRepository(db, logger)
	ticketRepo := repository.NewTicketRepository(db, cfg.Ticket.NumberPrefix, logger)
	notificationRepo := repository.NewNotificationRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	engine := lifecycle.NewEngine(ticketRepo, cfg.Ticket.ArchiveAfterDays, logger)
	center := notifications.NewCenter(notificationRepo)
	center.SetDispatcher(notifications.NewLogDispatcher(logger))

	handlers := api.NewHandlers(userRepo, ticketRepo, attachmentRepo, engine,
		center, jwtManager, cfg.Upload, cfg.Auth, logger)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, userRepo)

	router := api.NewRouter(handlers, authMiddleware, cfg.Metrics)
	router.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sw := sweeper.New(ticketRepo, engine, cfg.Ticket.ArchiveAfterDays, logger)
	registry := runner.NewTaskRegistry()
	registry.Register(tasks.NewArchiveTask(sw, cfg.Ticket.SweepSchedule, logger))
	taskRunner := runner.NewRunner(registry, logger)
	if err := taskRunner.Start(ctx); err != nil {
		log.Fatalf("Failed to start task runner: %v", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Printf("starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("shutting down")

	taskRunner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("forced shutdown: %v", err)
	}
}
