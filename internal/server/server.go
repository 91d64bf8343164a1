package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/bus"
	"taskflow/internal/config"
	"taskflow/internal/handler"
	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/notify"
	"taskflow/internal/repository"
	"taskflow/internal/scheduler"
	"taskflow/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Engine    *gin.Engine
	DB        *gorm.DB
	Config    *config.Config
	Bus       *bus.Bus
	Scheduler *scheduler.Scheduler
}

func Init(cfg *config.Config) (*Server, error) {
	// Setup GORM
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
	}
	log.Println("✅ Connected to database")

	if err := db.AutoMigrate(
		&model.Role{},
		&model.User{},
		&model.Task{},
		&model.TaskComment{},
		&model.Notification{},
		&model.NotificationWindow{},
		&model.Channel{},
		&model.Message{},
		&model.MessageAttachment{},
		&model.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("❌ failed to migrate schema: %w", err)
	}

	// Setup Gin
	r := gin.Default()

	// The event bus lives for the whole process and is handed by reference to
	// everything that publishes or subscribes.
	eventBus := bus.New(cfg.BusBuffer)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	channelRepo := repository.NewChannelRepository(db)

	// Initialize the notification workflow engine
	store := notify.NewStore(notificationRepo, eventBus)
	dedup := notify.NewDedup(notificationRepo)
	scanner := notify.NewScanner(taskRepo, store, dedup)
	engine := notify.NewEngine(store, auditRepo, eventBus)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userRepo, auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiryHours))
	taskHandler := handler.NewTaskHandler(taskRepo, userRepo, engine, store, eventBus)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	chatHandler := handler.NewChatHandler(channelRepo, userRepo, store, eventBus)
	gateway := ws.NewGateway(eventBus, auth.NewVerifier(cfg.JWTSecret), channelRepo)

	// Public routes
	r.POST("/register", userHandler.Register)
	r.POST("/login", userHandler.Login)

	// Live connections authenticate via ?token= inside the gateway
	r.GET("/ws/notifications", gateway.Notifications)
	r.GET("/ws/chat/:id", gateway.Chat)
	r.GET("/ws/task-comments/:id", gateway.TaskComments)

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		authorized.GET("/users", userHandler.List)

		// Task routes
		authorized.POST("/tasks", taskHandler.Create)
		authorized.GET("/tasks", taskHandler.List)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.PUT("/tasks/:id", taskHandler.Update)
		authorized.DELETE("/tasks/:id", taskHandler.Delete)
		authorized.GET("/tasks/:id/comments", taskHandler.ListComments)
		authorized.POST("/tasks/:id/comments", taskHandler.CreateComment)

		// Notification routes
		authorized.GET("/notifications", notificationHandler.List)
		authorized.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		authorized.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
		authorized.POST("/notifications/mark-all-read", notificationHandler.MarkAllRead)

		// Chat routes
		authorized.POST("/channels", chatHandler.CreateChannel)
		authorized.GET("/channels", chatHandler.ListChannels)
		authorized.GET("/channels/:id/messages", chatHandler.ListMessages)
		authorized.POST("/channels/:id/messages", chatHandler.CreateMessage)
	}

	return &Server{
		Engine:    r,
		DB:        db,
		Config:    cfg,
		Bus:       eventBus,
		Scheduler: scheduler.New(scanner, cfg.ScanSchedule),
	}, nil
}

func (s *Server) Run() {
	if err := s.Scheduler.Start(); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %s\n", err)
	}

	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	go func() {
		log.Printf("🚀 Server running on port %s\n", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	s.Scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %s", err)
	}

	log.Println("✅ Server exited properly")
}
