package server

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"linkara.id/linkaraconnect/internal/config"
	"linkara.id/linkaraconnect/internal/handler"
	"linkara.id/linkaraconnect/internal/middleware"
	"linkara.id/linkaraconnect/internal/realtime"
	"linkara.id/linkaraconnect/internal/repository"
	"linkara.id/linkaraconnect/internal/service"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	cron        *cron.Cron
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	userRepo := repository.NewUserRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Real-time subsystem: one hub instance owns the registry and
	// router for the whole process.
	authenticator := realtime.NewAuthenticator(cfg.JWTSecret, userRepo, cfg.WSAuthTimeout)
	limiter := service.NewSignalRateLimiter(redisClient, cfg.SignalRateLimit)
	hub := realtime.NewHub(authenticator, connectionRepo, notificationRepo, limiter)

	notificationSvc := service.NewNotificationService(notificationRepo, connectionRepo, hub, cfg.NotifRetention)
	connectionSvc := service.NewConnectionService(connectionRepo, userRepo, notificationSvc)
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)

	authHandler := handler.NewAuthHandler(authSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	connectionHandler := handler.NewConnectionHandler(connectionSvc)
	presenceHandler := handler.NewPresenceHandler(hub.Registry())
	adminHandler := handler.NewAdminHandler(notificationSvc)
	wsHandler := handler.NewWSHandler(hub)

	// Notification reaper: expiry sweep and read-retention sweep are
	// two independent predicates run on the same schedule.
	c := cron.New()
	if _, err := c.AddFunc(cfg.ReapSchedule, func() {
		if err := notificationSvc.Reap(context.Background()); err != nil {
			log.Printf("notification reap failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("failed to schedule notification reaper: %v", err)
	}
	c.Start()

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/ws"},
	}))

	authMiddleware := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret)

	api := router.Group("/api")

	// Public routes (no auth required)
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// Protected routes (apply auth middleware explicitly)
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Admin routes
		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.POST("/notifications/broadcast", adminHandler.Broadcast)
			adminGroup.POST("/notifications/push", adminHandler.PushLive)
		}

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.POST("/notifications/:id/action", notificationHandler.ResolveAction)
		protected.DELETE("/notifications/:id", notificationHandler.Delete)

		// Connection routes
		protected.POST("/connections", connectionHandler.SendRequest)
		protected.PUT("/connections/:id/respond", connectionHandler.Respond)
		protected.DELETE("/connections/:id", connectionHandler.Remove)
		protected.POST("/connections/:id/block", connectionHandler.Block)
		protected.GET("/connections", connectionHandler.ListConnections)
		protected.GET("/connections/pending", connectionHandler.ListPending)

		// Presence routes
		protected.GET("/presence/online", presenceHandler.GetOnlineUsers)
		protected.GET("/presence/:id", presenceHandler.GetUserPresence)

		// Real-time channel
		protected.GET("/ws", wsHandler.HandleWebSocket)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		cron:        c,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) Stop() {
	s.cron.Stop()
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
