package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"shopdesk-realtime/config"
	"shopdesk-realtime/internal/handler"
	"shopdesk-realtime/internal/middleware"
	"shopdesk-realtime/internal/redis"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"
	"shopdesk-realtime/internal/websocket"
	"shopdesk-realtime/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Broadcast    *handler.BroadcastHandler
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Social       *handler.SocialHandler
	Call         *handler.CallHandler
	Guest        *handler.GuestHandler
	Attachment   *handler.AttachmentHandler
	Socket       *websocket.Handler
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter, health HealthCheck) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(authService)
	s.engine.GET("/ws", auth, handlers.Socket.Connect)

	v1 := s.engine.Group("/v1")

	guest := v1.Group("/guest", middleware.GuestRateLimitMiddleware(limiter))
	{
		guest.POST("/sessions", handlers.Guest.Start)
		guest.POST("/messages", handlers.Guest.SendMessage)
		guest.GET("/messages", handlers.Guest.Messages)
		guest.GET("/session", handlers.Guest.Session)
		guest.GET("/session/status", handlers.Guest.Status)
		guest.POST("/session/end", handlers.Guest.End)
	}

	api := v1.Group("", auth)
	{
		api.POST("/broadcasting/auth", handlers.Broadcast.Auth)
		api.POST("/guest/sessions/:id/assign", handlers.Guest.Assign)
		api.POST("/guest/session/assign", handlers.Guest.AssignByToken)

		api.GET("/conversations", handlers.Conversation.List)
		api.POST("/conversations", handlers.Conversation.Create)
		api.GET("/conversations/:id", handlers.Conversation.Get)
		api.PATCH("/conversations/:id", handlers.Conversation.UpdateSettings)
		api.POST("/conversations/:id/read", handlers.Conversation.MarkRead)
		api.POST("/conversations/:id/members", handlers.Conversation.AddMembers)
		api.DELETE("/conversations/:id/members/:userId", handlers.Conversation.RemoveMember)
		api.GET("/conversations/:id/messages", handlers.Message.List)
		api.POST("/conversations/:id/messages", middleware.MessageRateLimitMiddleware(limiter), handlers.Message.Send)

		api.PATCH("/messages/:id", handlers.Message.Edit)
		api.DELETE("/messages/:id", handlers.Message.Delete)

		api.GET("/friends", handlers.Social.ListFriends)
		api.POST("/friends/requests", handlers.Social.SendRequest)
		api.POST("/friends/requests/:id/accept", handlers.Social.AcceptRequest)
		api.POST("/friends/requests/:id/reject", handlers.Social.RejectRequest)
		api.POST("/friends/requests/:id/cancel", handlers.Social.CancelRequest)
		api.DELETE("/friends/:userId", handlers.Social.Unfriend)
		api.POST("/friends/:userId/block", handlers.Social.Block)

		api.GET("/notifications", handlers.Social.ListNotifications)
		api.GET("/notifications/unread-count", handlers.Social.UnreadCount)
		api.POST("/notifications/read-all", handlers.Social.MarkAllNotificationsRead)
		api.POST("/notifications/:id/read", handlers.Social.MarkNotificationRead)
		api.DELETE("/notifications/:id", handlers.Social.DeleteNotification)

		calls := api.Group("/calls", middleware.SignalRateLimitMiddleware(limiter))
		calls.POST("/signal", handlers.Call.Signal)
		calls.POST("/status", handlers.Call.Status)

		api.POST("/attachments/presign", handlers.Attachment.Presign)
	}
}

// Start serves until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil && s.logger != nil {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
		return err
	case <-ctx.Done():
	}

	if s.logger != nil {
		s.logger.Infof("Quitting signal received, shutting down")
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
