// Package api exposes the REST and websocket surface. Handlers stay thin:
// order mutations go through the lifecycle engine, boundary features (auth,
// menu, feedback, analytics) work against the database directly.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	"canteen/internal/lifecycle"
	"canteen/internal/realtime"
)

// Server wires the HTTP routes to the engine and the realtime hub.
type Server struct {
	router    *gin.Engine
	engine    *lifecycle.Engine
	hub       *realtime.Hub
	db        *gorm.DB
	jwtSecret []byte
}

func NewServer(engine *lifecycle.Engine, hub *realtime.Hub, db *gorm.DB, jwtSecret string) *Server {
	s := &Server{
		router:    gin.Default(),
		engine:    engine,
		hub:       hub,
		db:        db,
		jwtSecret: []byte(jwtSecret),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.AuthMiddleware(), s.hub.ServeWS)

	auth := s.router.Group("/api/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
		auth.GET("/managers", s.handleListManagers)
		auth.GET("/me", s.AuthMiddleware(), s.handleMe)
	}

	orders := s.router.Group("/api/orders", s.AuthMiddleware())
	{
		orders.POST("", s.handlePlaceOrder)
		orders.GET("", s.handleListOrders)
		orders.GET("/active", s.handleActiveOrders)
		orders.POST("/cancel/:id", s.handleStudentCancel)
		orders.PUT("/cancel/:id", s.handleManagerCancel)
		orders.PUT("/disapprove/:id", s.handleDisapprove)
		orders.PUT("/confirm-payment/:id", s.handleConfirmPayment)
		orders.PUT("/update/:id", s.handleAdvance)
		orders.POST("/verify-otp/:id", s.handleVerifyOTP)
	}

	categories := s.router.Group("/api/categories", s.AuthMiddleware())
	{
		categories.GET("", s.handleListCategories)
		categories.POST("", s.handleCreateCategory)
		categories.DELETE("/:id", s.handleDeleteCategory)
	}

	menu := s.router.Group("/api/menu", s.AuthMiddleware())
	{
		menu.GET("", s.handleListMenu)
		menu.POST("", s.handleCreateMenuItem)
		menu.PUT("/:id", s.handleUpdateMenuItem)
		menu.DELETE("/:id", s.handleDeleteMenuItem)
	}

	s.router.POST("/api/feedback", s.AuthMiddleware(), s.handleFeedback)
	s.router.GET("/api/analytics", s.AuthMiddleware(), s.handleAnalytics)
}

// Router returns the gin router, exposed for tests and the HTTP server.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
