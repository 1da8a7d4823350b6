package api

import (
	"fmt"
	"net/http"

	"bunkhouse/internal/audit"
	"bunkhouse/internal/cache"
	"bunkhouse/internal/config"
	"bunkhouse/internal/database"
	"bunkhouse/internal/external"
	"bunkhouse/internal/handlers"
	"bunkhouse/internal/logger"
	"bunkhouse/internal/messaging"
	"bunkhouse/internal/middleware"
	"bunkhouse/internal/repository"
	"bunkhouse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API server with all its wired dependencies
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	services *service.Services
	repos    *repository.Repositories
}

// NewServer wires the full dependency graph. Postgres and NATS are required;
// Valkey and Elasticsearch are optional and the server degrades without them.
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	valkeyClient, err := cache.NewValkeyClient()
	if err != nil {
		logger.Get().Warn("Valkey unavailable, availability responses will be uncached", "error", err)
		valkeyClient = nil
	}

	auditSink, err := audit.NewSink(cfg.Elasticsearch)
	if err != nil {
		logger.Get().Warn("Elasticsearch unavailable, audit entries will be dropped", "error", err)
		auditSink = nil
	}

	paymentClient := external.NewPaymentClient(cfg.Payment)

	repos := repository.NewRepositories(db)

	var sink service.AuditWriter
	if auditSink != nil {
		sink = auditSink
	}
	services := service.NewServices(repos, natsClient, paymentClient, sink, service.Options{
		CheckoutTTL:          cfg.CheckoutTTL,
		AvailabilityCacheTTL: cfg.AvailabilityCacheTTL,
	})

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		valkey:   valkeyClient,
		services: services,
		repos:    repos,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services, s.valkey)

	api := s.router.Group("/api")
	{
		api.GET("/availability", h.GetAvailability)
		api.POST("/checkout", h.CreateCheckout)
		api.POST("/webhooks/payment", h.PaymentWebhook)

		bookings := api.Group("/bookings")
		{
			bookings.GET("/:id", h.GetBooking)
			bookings.POST("/cancel", h.CancelBooking)
		}

		// Staff-only surface.
		admin := api.Group("")
		admin.Use(middleware.AdminAuth(s.config.AdminToken))
		{
			admin.POST("/refunds", h.CreateRefund)
			admin.POST("/bookings/confirm", h.ConfirmBooking)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthCheck(c *gin.Context) {
	check := s.db.HealthCheck(c.Request.Context())
	if check.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "degraded",
			"database": check,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "bunkhouse-api",
		"version": "1.0.0",
	})
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup closes connections
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			logger.Get().Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
