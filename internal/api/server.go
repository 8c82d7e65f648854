package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/cnpj-analytics/internal/api/handlers"
	"github.com/nexconsult/cnpj-analytics/internal/api/middleware"
	"github.com/nexconsult/cnpj-analytics/internal/config"
	"github.com/nexconsult/cnpj-analytics/internal/services"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Server represents the HTTP server
type Server struct {
	Router   *gin.Engine
	config   *config.Config
	logger   *logrus.Logger
	services *services.Container
	metrics  *middleware.RequestMetrics
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, logger *logrus.Logger, services *services.Container) *Server {
	server := &Server{
		config:   cfg,
		logger:   logger,
		services: services,
		metrics:  middleware.NewRequestMetrics(),
	}

	server.setupRouter()
	return server
}

// setupRouter configures the router with all routes and middleware
func (s *Server) setupRouter() {
	s.Router = gin.New()

	// Global middleware
	s.Router.Use(middleware.RequestID())
	s.Router.Use(middleware.Logger(s.logger))
	s.Router.Use(middleware.Recovery(s.logger))
	s.Router.Use(s.metrics.Middleware())
	s.Router.Use(middleware.CORS(s.config.Security.CORS))
	s.Router.Use(middleware.Security())

	// Health and metrics endpoints (no rate limiting)
	healthHandler := handlers.NewHealthHandler(s.services, s.logger)
	s.Router.GET("/health", healthHandler.GetHealth)
	s.Router.GET("/health/ready", healthHandler.GetReadiness)
	s.Router.GET("/health/live", healthHandler.GetLiveness)

	metricsHandler := handlers.NewMetricsHandler(s.services.AnalyticsService, s.services.CacheService, s.services, s.metrics, s.logger)
	s.Router.GET("/metrics", metricsHandler.GetMetrics)

	// Swagger documentation
	if s.config.Server.Environment != "production" {
		s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		s.Router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})
	}

	rateLimiter := middleware.NewRateLimiter(s.config.Security.RateLimit)

	v1 := s.Router.Group("/api/v1")
	v1.Use(rateLimiter.Middleware())
	{
		analyticsHandler := handlers.NewAnalyticsHandler(s.services.AnalyticsService, s.services.ExportService, s.logger)
		analytics := v1.Group("/analytics")
		{
			analytics.POST("/summary", analyticsHandler.Summary)
			analytics.POST("/sectors", analyticsHandler.Sectors)
			analytics.POST("/states", analyticsHandler.States)
			analytics.POST("/municipalities", analyticsHandler.Municipalities)
			analytics.POST("/trends/opening", analyticsHandler.OpeningTrend)
			analytics.POST("/trends/closing", analyticsHandler.ClosingTrend)
			analytics.POST("/maturity", analyticsHandler.Maturity)
			analytics.POST("/legal-nature", analyticsHandler.LegalNatures)
			analytics.POST("/branch-split", analyticsHandler.BranchSplit)
			analytics.POST("/dashboard", analyticsHandler.Dashboard)
			analytics.POST("/correlation", analyticsHandler.Correlation)
			analytics.POST("/cycle", analyticsHandler.CyclePhase)
		}

		v1.POST("/companies", analyticsHandler.Companies)
		v1.POST("/companies/export", analyticsHandler.Export)

		referenceHandler := handlers.NewReferenceHandler(s.services.ReferenceService, s.logger)
		reference := v1.Group("/reference")
		{
			reference.GET("/legal-natures", referenceHandler.LegalNatures)
			reference.GET("/classifications", referenceHandler.Classifications)
			reference.GET("/municipalities", referenceHandler.Municipalities)
			reference.GET("/divisions", referenceHandler.Divisions)
			reference.GET("/states", referenceHandler.States)
		}

		v1.GET("/ibge/series", handlers.NewIBGEHandler(s.services.IBGEService, s.logger).Series)

		cache := v1.Group("/cache")
		cache.Use(middleware.AdminAuth(s.config.Security.AdminToken))
		{
			cacheHandler := handlers.NewCacheHandler(s.services.CacheService, s.logger)
			cache.GET("/stats", cacheHandler.GetStats)
			cache.DELETE("/clear", cacheHandler.Clear)
		}
	}

	s.Router.HandleMethodNotAllowed = true

	// 404 handler
	s.Router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not Found",
			"message":   "The requested resource was not found",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
		})
	})

	// 405 handler
	s.Router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":     "Method Not Allowed",
			"message":   "The requested method is not allowed for this resource",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		})
	})
}
