package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/cnpj-analytics/internal/api/middleware"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/services"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
	"github.com/sirupsen/logrus"
)

// WarehouseStatsSource exposes gateway counters when available
type WarehouseStatsSource interface {
	WarehouseStats() (warehouse.Stats, bool)
}

// MetricsHandler handles metrics requests
type MetricsHandler struct {
	analytics services.AnalyticsServiceInterface
	cache     services.CacheServiceInterface
	warehouse WarehouseStatsSource
	requests  *middleware.RequestMetrics
	logger    *logrus.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(analytics services.AnalyticsServiceInterface, cache services.CacheServiceInterface, wh WarehouseStatsSource, requests *middleware.RequestMetrics, logger *logrus.Logger) *MetricsHandler {
	return &MetricsHandler{
		analytics: analytics,
		cache:     cache,
		warehouse: wh,
		requests:  requests,
		logger:    logger,
	}
}

// GetMetrics handles metrics request
// @Summary Get application metrics
// @Description Request, cache, engine and warehouse counters
// @Tags Metrics
// @Produce json
// @Success 200 {object} models.MetricsResponse
// @Router /metrics [get]
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	h.logger.WithField("request_id", c.GetString("request_id")).Debug("Getting application metrics")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := models.MetricsResponse{
		System: models.SystemMetrics{
			MemoryUsage: float64(m.Alloc) / 1024 / 1024, // MB
			Goroutines:  runtime.NumGoroutine(),
		},
		Timestamp: time.Now(),
	}

	if h.requests != nil {
		snap := h.requests.Snapshot()
		response.Requests = models.RequestsMetrics{
			Total:   snap.Total,
			Errors:  snap.Errors,
			Success: snap.Total - snap.Errors,
		}
		if snap.Total > 0 {
			response.Requests.SuccessRate = float64(snap.Total-snap.Errors) / float64(snap.Total) * 100
			response.Requests.AvgResponseTimeMs = (snap.Duration / time.Duration(snap.Total)).Milliseconds()
		}
	}

	hits, misses := h.cache.HitStats()
	response.Cache.Hits = hits
	response.Cache.Misses = misses
	if hits+misses > 0 {
		response.Cache.HitRate = float64(hits) / float64(hits+misses) * 100
	}
	if stats, err := h.cache.GetStats(c.Request.Context()); err == nil {
		if mem, ok := stats["memory"].(map[string]interface{}); ok {
			if size, ok := mem["size"].(int); ok {
				response.Cache.Size = int64(size)
			}
		}
	}

	engine := h.analytics.Stats()
	response.Engine = models.EngineMetrics{
		FailedQueries: engine.FailedQueries,
		SkippedRows:   engine.SkippedRows,
	}

	if h.warehouse != nil {
		if ws, ok := h.warehouse.WarehouseStats(); ok {
			response.Warehouse = models.WarehouseMetrics{
				Executed: ws.Executed,
				Failed:   ws.Failed,
				Rows:     ws.Rows,
			}
		}
	}

	c.JSON(http.StatusOK, response)
}
