package models

import (
	"time"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error" example:"Service unavailable"`
	Message   string    `json:"message" example:"The warehouse could not answer the query"`
	Code      string    `json:"code,omitempty" example:"GATEWAY_UNAVAILABLE"`
	RequestID string    `json:"request_id,omitempty" example:"5f0c6a6e-2b1a-4c8e-9f51-1d7f0b0b6a11"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Path      string    `json:"path" example:"/api/v1/analytics/summary"`
}

// AnalyticsResponse wraps every analytics result with the filter elements
// that were ignored while compiling the request.
type AnalyticsResponse struct {
	Data       interface{}      `json:"data"`
	Dropped    []DroppedElement `json:"dropped,omitempty"`
	Scoped     bool             `json:"scoped" example:"true"`
	DurationMs int64            `json:"duration_ms" example:"35"`
	Timestamp  time.Time        `json:"timestamp" example:"2024-01-15T10:30:00Z"`
}

// DroppedElement is a filter value that failed validation and was ignored
type DroppedElement struct {
	Field  string `json:"field" example:"state"`
	Value  string `json:"value" example:"XX"`
	Reason string `json:"reason" example:"invalid value"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Timestamp time.Time              `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Version   string                 `json:"version" example:"1.0.0"`
	Services  map[string]ServiceInfo `json:"services"`
	Uptime    string                 `json:"uptime" example:"2h30m45s"`
}

// ServiceInfo represents individual service health
type ServiceInfo struct {
	Status    string    `json:"status" example:"healthy"`
	LastCheck time.Time `json:"last_check" example:"2024-01-15T10:30:00Z"`
	Error     string    `json:"error,omitempty"`
}

// MetricsResponse represents metrics response
type MetricsResponse struct {
	Requests  RequestsMetrics  `json:"requests"`
	Cache     CacheMetrics     `json:"cache"`
	Engine    EngineMetrics    `json:"engine"`
	Warehouse WarehouseMetrics `json:"warehouse"`
	System    SystemMetrics    `json:"system"`
	Timestamp time.Time        `json:"timestamp" example:"2024-01-15T10:30:00Z"`
}

// RequestsMetrics represents request metrics
type RequestsMetrics struct {
	Total             int64   `json:"total" example:"1500"`
	Success           int64   `json:"success" example:"1450"`
	Errors            int64   `json:"errors" example:"50"`
	SuccessRate       float64 `json:"success_rate" example:"96.67"`
	AvgResponseTimeMs int64   `json:"avg_response_time_ms" example:"120"`
}

// CacheMetrics represents cache metrics
type CacheMetrics struct {
	HitRate float64 `json:"hit_rate" example:"85.5"`
	Hits    int64   `json:"hits" example:"1240"`
	Misses  int64   `json:"misses" example:"210"`
	Size    int64   `json:"size" example:"12"`
}

// EngineMetrics counts aggregation failures and skipped rows
type EngineMetrics struct {
	FailedQueries int64 `json:"failed_queries" example:"0"`
	SkippedRows   int64 `json:"skipped_rows" example:"3"`
}

// WarehouseMetrics counts statements run against the warehouse
type WarehouseMetrics struct {
	Executed int64 `json:"executed" example:"5400"`
	Failed   int64 `json:"failed" example:"2"`
	Rows     int64 `json:"rows" example:"120000"`
}

// SystemMetrics represents system metrics
type SystemMetrics struct {
	MemoryUsage float64 `json:"memory_usage" example:"512.5"`
	Goroutines  int     `json:"goroutines" example:"125"`
}
