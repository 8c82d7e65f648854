package middleware

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestMetrics counts handled requests
type RequestMetrics struct {
	total    atomic.Int64
	errors   atomic.Int64
	duration atomic.Int64
}

// RequestSnapshot is a point-in-time copy of RequestMetrics
type RequestSnapshot struct {
	Total    int64
	Errors   int64
	Duration time.Duration
}

// NewRequestMetrics creates an empty counter set
func NewRequestMetrics() *RequestMetrics {
	return &RequestMetrics{}
}

// Middleware records every request; 5xx responses count as errors
func (m *RequestMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		m.total.Add(1)
		m.duration.Add(int64(time.Since(start)))
		if c.Writer.Status() >= 500 {
			m.errors.Add(1)
		}
	}
}

// Snapshot returns the current counters
func (m *RequestMetrics) Snapshot() RequestSnapshot {
	return RequestSnapshot{
		Total:    m.total.Load(),
		Errors:   m.errors.Load(),
		Duration: time.Duration(m.duration.Load()),
	}
}
