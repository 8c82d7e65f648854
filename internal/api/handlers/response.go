package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/cnpj-analytics/internal/aggregate"
	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/services"
	"github.com/sirupsen/logrus"
)

// bindRequest decodes the analytics body. An empty body is the empty filter.
func bindRequest(c *gin.Context, logger *logrus.Logger) (models.AnalyticsRequest, bool) {
	var req models.AnalyticsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"error":      err.Error(),
		}).Warn("Invalid request body")

		writeError(c, http.StatusBadRequest, "Invalid request", "Request body must be a JSON filter object", "INVALID_JSON")
		return req, false
	}
	return req, true
}

// respondError maps service errors to HTTP statuses
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"error":      err.Error(),
	}).Error("Request failed")

	switch {
	case errors.Is(err, filter.ErrScopeViolation):
		writeError(c, http.StatusInternalServerError, "Internal server error", "Query rejected: industrial scope clause missing", "SCOPE_VIOLATION")
	case errors.Is(err, services.ErrIBGEUnavailable):
		writeError(c, http.StatusServiceUnavailable, "Service unavailable", "The IBGE aggregates API could not be reached", "IBGE_UNAVAILABLE")
	case aggregate.IsUnavailable(err):
		writeError(c, http.StatusServiceUnavailable, "Service unavailable", "The warehouse could not answer the query", "GATEWAY_UNAVAILABLE")
	default:
		writeError(c, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred", "INTERNAL_ERROR")
	}
}

func writeError(c *gin.Context, status int, title, message, code string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error:     title,
		Message:   message,
		Code:      code,
		RequestID: c.GetString("request_id"),
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

// droppedElements converts compiler diagnostics for the response envelope
func droppedElements(p filter.Predicate) []models.DroppedElement {
	if len(p.Dropped) == 0 {
		return nil
	}
	out := make([]models.DroppedElement, len(p.Dropped))
	for i, d := range p.Dropped {
		out[i] = models.DroppedElement{Field: string(d.Field), Value: d.Value, Reason: d.Reason}
	}
	return out
}
