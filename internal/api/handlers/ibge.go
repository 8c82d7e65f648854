package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/cnpj-analytics/internal/services"
	"github.com/sirupsen/logrus"
)

// IBGEHandler proxies the industrial production series
type IBGEHandler struct {
	ibge   services.IBGEServiceInterface
	logger *logrus.Logger
}

// NewIBGEHandler creates a new IBGE handler
func NewIBGEHandler(ibge services.IBGEServiceInterface, logger *logrus.Logger) *IBGEHandler {
	return &IBGEHandler{
		ibge:   ibge,
		logger: logger,
	}
}

// Series returns the production series for a division
// @Summary IBGE industrial production series
// @Description Monthly PIM-PF series for a CNAE division; general industry when the division has no category
// @Tags IBGE
// @Produce json
// @Param division query string false "CNAE division (two digits)"
// @Success 200 {object} models.IndexSeries
// @Failure 503 {object} models.ErrorResponse
// @Router /ibge/series [get]
func (h *IBGEHandler) Series(c *gin.Context) {
	series, err := h.ibge.Series(c.Request.Context(), c.Query("division"))
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: %v", services.ErrIBGEUnavailable, err))
		return
	}
	c.JSON(http.StatusOK, series)
}
