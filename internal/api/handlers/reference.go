package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/cnpj-analytics/internal/services"
	"github.com/sirupsen/logrus"
)

// ReferenceHandler serves lookup tables for filter forms
type ReferenceHandler struct {
	reference services.ReferenceServiceInterface
	logger    *logrus.Logger
}

// NewReferenceHandler creates a new reference handler
func NewReferenceHandler(reference services.ReferenceServiceInterface, logger *logrus.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		reference: reference,
		logger:    logger,
	}
}

// LegalNatures lists legal nature codes
// @Summary Legal natures
// @Tags Reference
// @Produce json
// @Success 200 {array} models.ReferenceItem
// @Failure 503 {object} models.ErrorResponse
// @Router /reference/legal-natures [get]
func (h *ReferenceHandler) LegalNatures(c *gin.Context) {
	items, err := h.reference.LegalNatures(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Classifications lists CNAE classifications
// @Summary CNAE classifications
// @Description Industrial classifications only unless all=true
// @Tags Reference
// @Produce json
// @Param all query bool false "Include classifications outside the industrial scope"
// @Success 200 {array} models.ReferenceItem
// @Failure 503 {object} models.ErrorResponse
// @Router /reference/classifications [get]
func (h *ReferenceHandler) Classifications(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))

	items, err := h.reference.Classifications(c.Request.Context(), !all)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Municipalities lists municipality codes
// @Summary Municipalities
// @Tags Reference
// @Produce json
// @Success 200 {array} models.ReferenceItem
// @Failure 503 {object} models.ErrorResponse
// @Router /reference/municipalities [get]
func (h *ReferenceHandler) Municipalities(c *gin.Context) {
	items, err := h.reference.Municipalities(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Divisions lists the industrial CNAE divisions
// @Summary CNAE divisions
// @Tags Reference
// @Produce json
// @Success 200 {array} utils.Division
// @Router /reference/divisions [get]
func (h *ReferenceHandler) Divisions(c *gin.Context) {
	c.JSON(http.StatusOK, h.reference.Divisions())
}

// States lists the federative units
// @Summary States
// @Tags Reference
// @Produce json
// @Success 200 {array} utils.State
// @Router /reference/states [get]
func (h *ReferenceHandler) States(c *gin.Context) {
	c.JSON(http.StatusOK, h.reference.States())
}
