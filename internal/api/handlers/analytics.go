package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/cnpj-analytics/internal/aggregate"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/services"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalyticsHandler serves the filtered aggregation endpoints
type AnalyticsHandler struct {
	analytics services.AnalyticsServiceInterface
	export    services.ExportServiceInterface
	logger    *logrus.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics services.AnalyticsServiceInterface, export services.ExportServiceInterface, logger *logrus.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		export:    export,
		logger:    logger,
	}
}

// serve binds the request, runs query and wraps its result in the envelope
func serve[T any](h *AnalyticsHandler, c *gin.Context, query func(ctx context.Context, req models.AnalyticsRequest) (T, error)) {
	req, ok := bindRequest(c, h.logger)
	if !ok {
		return
	}

	start := time.Now()
	data, err := query(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	p := h.analytics.Compile(req.Request)
	c.JSON(http.StatusOK, models.AnalyticsResponse{
		Data:       data,
		Dropped:    droppedElements(p),
		Scoped:     p.Scoped,
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now(),
	})
}

// Summary handles the headline count request
// @Summary Count and average capital
// @Description Exact count of matching establishments and the average share capital of their companies
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=models.Summary}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/summary [post]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) (models.Summary, error) {
		return h.analytics.Summary(ctx, req.Request)
	})
}

// Sectors handles the CNAE division distribution request
// @Summary Sector distribution
// @Description Establishment counts per CNAE division with industrial typology
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=[]models.SectorCount}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/sectors [post]
func (h *AnalyticsHandler) Sectors(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) ([]models.SectorCount, error) {
		return h.analytics.Sectors(ctx, req.Request, req.TopN)
	})
}

// States handles the geographic distribution request
// @Summary Geographic distribution
// @Description Establishment counts per federative unit
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=[]models.StateCount}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/states [post]
func (h *AnalyticsHandler) States(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) ([]models.StateCount, error) {
		return h.analytics.States(ctx, req.Request)
	})
}

// Municipalities handles the locality distribution request
// @Summary Locality distribution
// @Description Top municipalities by establishment count
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=[]models.MunicipalityCount}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/municipalities [post]
func (h *AnalyticsHandler) Municipalities(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) ([]models.MunicipalityCount, error) {
		return h.analytics.Municipalities(ctx, req.Request, req.TopN)
	})
}

// OpeningTrend handles the monthly openings request
// @Summary Opening trend
// @Description Monthly activity-start counts with sample company names
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=[]models.TrendPoint}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/trends/opening [post]
func (h *AnalyticsHandler) OpeningTrend(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) ([]models.TrendPoint, error) {
		return h.analytics.OpeningTrend(ctx, req.Request)
	})
}

// ClosingTrend handles the monthly closings request
// @Summary Closing trend
// @Description Monthly counts of closed establishments by status date
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=[]models.TrendPoint}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/trends/closing [post]
func (h *AnalyticsHandler) ClosingTrend(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) ([]models.TrendPoint, error) {
		return h.analytics.ClosingTrend(ctx, req.Request)
	})
}

// Maturity handles the company age profile request
// @Summary Maturity profile
// @Description Establishment counts per age band
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=[]models.MaturityBand}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/maturity [post]
func (h *AnalyticsHandler) Maturity(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) ([]models.MaturityBand, error) {
		return h.analytics.Maturity(ctx, req.Request)
	})
}

// LegalNatures handles the legal form profile request
// @Summary Legal nature profile
// @Description Establishment counts per legal form group
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=[]models.LegalNatureGroup}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/legal-nature [post]
func (h *AnalyticsHandler) LegalNatures(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) ([]models.LegalNatureGroup, error) {
		return h.analytics.LegalNatures(ctx, req.Request)
	})
}

// BranchSplit handles the headquarters versus branches comparison
// @Summary Branch split
// @Description Counts for all establishments, headquarters only and branches only
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=models.BranchSplit}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/branch-split [post]
func (h *AnalyticsHandler) BranchSplit(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) (models.BranchSplit, error) {
		return h.analytics.BranchSplit(ctx, req.Request)
	})
}

// Dashboard handles the full dashboard render
// @Summary Dashboard
// @Description Every panel for one filter, computed concurrently. Failed panels are listed in failures.
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=models.Dashboard}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/dashboard [post]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) (models.Dashboard, error) {
		return h.analytics.Dashboard(ctx, req.Request, aggregate.DashboardOptions{
			ListingLimit: req.Limit,
			TopN:         req.TopN,
		})
	})
}

// Correlation handles the openings versus industrial production request
// @Summary Openings and production correlation
// @Description Pearson correlation between monthly openings and the IBGE industrial production index
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=models.Correlation}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/correlation [post]
func (h *AnalyticsHandler) Correlation(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) (models.Correlation, error) {
		return h.analytics.Correlation(ctx, req.Request)
	})
}

// CyclePhase handles the sector cycle classification request
// @Summary Cycle phase
// @Description Classifies the sector cycle from the production trend and net openings
// @Tags Analytics
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=models.CyclePhase}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /analytics/cycle [post]
func (h *AnalyticsHandler) CyclePhase(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) (models.CyclePhase, error) {
		return h.analytics.CyclePhase(ctx, req.Request)
	})
}

// Companies handles the filtered listing request
// @Summary Filtered listing
// @Description Row-level listing of matching establishments, capped by limit
// @Tags Companies
// @Accept json
// @Produce json
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {object} models.AnalyticsResponse{data=models.Listing}
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /companies [post]
func (h *AnalyticsHandler) Companies(c *gin.Context) {
	serve(h, c, func(ctx context.Context, req models.AnalyticsRequest) (models.Listing, error) {
		return h.analytics.Listing(ctx, req.Request, req.Limit)
	})
}

// Export handles the spreadsheet export of the filtered listing
// @Summary Export listing
// @Description XLSX workbook of the filtered listing
// @Tags Companies
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param request body models.AnalyticsRequest false "Filter"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /companies/export [post]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	req, ok := bindRequest(c, h.logger)
	if !ok {
		return
	}

	listing, err := h.analytics.Listing(c.Request.Context(), req.Request, req.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("empresas_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if err := h.export.WriteListing(c.Writer, listing); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"error":      err.Error(),
		}).Error("Failed to write export")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"rows":       listing.Returned,
	}).Info("Listing exported")
}
