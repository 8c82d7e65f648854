package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexconsult/cnpj-analytics/internal/aggregate"
	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrIBGEUnavailable is returned when the macro series cannot be fetched
var ErrIBGEUnavailable = errors.New("ibge series unavailable")

// AnalyticsService exposes the aggregation engine and joins it with the
// IBGE series for the macro views.
type AnalyticsService struct {
	*aggregate.Engine
	ibge   IBGEServiceInterface
	logger *logrus.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(engine *aggregate.Engine, ibge IBGEServiceInterface, logger *logrus.Logger) *AnalyticsService {
	return &AnalyticsService{
		Engine: engine,
		ibge:   ibge,
		logger: logger,
	}
}

// Correlation relates monthly openings to the sector's production index
func (s *AnalyticsService) Correlation(ctx context.Context, req filter.Request) (models.Correlation, error) {
	series, err := s.series(ctx, req)
	if err != nil {
		return models.Correlation{Label: aggregate.LabelInsufficient}, err
	}
	return s.Engine.Correlation(ctx, req, series)
}

// CyclePhase classifies the sector cycle for the request
func (s *AnalyticsService) CyclePhase(ctx context.Context, req filter.Request) (models.CyclePhase, error) {
	series, err := s.series(ctx, req)
	if err != nil {
		return models.CyclePhase{Phase: aggregate.PhaseUnknown, ReferenceMonths: []string{}}, err
	}
	return s.Engine.CyclePhase(ctx, req, series)
}

func (s *AnalyticsService) series(ctx context.Context, req filter.Request) (models.IndexSeries, error) {
	division := SeriesDivision(req)
	series, err := s.ibge.Series(ctx, division)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"division": division,
			"error":    err.Error(),
		}).Error("Failed to load IBGE series")
		return models.IndexSeries{}, fmt.Errorf("%w: %v", ErrIBGEUnavailable, err)
	}
	return series, nil
}

// SeriesDivision picks the IBGE series for a request: the sector when exactly
// one division is selected, general industry otherwise.
func SeriesDivision(req filter.Request) string {
	if len(req.SectorDivisionCodes) == 1 {
		return req.SectorDivisionCodes[0]
	}
	return ""
}
