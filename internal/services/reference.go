package services

import (
	"context"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/utils"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
	"github.com/sirupsen/logrus"
)

// ReferenceService serves lookup tables read through the cache
type ReferenceService struct {
	gateway warehouse.Gateway
	cache   CacheServiceInterface
	policy  filter.ScopePolicy
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewReferenceService creates a new reference service
func NewReferenceService(gateway warehouse.Gateway, cache CacheServiceInterface, policy filter.ScopePolicy, ttl time.Duration, logger *logrus.Logger) *ReferenceService {
	return &ReferenceService{
		gateway: gateway,
		cache:   cache,
		policy:  policy,
		ttl:     ttl,
		logger:  logger,
	}
}

// LegalNatures lists legal-nature codes
func (s *ReferenceService) LegalNatures(ctx context.Context) ([]models.ReferenceItem, error) {
	return s.table(ctx, "naturezas")
}

// Classifications lists CNAE classifications
func (s *ReferenceService) Classifications(ctx context.Context, scopedOnly bool) ([]models.ReferenceItem, error) {
	items, err := s.table(ctx, "cnaes")
	if err != nil || !scopedOnly || !s.policy.Enabled() {
		return items, err
	}

	scoped := make([]models.ReferenceItem, 0, len(items))
	for _, item := range items {
		if s.policy.InScope(item.Code) {
			scoped = append(scoped, item)
		}
	}
	return scoped, nil
}

// Municipalities lists municipality codes
func (s *ReferenceService) Municipalities(ctx context.Context) ([]models.ReferenceItem, error) {
	return s.table(ctx, "municipios")
}

// Divisions returns the industrial CNAE divisions
func (s *ReferenceService) Divisions() []utils.Division {
	return utils.IndustrialDivisions()
}

// States returns the federative units
func (s *ReferenceService) States() []utils.State {
	return utils.States()
}

func (s *ReferenceService) table(ctx context.Context, table string) ([]models.ReferenceItem, error) {
	key := "reference:" + table

	var items []models.ReferenceItem
	if s.cache.GetJSON(ctx, key, &items) {
		return items, nil
	}

	rows, err := s.gateway.Execute(ctx, warehouse.Statement{
		Shape: "reference_" + table,
		SQL:   "SELECT codigo, descricao FROM " + table + " ORDER BY descricao, codigo",
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"table": table,
			"error": err.Error(),
		}).Error("Failed to load reference table")
		return []models.ReferenceItem{}, err
	}

	items = make([]models.ReferenceItem, 0, len(rows))
	for _, row := range rows {
		code := row.String("codigo")
		if code == "" {
			continue
		}
		items = append(items, models.ReferenceItem{Code: code, Description: row.String("descricao")})
	}

	s.cache.SetJSON(ctx, key, items, s.ttl)
	return items, nil
}
