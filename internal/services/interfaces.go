package services

import (
	"context"
	"io"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/aggregate"
	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/utils"
)

// AnalyticsServiceInterface defines the interface for the aggregation service
type AnalyticsServiceInterface interface {
	// Compile exposes the predicate a request compiles to, with its dropped elements
	Compile(req filter.Request) filter.Predicate

	Summary(ctx context.Context, req filter.Request) (models.Summary, error)
	Sectors(ctx context.Context, req filter.Request, topN int) ([]models.SectorCount, error)
	States(ctx context.Context, req filter.Request) ([]models.StateCount, error)
	Municipalities(ctx context.Context, req filter.Request, topN int) ([]models.MunicipalityCount, error)
	OpeningTrend(ctx context.Context, req filter.Request) ([]models.TrendPoint, error)
	ClosingTrend(ctx context.Context, req filter.Request) ([]models.TrendPoint, error)
	Maturity(ctx context.Context, req filter.Request) ([]models.MaturityBand, error)
	LegalNatures(ctx context.Context, req filter.Request) ([]models.LegalNatureGroup, error)
	Listing(ctx context.Context, req filter.Request, limit int) (models.Listing, error)
	BranchSplit(ctx context.Context, req filter.Request) (models.BranchSplit, error)
	Dashboard(ctx context.Context, req filter.Request, opts aggregate.DashboardOptions) (models.Dashboard, error)

	// Correlation relates openings to the IBGE series of the request's sector
	Correlation(ctx context.Context, req filter.Request) (models.Correlation, error)

	// CyclePhase classifies the request's sector cycle
	CyclePhase(ctx context.Context, req filter.Request) (models.CyclePhase, error)

	Stats() aggregate.Stats
	Health(ctx context.Context) error
}

// CacheServiceInterface defines the interface for cache service
type CacheServiceInterface interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value in cache; ttl <= 0 uses the default TTL
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear clears all cache entries
	Clear(ctx context.Context) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// GetJSON decodes a cached JSON value into dst
	GetJSON(ctx context.Context, key string, dst any) bool

	// SetJSON caches value as JSON
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration)

	// HitStats returns cumulative hit and miss counts
	HitStats() (hits, misses int64)

	// GetStats returns cache statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Health returns cache service health status
	Health() map[string]interface{}
}

// ReferenceServiceInterface defines the interface for lookup tables
type ReferenceServiceInterface interface {
	LegalNatures(ctx context.Context) ([]models.ReferenceItem, error)

	// Classifications lists CNAE classifications; scopedOnly keeps industrial ones
	Classifications(ctx context.Context, scopedOnly bool) ([]models.ReferenceItem, error)

	Municipalities(ctx context.Context) ([]models.ReferenceItem, error)
	Divisions() []utils.Division
	States() []utils.State
}

// IBGEServiceInterface defines the interface for the IBGE series client
type IBGEServiceInterface interface {
	// Series returns the industrial production series for a CNAE division;
	// an empty division selects general industry.
	Series(ctx context.Context, division string) (models.IndexSeries, error)
}

// ExportServiceInterface defines the interface for spreadsheet exports
type ExportServiceInterface interface {
	WriteListing(w io.Writer, listing models.Listing) error
}
