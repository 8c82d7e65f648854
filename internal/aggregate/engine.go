package aggregate

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Options tune result windows and concurrency
type Options struct {
	DefaultListingLimit int
	MaxListingLimit     int
	TrendSampleSize     int
	LocalityTopN        int
	MaxConcurrency      int
}

// DefaultOptions mirror the configuration defaults
func DefaultOptions() Options {
	return Options{
		DefaultListingLimit: 1000,
		MaxListingLimit:     10000,
		TrendSampleSize:     5,
		LocalityTopN:        10,
		MaxConcurrency:      8,
	}
}

// Stats are cumulative engine counters
type Stats struct {
	FailedQueries int64 `json:"failed_queries"`
	SkippedRows   int64 `json:"skipped_rows"`
}

// Engine answers every query shape for a filter request. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	gateway  warehouse.Gateway
	compiler *filter.Compiler
	queries  *QuerySet
	logger   *logrus.Logger
	opts     Options
	now      func() time.Time

	failed  atomic.Int64
	skipped atomic.Int64
}

// NewEngine creates an engine over gateway
func NewEngine(gateway warehouse.Gateway, compiler *filter.Compiler, opts Options, logger *logrus.Logger) *Engine {
	defaults := DefaultOptions()
	if opts.DefaultListingLimit <= 0 {
		opts.DefaultListingLimit = defaults.DefaultListingLimit
	}
	if opts.MaxListingLimit < opts.DefaultListingLimit {
		opts.MaxListingLimit = opts.DefaultListingLimit
	}
	if opts.LocalityTopN <= 0 {
		opts.LocalityTopN = defaults.LocalityTopN
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaults.MaxConcurrency
	}
	if opts.TrendSampleSize < 0 {
		opts.TrendSampleSize = 0
	}

	return &Engine{
		gateway:  gateway,
		compiler: compiler,
		queries:  NewQuerySet(gateway.Dialect()),
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for age bands and trailing windows
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Compile exposes the predicate a request compiles to
func (e *Engine) Compile(req filter.Request) filter.Predicate {
	return e.compiler.Compile(req)
}

// Stats returns cumulative counters
func (e *Engine) Stats() Stats {
	return Stats{
		FailedQueries: e.failed.Load(),
		SkippedRows:   e.skipped.Load(),
	}
}

// Health pings the warehouse
func (e *Engine) Health(ctx context.Context) error {
	return e.gateway.Ping(ctx)
}

func (e *Engine) compile(req filter.Request) (filter.Predicate, error) {
	p := e.compiler.Compile(req)
	if len(p.Dropped) > 0 {
		e.logger.WithFields(logrus.Fields{
			"dropped":   p.Dropped,
			"predicate": p.Key(),
		}).Debug("Filter elements dropped")
	}
	if err := p.CheckScope(e.compiler.Policy()); err != nil {
		e.logger.WithField("predicate", p.Key()).Error("Refusing predicate without scope clause")
		return p, err
	}
	return p, nil
}

func (e *Engine) execute(ctx context.Context, stmt warehouse.Statement) ([]warehouse.Row, error) {
	rows, err := e.gateway.Execute(ctx, stmt)
	if err != nil {
		e.failed.Add(1)
		e.logger.WithFields(logrus.Fields{
			"shape": stmt.Shape,
			"mode":  stmt.Mode,
			"error": err.Error(),
		}).Error("Aggregation query failed")
		return nil, &QueryError{Shape: stmt.Shape, cause: err}
	}
	return rows, nil
}

func (e *Engine) skip(shape string, row warehouse.Row) {
	e.skipped.Add(1)
	e.logger.WithFields(logrus.Fields{
		"shape": shape,
		"row":   row,
	}).Warn("Skipping malformed row")
}

// Summary returns the exact count and average capital
func (e *Engine) Summary(ctx context.Context, req filter.Request) (models.Summary, error) {
	p, err := e.compile(req)
	if err != nil {
		return models.Summary{}, err
	}
	return e.summary(ctx, p)
}

func (e *Engine) summary(ctx context.Context, p filter.Predicate) (models.Summary, error) {
	rows, err := e.execute(ctx, e.queries.Summary(p))
	if err != nil {
		return models.Summary{}, err
	}
	return e.materializeSummary(rows), nil
}

// Sectors returns the division distribution; topN <= 0 returns every bucket
func (e *Engine) Sectors(ctx context.Context, req filter.Request, topN int) ([]models.SectorCount, error) {
	p, err := e.compile(req)
	if err != nil {
		return []models.SectorCount{}, err
	}
	rows, err := e.execute(ctx, e.queries.Sectors(p))
	if err != nil {
		return []models.SectorCount{}, err
	}
	return top(e.materializeSectors(rows), topN), nil
}

// States returns the distribution by federative unit
func (e *Engine) States(ctx context.Context, req filter.Request) ([]models.StateCount, error) {
	p, err := e.compile(req)
	if err != nil {
		return []models.StateCount{}, err
	}
	rows, err := e.execute(ctx, e.queries.States(p))
	if err != nil {
		return []models.StateCount{}, err
	}
	return e.materializeStates(rows), nil
}

// Municipalities returns the largest municipalities; topN <= 0 uses the
// configured default.
func (e *Engine) Municipalities(ctx context.Context, req filter.Request, topN int) ([]models.MunicipalityCount, error) {
	p, err := e.compile(req)
	if err != nil {
		return []models.MunicipalityCount{}, err
	}
	rows, err := e.execute(ctx, e.queries.Municipalities(p))
	if err != nil {
		return []models.MunicipalityCount{}, err
	}
	if topN <= 0 {
		topN = e.opts.LocalityTopN
	}
	return top(e.materializeMunicipalities(rows), topN), nil
}

// OpeningTrend returns openings per month with sample names
func (e *Engine) OpeningTrend(ctx context.Context, req filter.Request) ([]models.TrendPoint, error) {
	p, err := e.compile(req)
	if err != nil {
		return []models.TrendPoint{}, err
	}
	return e.trend(ctx, e.queries.OpeningTrend(p), e.queries.OpeningSamples(p, e.opts.TrendSampleSize))
}

// ClosingTrend returns closures per month with sample names
func (e *Engine) ClosingTrend(ctx context.Context, req filter.Request) ([]models.TrendPoint, error) {
	p, err := e.compile(req)
	if err != nil {
		return []models.TrendPoint{}, err
	}
	return e.trend(ctx, e.queries.ClosingTrend(p), e.queries.ClosingSamples(p, e.opts.TrendSampleSize))
}

func (e *Engine) trend(ctx context.Context, counts, samples warehouse.Statement) ([]models.TrendPoint, error) {
	rows, err := e.execute(ctx, counts)
	if err != nil {
		return []models.TrendPoint{}, err
	}
	points := e.materializeTrend(counts.Shape, rows)

	if e.opts.TrendSampleSize == 0 || len(points) == 0 {
		return points, nil
	}

	sampleRows, err := e.execute(ctx, samples)
	if err != nil {
		// names are a tooltip affordance; counts stand on their own
		e.logger.WithField("shape", samples.Shape).Warn("Trend samples unavailable")
		return points, nil
	}
	attachSamples(points, sampleRows, e.opts.TrendSampleSize)
	return points, nil
}

// Maturity returns the four age bands in order
func (e *Engine) Maturity(ctx context.Context, req filter.Request) ([]models.MaturityBand, error) {
	p, err := e.compile(req)
	if err != nil {
		return emptyMaturity(), err
	}
	rows, err := e.execute(ctx, e.queries.Maturity(p, e.now()))
	if err != nil {
		return emptyMaturity(), err
	}
	return e.materializeMaturity(rows), nil
}

// LegalNatures returns the legal-form profile in taxonomy order
func (e *Engine) LegalNatures(ctx context.Context, req filter.Request) ([]models.LegalNatureGroup, error) {
	p, err := e.compile(req)
	if err != nil {
		return emptyLegalNatures(), err
	}
	rows, err := e.execute(ctx, e.queries.LegalNature(p))
	if err != nil {
		return emptyLegalNatures(), err
	}
	return e.materializeLegalNatures(rows), nil
}

// Listing returns the windowed establishment listing
func (e *Engine) Listing(ctx context.Context, req filter.Request, limit int) (models.Listing, error) {
	limit = e.listingLimit(limit)
	empty := models.Listing{Companies: []models.Company{}, Limit: limit}

	p, err := e.compile(req)
	if err != nil {
		return empty, err
	}
	rows, err := e.execute(ctx, e.queries.Listing(p, limit))
	if err != nil {
		return empty, err
	}
	return e.materializeListing(rows, limit), nil
}

func (e *Engine) listingLimit(limit int) int {
	if limit <= 0 {
		return e.opts.DefaultListingLimit
	}
	if limit > e.opts.MaxListingLimit {
		return e.opts.MaxListingLimit
	}
	return limit
}

// BranchSplit counts the same filter under each branch mode
func (e *Engine) BranchSplit(ctx context.Context, req filter.Request) (models.BranchSplit, error) {
	var split models.BranchSplit
	modes := []struct {
		mode filter.BranchMode
		dst  *int64
	}{
		{filter.BranchAll, &split.All},
		{filter.BranchHeadquartersOnly, &split.Headquarters},
		{filter.BranchBranchesOnly, &split.Branches},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range modes {
		g.Go(func() error {
			s, err := e.Summary(gctx, req.WithBranchMode(m.mode))
			if err != nil {
				return err
			}
			*m.dst = s.Count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.BranchSplit{}, err
	}
	return split, nil
}

func top[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
