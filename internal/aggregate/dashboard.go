package aggregate

import (
	"context"
	"sync"

	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Dashboard panel names, as reported in Dashboard.Failures
const (
	PanelSummary             = "summary"
	PanelHeadquartersSummary = "headquarters_summary"
	PanelSectors             = "sectors"
	PanelStates              = "states"
	PanelMunicipalities      = "municipalities"
	PanelOpeningTrend        = "opening_trend"
	PanelClosingTrend        = "closing_trend"
	PanelMaturity            = "maturity"
	PanelLegalNatures        = "legal_natures"
	PanelListing             = "listing"
)

// DashboardOptions size the windowed panels
type DashboardOptions struct {
	ListingLimit int
	TopN         int
}

// Dashboard renders every panel for one request concurrently. A failed panel
// is left nil and named in Failures; the others still render. The call only
// fails as a whole when the request is out of scope, the context is done, or
// every panel failed.
func (e *Engine) Dashboard(ctx context.Context, req filter.Request, opts DashboardOptions) (models.Dashboard, error) {
	p, err := e.compile(req)
	if err != nil {
		return models.Dashboard{}, err
	}

	d := models.Dashboard{
		Scoped:      p.Scoped,
		GeneratedAt: e.now(),
	}

	var (
		mu       sync.Mutex
		failures = map[string]string{}
	)
	panel := func(name string, fn func() error) func() error {
		return func() error {
			if err := fn(); err != nil {
				mu.Lock()
				failures[name] = err.Error()
				mu.Unlock()
			}
			// a failed panel never cancels its siblings
			return nil
		}
	}

	var g errgroup.Group
	g.SetLimit(e.opts.MaxConcurrency)

	g.Go(panel(PanelSummary, func() error {
		s, err := e.summary(ctx, p)
		if err == nil {
			d.Summary = &s
		}
		return err
	}))
	g.Go(panel(PanelHeadquartersSummary, func() error {
		s, err := e.Summary(ctx, req.WithBranchMode(filter.BranchHeadquartersOnly))
		if err == nil {
			d.HeadquartersSummary = &s
		}
		return err
	}))
	g.Go(panel(PanelSectors, func() error {
		v, err := e.Sectors(ctx, req, 0)
		if err == nil {
			d.Sectors = v
		}
		return err
	}))
	g.Go(panel(PanelStates, func() error {
		v, err := e.States(ctx, req)
		if err == nil {
			d.States = v
		}
		return err
	}))
	g.Go(panel(PanelMunicipalities, func() error {
		v, err := e.Municipalities(ctx, req, opts.TopN)
		if err == nil {
			d.Municipalities = v
		}
		return err
	}))
	g.Go(panel(PanelOpeningTrend, func() error {
		v, err := e.OpeningTrend(ctx, req)
		if err == nil {
			d.OpeningTrend = v
		}
		return err
	}))
	g.Go(panel(PanelClosingTrend, func() error {
		v, err := e.ClosingTrend(ctx, req)
		if err == nil {
			d.ClosingTrend = v
		}
		return err
	}))
	g.Go(panel(PanelMaturity, func() error {
		v, err := e.Maturity(ctx, req)
		if err == nil {
			d.Maturity = v
		}
		return err
	}))
	g.Go(panel(PanelLegalNatures, func() error {
		v, err := e.LegalNatures(ctx, req)
		if err == nil {
			d.LegalNatures = v
		}
		return err
	}))
	g.Go(panel(PanelListing, func() error {
		v, err := e.Listing(ctx, req, opts.ListingLimit)
		if err == nil {
			d.Listing = &v
		}
		return err
	}))

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return models.Dashboard{}, err
	}

	if len(failures) > 0 {
		d.Failures = failures
		e.logger.WithFields(logrus.Fields{
			"predicate": p.Key(),
			"failed":    len(failures),
		}).Warn("Dashboard rendered with failed panels")
	}
	if len(failures) == dashboardPanels {
		return d, &QueryError{Shape: "dashboard", cause: ErrGatewayUnavailable}
	}
	return d, nil
}

const dashboardPanels = 10
