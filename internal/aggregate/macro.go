package aggregate

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"golang.org/x/sync/errgroup"
)

// IBGE variable identifiers of table 8888
const (
	VarIndexFixedBase    = "12606"
	VarIndexSeasonal     = "12607"
	VarMonthlyChange     = "11601"
	VarMonthlyChangeYoY  = "11602"
	VarYearToDate        = "11603"
	VarTrailingTwelveMos = "11604"
)

// minCommonMonths is the smallest overlap a coefficient is computed on
const minCommonMonths = 7

const (
	LabelStrongPositive = "Forte Correlação Positiva"
	LabelStrongNegative = "Forte Correlação Negativa"
	LabelNoCorrelation  = "Sem Correlação Clara"
	LabelModerate       = "Correlação Moderada"
	LabelInsufficient   = "Dados Insuficientes"
)

// Cycle phases
const (
	PhaseExpansion    = "expansion"
	PhaseCapacity     = "capacity_use"
	PhaseAnticipation = "anticipation"
	PhaseContraction  = "contraction"
	PhaseUnknown      = "unknown"
)

var phaseLabels = map[string]string{
	PhaseExpansion:    "Expansão",
	PhaseCapacity:     "Uso de Capacidade",
	PhaseAnticipation: "Antecipação",
	PhaseContraction:  "Contração",
	PhaseUnknown:      "Indeterminado",
}

// Correlation relates monthly openings under req to the production index
func (e *Engine) Correlation(ctx context.Context, req filter.Request, series models.IndexSeries) (models.Correlation, error) {
	openings, err := e.OpeningTrend(ctx, req)
	if err != nil {
		return models.Correlation{Label: LabelInsufficient}, err
	}
	return Correlate(openings, series.Samples), nil
}

// CyclePhase classifies the sector cycle under req
func (e *Engine) CyclePhase(ctx context.Context, req filter.Request, series models.IndexSeries) (models.CyclePhase, error) {
	var openings, closings []models.TrendPoint

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		openings, err = e.OpeningTrend(gctx, req)
		return err
	})
	g.Go(func() error {
		var err error
		closings, err = e.ClosingTrend(gctx, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.CyclePhase{Phase: PhaseUnknown, Label: phaseLabels[PhaseUnknown], ReferenceMonths: []string{}}, err
	}

	return ClassifyCycle(openings, closings, series.Samples, e.now()), nil
}

// Correlate computes the Pearson coefficient between monthly openings and
// the monthly mean of the index variables across all locations.
func Correlate(openings []models.TrendPoint, samples []models.IndexSample) models.Correlation {
	index := monthlyMean(samples, VarIndexFixedBase, VarIndexSeasonal)

	var xs, ys []float64
	for _, p := range openings {
		if v, ok := index[p.Month]; ok {
			xs = append(xs, float64(p.Count))
			ys = append(ys, v)
		}
	}

	out := models.Correlation{CommonMonths: len(xs), Label: LabelInsufficient}
	if len(xs) < minCommonMonths {
		return out
	}
	r, ok := pearson(xs, ys)
	if !ok {
		return out
	}
	out.Coefficient = &r
	out.Sufficient = true
	out.Label = correlationLabel(r)
	return out
}

func correlationLabel(r float64) string {
	switch {
	case r > 0.7:
		return LabelStrongPositive
	case r < -0.7:
		return LabelStrongNegative
	case math.Abs(r) < 0.3:
		return LabelNoCorrelation
	default:
		return LabelModerate
	}
}

func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/n, sy/n

	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}
	return cov / math.Sqrt(vx*vy), true
}

// monthlyMean averages the non-missing values of the given variables per month
func monthlyMean(samples []models.IndexSample, variables ...string) map[string]float64 {
	wanted := make(map[string]bool, len(variables))
	for _, v := range variables {
		wanted[v] = true
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, s := range samples {
		if s.Value == nil || !wanted[s.VariableID] {
			continue
		}
		sums[s.Month] += *s.Value
		counts[s.Month]++
	}

	out := make(map[string]float64, len(sums))
	for month, sum := range sums {
		out[month] = sum / float64(counts[month])
	}
	return out
}

// latestMean returns the mean of variable at its most recent month
func latestMean(samples []models.IndexSample, variable string) (float64, bool) {
	means := monthlyMean(samples, variable)
	if len(means) == 0 {
		return 0, false
	}
	months := make([]string, 0, len(means))
	for m := range means {
		months = append(months, m)
	}
	sort.Strings(months)
	return means[months[len(months)-1]], true
}

// ClassifyCycle crosses the latest production trend with net openings over
// the trailing twelve months ending at now.
//
// The trend is the trailing 12-month accumulated change, falling back to the
// monthly change when IBGE did not publish the former.
func ClassifyCycle(openings, closings []models.TrendPoint, samples []models.IndexSample, now time.Time) models.CyclePhase {
	months := trailingMonths(now, 12)
	window := make(map[string]bool, len(months))
	for _, m := range months {
		window[m] = true
	}

	out := models.CyclePhase{ReferenceMonths: months}
	for _, p := range openings {
		if window[p.Month] {
			out.Openings += p.Count
		}
	}
	for _, p := range closings {
		if window[p.Month] {
			out.Closings += p.Count
		}
	}
	out.NetOpenings = out.Openings - out.Closings

	trend, ok := latestMean(samples, VarTrailingTwelveMos)
	if !ok {
		trend, ok = latestMean(samples, VarMonthlyChange)
	}
	if !ok {
		out.Phase = PhaseUnknown
		out.Label = phaseLabels[PhaseUnknown]
		return out
	}
	out.IndexTrend = &trend

	switch {
	case trend > 0 && out.NetOpenings > 0:
		out.Phase = PhaseExpansion
	case trend > 0:
		out.Phase = PhaseCapacity
	case out.NetOpenings > 0:
		out.Phase = PhaseAnticipation
	default:
		out.Phase = PhaseContraction
	}
	out.Label = phaseLabels[out.Phase]
	return out
}

// trailingMonths lists n YYYY-MM months ending at now's month, oldest first
func trailingMonths(now time.Time, n int) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = first.AddDate(0, -i, 0).Format("2006-01")
	}
	return out
}
