package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newEngine(gw warehouse.Gateway) *Engine {
	compiler := filter.NewCompiler(filter.IndustrialScope())
	return NewEngine(gw, compiler, DefaultOptions(), warehousetest.Logger()).
		WithClock(func() time.Time { return fixedNow })
}

// five companies; three match SP + division 10 + headquarters + active
func seedIndustry(t *testing.T) *warehousetest.Warehouse {
	w := warehousetest.New(t)
	w.AddCompanies(
		warehousetest.Company{Root: "11111111", Name: "ALFA ALIMENTOS LTDA", LegalNature: "2062", Capital: "1000,00", Size: "01"},
		warehousetest.Company{Root: "22222222", Name: "BETA BEBIDAS SA", LegalNature: "2046", Capital: "2.000,50", Size: "05"},
		warehousetest.Company{Root: "33333333", Name: "GAMA LATICINIOS", LegalNature: "2135", Capital: "3000", Size: "03"},
		warehousetest.Company{Root: "44444444", Name: "DELTA MASSAS LTDA", LegalNature: "2062", Capital: "9999,00", Size: "01"},
		warehousetest.Company{Root: "55555555", Name: "EPSILON MOINHO LTDA", LegalNature: "2062", Capital: "500,00", Size: "01"},
	)
	w.AddEstablishments(
		warehousetest.HQ("11111111", "1011201", "SP", "02", "20230510"),
		warehousetest.HQ("22222222", "1091101", "SP", "02", "20230520"),
		warehousetest.HQ("33333333", "1052000", "SP", "02", "20230601"),
		warehousetest.HQ("44444444", "1093701", "MG", "02", "20150101"),
		closedHQ("55555555", "1061901", "SP", "19990101", "20231115"),
	)
	w.AddReference("municipios", [2]string{"7107", "SAO PAULO"})
	return w
}

func closedHQ(root, cnae, state, start, closedAt string) warehousetest.Establishment {
	e := warehousetest.HQ(root, cnae, state, "08", start)
	e.StatusDate = closedAt
	return e
}

func spFoodHeadquarters() filter.Request {
	return filter.Request{
		States:              []string{"SP"},
		SectorDivisionCodes: []string{"10"},
		ActiveOnly:          true,
		BranchMode:          filter.BranchHeadquartersOnly,
	}
}

func TestSummaryCountsExactlyAndAveragesCapital(t *testing.T) {
	engine := newEngine(seedIndustry(t))

	s, err := engine.Summary(context.Background(), spFoodHeadquarters())
	require.NoError(t, err)

	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, int64(3), s.CapitalReported)
	assert.Equal(t, int64(0), s.CapitalMissing)
	require.NotNil(t, s.AverageCapital)
	assert.InDelta(t, (1000+2000.5+3000)/3.0, *s.AverageCapital, 0.001)
}

func TestDistributionsAgreeWithSummary(t *testing.T) {
	engine := newEngine(seedIndustry(t))
	ctx := context.Background()

	sectors, err := engine.Sectors(ctx, spFoodHeadquarters(), 0)
	require.NoError(t, err)
	require.Len(t, sectors, 1)
	assert.Equal(t, "10", sectors[0].Code)
	assert.Equal(t, int64(3), sectors[0].Count)
	assert.Equal(t, "Bens de Consumo Não Duráveis", sectors[0].Category)

	states, err := engine.States(ctx, spFoodHeadquarters())
	require.NoError(t, err)
	assert.Equal(t, []models.StateCount{{State: "SP", Name: "São Paulo", Count: 3}}, states)

	municipalities, err := engine.Municipalities(ctx, spFoodHeadquarters(), 0)
	require.NoError(t, err)
	assert.Equal(t, []models.MunicipalityCount{{Code: "7107", Name: "SAO PAULO", Count: 3}}, municipalities)
}

func TestSummaryWithoutCapitalHasNoAverage(t *testing.T) {
	w := warehousetest.New(t)
	w.AddCompanies(warehousetest.Company{Root: "12345678", Name: "SEM CAPITAL", Capital: "n/a"})
	w.AddEstablishments(warehousetest.HQ("12345678", "2511000", "RJ", "02", "20200101"))

	s, err := newEngine(w).Summary(context.Background(), filter.Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Count)
	assert.Nil(t, s.AverageCapital)
	assert.Equal(t, int64(1), s.CapitalMissing)
}

func TestScopeExcludesNonIndustrialRows(t *testing.T) {
	w := seedIndustry(t)
	w.AddCompanies(
		warehousetest.Company{Root: "66666666", Name: "MERCADO VAREJO", Capital: "100,00"},
		warehousetest.Company{Root: "77777777", Name: "SEM CNAE", Capital: "100,00"},
	)
	w.AddEstablishments(
		warehousetest.HQ("66666666", "4711302", "SP", "02", "20200101"),
		warehousetest.HQ("77777777", "", "SP", "02", "20200101"),
	)
	engine := newEngine(w)
	ctx := context.Background()

	s, err := engine.Summary(ctx, filter.Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.Count)

	// an explicit out-of-scope division cannot widen the scope
	s, err = engine.Summary(ctx, filter.Request{SectorDivisionCodes: []string{"47"}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Count)

	sectors, err := engine.Sectors(ctx, filter.Request{}, 0)
	require.NoError(t, err)
	for _, sector := range sectors {
		assert.Equal(t, "10", sector.Code)
	}
}

func TestRootSearchSuspendsScope(t *testing.T) {
	w := warehousetest.New(t)
	w.AddCompanies(warehousetest.Company{Root: "33000167", Name: "PETROLEO BRASILEIRO S A PETROBRAS", LegalNature: "2038", Capital: "205.431.960.490,52"})
	w.AddEstablishments(warehousetest.HQ("33000167", "4731800", "RJ", "02", "19661112"))
	engine := newEngine(w)
	ctx := context.Background()

	s, err := engine.Summary(ctx, filter.Request{SearchTerm: "33.000.167/0001-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Count)

	s, err = engine.Summary(ctx, filter.Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Count)

	byName, err := engine.Listing(ctx, filter.Request{SearchTerm: "petrobras"}, 10)
	require.NoError(t, err)
	require.Len(t, byName.Companies, 1)
	c := byName.Companies[0]
	assert.Equal(t, "33.000.167/0001-00", c.CNPJ)
	assert.Equal(t, "47", c.Division)
	assert.Equal(t, "12/11/1966", c.StartDate)
	require.NotNil(t, c.Capital)
	assert.InDelta(t, 205431960490.52, *c.Capital, 0.01)
}

func TestNameSearchGroupsUnidentifiedDivision(t *testing.T) {
	w := warehousetest.New(t)
	w.AddCompanies(warehousetest.Company{Root: "12121212", Name: "ORFA DE CNAE LTDA", Capital: "10,00"})
	w.AddEstablishments(warehousetest.HQ("12121212", "", "BA", "02", "20200101"))

	sectors, err := newEngine(w).Sectors(context.Background(), filter.Request{SearchTerm: "orfa"}, 0)
	require.NoError(t, err)
	require.Len(t, sectors, 1)
	assert.Equal(t, "", sectors[0].Code)
	assert.Equal(t, "Não Identificado", sectors[0].Label)
}

func TestBranchModesPartitionThePopulation(t *testing.T) {
	w := seedIndustry(t)
	blankFlag := warehousetest.Branch("11111111", "0003", "1011201", "SP", "02", "20230510")
	blankFlag.Flag = ""
	w.AddEstablishments(
		warehousetest.Branch("11111111", "0002", "1011201", "RJ", "02", "20230510"),
		blankFlag,
	)
	engine := newEngine(w)

	for _, req := range []filter.Request{{}, {ActiveOnly: true}, {States: []string{"SP"}}} {
		split, err := engine.BranchSplit(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, split.All, split.Headquarters+split.Branches)
	}

	split, err := engine.BranchSplit(context.Background(), filter.Request{})
	require.NoError(t, err)
	assert.Equal(t, models.BranchSplit{All: 7, Headquarters: 5, Branches: 2}, split)
}

func TestListingWindowDoesNotAffectAggregates(t *testing.T) {
	engine := newEngine(seedIndustry(t))
	ctx := context.Background()

	full, err := engine.Listing(ctx, filter.Request{}, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions().DefaultListingLimit, full.Limit)
	require.Len(t, full.Companies, 5)
	assert.Equal(t, "DELTA MASSAS LTDA", full.Companies[0].Name)
	assert.Equal(t, "EPSILON MOINHO LTDA", full.Companies[4].Name)

	windowed, err := engine.Listing(ctx, filter.Request{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, windowed.Returned)
	assert.Equal(t, full.Companies[:2], windowed.Companies)

	s, err := engine.Summary(ctx, filter.Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.Count)

	capped, err := engine.Listing(ctx, filter.Request{}, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions().MaxListingLimit, capped.Limit)
}

func TestListingSkipsRowsWithoutValidRoot(t *testing.T) {
	w := seedIndustry(t)
	w.AddCompanies(warehousetest.Company{Root: "123", Name: "RAIZ CURTA", Capital: "1,00"})
	w.AddEstablishments(warehousetest.HQ("123", "1011201", "SP", "02", "20200101"))
	engine := newEngine(w)

	listing, err := engine.Listing(context.Background(), filter.Request{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, listing.Returned)
	assert.Equal(t, 1, listing.Skipped)
	assert.Equal(t, int64(1), engine.Stats().SkippedRows)
}

func TestMaturityBandBoundaries(t *testing.T) {
	w := warehousetest.New(t)
	starts := map[string]string{
		"10000001": "20210616", // lt3
		"10000002": "20210615", // exactly 3 years
		"10000003": "20140616", // 3to9
		"10000004": "20140615", // exactly 10 years
		"10000005": "20030616", // 10to20
		"10000006": "20030615", // exactly 21 years
		"10000007": "19800101", // gt20
	}
	for root, start := range starts {
		w.AddCompanies(warehousetest.Company{Root: root, Name: "EMPRESA " + root, Capital: "1,00"})
		w.AddEstablishments(warehousetest.HQ(root, "2511000", "SP", "02", start))
	}

	bands, err := newEngine(w).Maturity(context.Background(), filter.Request{})
	require.NoError(t, err)
	require.Len(t, bands, 4)

	counts := map[string]int64{}
	for _, b := range bands {
		counts[b.Key] = b.Count
	}
	assert.Equal(t, map[string]int64{"lt3": 1, "3to9": 2, "10to20": 2, "gt20": 2}, counts)
	assert.Equal(t, []string{"lt3", "3to9", "10to20", "gt20"}, []string{bands[0].Key, bands[1].Key, bands[2].Key, bands[3].Key})

	at := func(s string) time.Time {
		d, _ := time.Parse("20060102", s)
		return d
	}
	assert.Equal(t, "lt3", MaturityBandOf(at("20210616"), fixedNow))
	assert.Equal(t, "3to9", MaturityBandOf(at("20210615"), fixedNow))
	assert.Equal(t, "10to20", MaturityBandOf(at("20140615"), fixedNow))
	assert.Equal(t, "gt20", MaturityBandOf(at("20030615"), fixedNow))

	leapDay := time.Date(2028, 2, 29, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "lt3", MaturityBandOf(at("20250301"), leapDay))
	assert.Equal(t, "3to9", MaturityBandOf(at("20250228"), leapDay))
	assert.Equal(t, "3to9", MaturityBandOf(at("20180301"), leapDay))
	assert.Equal(t, "10to20", MaturityBandOf(at("20180228"), leapDay))
	assert.Equal(t, "gt20", MaturityBandOf(at("20070228"), leapDay))
}

func TestMaturityOnLeapDay(t *testing.T) {
	w := warehousetest.New(t)
	starts := map[string]string{
		"20000001": "20250301", // 2 years 11 months
		"20000002": "20250228", // exactly 3 years
	}
	for root, start := range starts {
		w.AddCompanies(warehousetest.Company{Root: root, Name: "EMPRESA " + root, Capital: "1,00"})
		w.AddEstablishments(warehousetest.HQ(root, "2511000", "SP", "02", start))
	}
	engine := newEngine(w).WithClock(func() time.Time { return time.Date(2028, 2, 29, 9, 0, 0, 0, time.UTC) })

	bands, err := engine.Maturity(context.Background(), filter.Request{})
	require.NoError(t, err)
	require.Len(t, bands, 4)
	assert.Equal(t, int64(1), bands[0].Count)
	assert.Equal(t, int64(1), bands[1].Count)
}

// three matching rows plus one in RJ and one in division 20
func TestConcreteScenarioExcludesOtherStateAndDivision(t *testing.T) {
	w := warehousetest.New(t)
	w.AddCompanies(
		warehousetest.Company{Root: "11111111", Name: "ALFA ALIMENTOS LTDA", LegalNature: "2062", Capital: "1000,00"},
		warehousetest.Company{Root: "22222222", Name: "BETA BEBIDAS SA", LegalNature: "2046", Capital: "2000,00"},
		warehousetest.Company{Root: "33333333", Name: "GAMA LATICINIOS", LegalNature: "2135", Capital: "3000,00"},
		warehousetest.Company{Root: "88888888", Name: "RIO ALIMENTOS LTDA", LegalNature: "2062", Capital: "7000,00"},
		warehousetest.Company{Root: "99999999", Name: "QUIMICA PAULISTA SA", LegalNature: "2046", Capital: "8000,00"},
	)
	w.AddEstablishments(
		warehousetest.HQ("11111111", "1011201", "SP", "02", "20230510"),
		warehousetest.HQ("22222222", "1091101", "SP", "02", "20230520"),
		warehousetest.HQ("33333333", "1052000", "SP", "02", "20230601"),
		warehousetest.HQ("88888888", "1011201", "RJ", "02", "20230601"),
		warehousetest.HQ("99999999", "2011800", "SP", "02", "20230601"),
	)
	engine := newEngine(w)
	ctx := context.Background()

	s, err := engine.Summary(ctx, spFoodHeadquarters())
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Count)
	require.NotNil(t, s.AverageCapital)
	assert.InDelta(t, 2000.0, *s.AverageCapital, 0.001)

	sectors, err := engine.Sectors(ctx, spFoodHeadquarters(), 0)
	require.NoError(t, err)
	require.Len(t, sectors, 1)
	assert.Equal(t, "10", sectors[0].Code)
	assert.Equal(t, int64(3), sectors[0].Count)

	states, err := engine.States(ctx, spFoodHeadquarters())
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "SP", states[0].State)
	assert.Equal(t, int64(3), states[0].Count)

	all, err := engine.Summary(ctx, filter.Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), all.Count)
}

func TestLegalNatureProfile(t *testing.T) {
	w := warehousetest.New(t)
	natures := map[string]string{
		"20000001": "2062",
		"20000002": "2240",
		"20000003": "2046",
		"20000004": "2135",
		"20000005": "1015",
		"20000006": "2011",
		"20000007": "3999",
	}
	for root, nature := range natures {
		w.AddCompanies(warehousetest.Company{Root: root, Name: "EMPRESA " + root, LegalNature: nature, Capital: "1,00"})
		w.AddEstablishments(warehousetest.HQ(root, "2511000", "SP", "02", "20200101"))
	}

	groups, err := newEngine(w).LegalNatures(context.Background(), filter.Request{})
	require.NoError(t, err)

	got := map[string]int64{}
	var keys []string
	for _, g := range groups {
		got[g.Key] = g.Count
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{"limited", "corporation", "sole_proprietor", "public_micro", "other"}, keys)
	assert.Equal(t, map[string]int64{"limited": 2, "corporation": 1, "sole_proprietor": 1, "public_micro": 2, "other": 1}, got)

	assert.Equal(t, "limited", ClassifyLegalNature("2062"))
	assert.Equal(t, "other", ClassifyLegalNature(""))
}

func TestOpeningTrendWithSamples(t *testing.T) {
	engine := newEngine(seedIndustry(t))

	points, err := engine.OpeningTrend(context.Background(), spFoodHeadquarters())
	require.NoError(t, err)
	assert.Equal(t, []models.TrendPoint{
		{Month: "2023-05", Count: 2, Samples: []string{"ALFA ALIMENTOS LTDA", "BETA BEBIDAS SA"}},
		{Month: "2023-06", Count: 1, Samples: []string{"GAMA LATICINIOS"}},
	}, points)
}

func TestClosingTrendIgnoresActiveOnly(t *testing.T) {
	engine := newEngine(seedIndustry(t))

	points, err := engine.ClosingTrend(context.Background(), filter.Request{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []models.TrendPoint{
		{Month: "2023-11", Count: 1, Samples: []string{"EPSILON MOINHO LTDA"}},
	}, points)
}

func TestGatewayFailureReturnsEmptyAndTypedError(t *testing.T) {
	gw := &warehousetest.FailingGateway{}
	engine := newEngine(gw)
	ctx := context.Background()

	s, err := engine.Summary(ctx, filter.Request{})
	assert.Equal(t, models.Summary{}, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayUnavailable))
	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, ShapeSummary, qe.Shape)

	bands, err := engine.Maturity(ctx, filter.Request{})
	assert.True(t, IsUnavailable(err))
	assert.Len(t, bands, 4)
	for _, b := range bands {
		assert.Zero(t, b.Count)
	}

	listing, err := engine.Listing(ctx, filter.Request{}, 5)
	assert.True(t, IsUnavailable(err))
	assert.Empty(t, listing.Companies)
	assert.NotNil(t, listing.Companies)

	assert.Equal(t, int64(3), engine.Stats().FailedQueries)
}

func TestDashboardRendersEveryPanel(t *testing.T) {
	engine := newEngine(seedIndustry(t))

	d, err := engine.Dashboard(context.Background(), filter.Request{}, DashboardOptions{ListingLimit: 3})
	require.NoError(t, err)

	assert.True(t, d.Scoped)
	assert.Empty(t, d.Failures)
	require.NotNil(t, d.Summary)
	assert.Equal(t, int64(5), d.Summary.Count)
	require.NotNil(t, d.HeadquartersSummary)
	assert.Equal(t, int64(5), d.HeadquartersSummary.Count)
	require.NotNil(t, d.Listing)
	assert.Equal(t, 3, d.Listing.Returned)
	assert.Len(t, d.Maturity, 4)
	assert.Len(t, d.LegalNatures, 5)
	assert.NotEmpty(t, d.OpeningTrend)
	assert.Equal(t, fixedNow, d.GeneratedAt)
}

func TestDashboardAllPanelsFailed(t *testing.T) {
	engine := newEngine(&warehousetest.FailingGateway{})

	d, err := engine.Dashboard(context.Background(), filter.Request{}, DashboardOptions{})
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Len(t, d.Failures, dashboardPanels)
	assert.Nil(t, d.Summary)
}

func TestDashboardCancelled(t *testing.T) {
	engine := newEngine(seedIndustry(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Dashboard(ctx, filter.Request{}, DashboardOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTypologyOf(t *testing.T) {
	assert.Equal(t, Typology{"Indústria Extrativa", "Upstream"}, TypologyOf(6))
	assert.Equal(t, Typology{"Bens de Capital", "Upstream"}, TypologyOf(28))
	assert.Equal(t, Typology{"Indústria de Base", "Midstream"}, TypologyOfCode("24.11-3/00"))
	assert.Equal(t, Typology{"Outros", "N/A"}, TypologyOfCode(""))
}
