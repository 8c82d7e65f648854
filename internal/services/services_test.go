package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/aggregate"
	"github.com/nexconsult/cnpj-analytics/internal/config"
	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func memoryCache() *CacheService {
	return NewCacheService(nil, "test:", time.Hour, warehousetest.Logger())
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := memoryCache()
	ctx := context.Background()

	_, err := cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k", "v", 0))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	ok, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	hits, misses := cache.HitStats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, err = cache.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpires(t *testing.T) {
	cache := memoryCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := cache.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheJSONAndClear(t *testing.T) {
	cache := memoryCache()
	ctx := context.Background()

	cache.SetJSON(ctx, "items", []models.ReferenceItem{{Code: "1", Description: "um"}}, 0)

	var items []models.ReferenceItem
	require.True(t, cache.GetJSON(ctx, "items", &items))
	assert.Equal(t, "um", items[0].Description)

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, cache.GetJSON(ctx, "items", &items))

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test:", stats["prefix"])
}

func TestReferenceServiceReadsThroughCache(t *testing.T) {
	w := warehousetest.New(t)
	w.AddReference("cnaes",
		[2]string{"1011201", "Frigorífico - abate de bovinos"},
		[2]string{"4711302", "Comércio varejista de mercadorias em geral"},
		[2]string{"0600001", "Extração de petróleo e gás natural"},
	)
	w.AddReference("naturezas", [2]string{"2062", "Sociedade Empresária Limitada"})

	svc := NewReferenceService(w, memoryCache(), filter.IndustrialScope(), time.Hour, warehousetest.Logger())
	ctx := context.Background()

	all, err := svc.Classifications(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := svc.Classifications(ctx, true)
	require.NoError(t, err)
	codes := []string{}
	for _, item := range scoped {
		codes = append(codes, item.Code)
	}
	assert.ElementsMatch(t, []string{"1011201", "0600001"}, codes)

	// both calls above share one cached read
	assert.Equal(t, int64(1), w.Stats().Executed)

	natures, err := svc.LegalNatures(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ReferenceItem{{Code: "2062", Description: "Sociedade Empresária Limitada"}}, natures)

	assert.Len(t, svc.Divisions(), 29)
	assert.Len(t, svc.States(), 28)
}

func TestReferenceServiceGatewayFailure(t *testing.T) {
	svc := NewReferenceService(&warehousetest.FailingGateway{}, memoryCache(), filter.IndustrialScope(), time.Hour, warehousetest.Logger())

	items, err := svc.Municipalities(context.Background())
	assert.True(t, aggregate.IsUnavailable(err))
	assert.Empty(t, items)
}

const ibgePayload = `[
  {"id": "12606", "variavel": "Indice", "resultados": [{"series": [
    {"localidade": {"id": "1", "nome": "Brasil"}, "serie": {"202401": "101.5", "202402": "..."}},
    {"localidade": {"id": "35", "nome": "São Paulo"}, "serie": {"202401": "99.0"}}
  ]}]},
  {"id": "11604", "variavel": "Acumulado", "resultados": [{"series": [
    {"localidade": {"id": "1", "nome": "Brasil"}, "serie": {"202401": "-1.2", "202402": "X"}}
  ]}]}
]`

func newIBGEServer(t *testing.T, status int, calls *atomic.Int64, lastURL *atomic.Value) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		lastURL.Store(r.URL.String())
		w.WriteHeader(status)
		_, _ = w.Write([]byte(ibgePayload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func ibgeConfig(baseURL string) config.IBGEConfig {
	return config.IBGEConfig{BaseURL: baseURL, Timeout: 2 * time.Second, DefaultCategory: "129314"}
}

func TestIBGESeriesParsesAndCaches(t *testing.T) {
	var calls atomic.Int64
	var lastURL atomic.Value
	srv := newIBGEServer(t, http.StatusOK, &calls, &lastURL)
	svc := NewIBGEService(ibgeConfig(srv.URL), memoryCache(), time.Hour, warehousetest.Logger())
	ctx := context.Background()

	series, err := svc.Series(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, "129317", series.Category)
	assert.Contains(t, lastURL.Load().(string), "classificacao=544[129317]")
	assert.Contains(t, lastURL.Load().(string), "/periodos/-120/variaveis/12606,11601,11604")

	require.Len(t, series.Samples, 5)
	first := series.Samples[0]
	assert.Equal(t, "11604", first.VariableID)
	assert.Equal(t, "Acumulado 12 Meses (%)", first.Variable)
	assert.Equal(t, "2024-01", first.Month)
	require.NotNil(t, first.Value)
	assert.Equal(t, -1.2, *first.Value)
	assert.Nil(t, series.Samples[1].Value)

	_, err = svc.Series(ctx, "10.11-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestIBGECategoryFallsBackToGeneralIndustry(t *testing.T) {
	svc := NewIBGEService(ibgeConfig("http://unused"), memoryCache(), time.Hour, warehousetest.Logger())

	assert.Equal(t, "129314", svc.CategoryFor(""))
	assert.Equal(t, "129314", svc.CategoryFor("06"))
	assert.Equal(t, "56689", svc.CategoryFor("20"))
}

func TestIBGEErrorStatus(t *testing.T) {
	var calls atomic.Int64
	var lastURL atomic.Value
	srv := newIBGEServer(t, http.StatusBadGateway, &calls, &lastURL)
	svc := NewIBGEService(ibgeConfig(srv.URL), memoryCache(), time.Hour, warehousetest.Logger())

	_, err := svc.Series(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestExportWritesWorkbook(t *testing.T) {
	capital := 1500.5
	listing := models.Listing{Companies: []models.Company{{
		CNPJ:         "11.111.111/0001-00",
		Name:         "ALFA ALIMENTOS LTDA",
		Headquarters: true,
		Capital:      &capital,
		State:        "SP",
		Municipality: "7107",
	}}}

	var buf bytes.Buffer
	require.NoError(t, NewExportService(warehousetest.Logger()).WriteListing(&buf, listing))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(listingSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "CNPJ", rows[0][0])
	assert.Equal(t, "11.111.111/0001-00", rows[1][0])
	assert.Equal(t, "Sim", rows[1][3])
	assert.Equal(t, "7107", rows[1][12])
}

type stubIBGE struct {
	series models.IndexSeries
	err    error
}

func (s stubIBGE) Series(context.Context, string) (models.IndexSeries, error) {
	return s.series, s.err
}

func TestAnalyticsCorrelationIBGEFailure(t *testing.T) {
	engine := aggregate.NewEngine(warehousetest.New(t), filter.NewCompiler(filter.IndustrialScope()), aggregate.DefaultOptions(), warehousetest.Logger())
	svc := NewAnalyticsService(engine, stubIBGE{err: errors.New("timeout")}, warehousetest.Logger())

	c, err := svc.Correlation(context.Background(), filter.Request{})
	assert.ErrorIs(t, err, ErrIBGEUnavailable)
	assert.Nil(t, c.Coefficient)

	phase, err := svc.CyclePhase(context.Background(), filter.Request{})
	assert.ErrorIs(t, err, ErrIBGEUnavailable)
	assert.Equal(t, aggregate.PhaseUnknown, phase.Phase)
}

func TestAnalyticsCyclePhaseWithSeries(t *testing.T) {
	engine := aggregate.NewEngine(warehousetest.New(t), filter.NewCompiler(filter.IndustrialScope()), aggregate.DefaultOptions(), warehousetest.Logger())
	v := 1.5
	series := models.IndexSeries{Samples: []models.IndexSample{{VariableID: aggregate.VarTrailingTwelveMos, Month: "2024-01", Value: &v}}}
	svc := NewAnalyticsService(engine, stubIBGE{series: series}, warehousetest.Logger())

	phase, err := svc.CyclePhase(context.Background(), filter.Request{})
	require.NoError(t, err)
	assert.Equal(t, aggregate.PhaseCapacity, phase.Phase)
}

func TestSeriesDivision(t *testing.T) {
	assert.Equal(t, "10", SeriesDivision(filter.Request{SectorDivisionCodes: []string{"10"}}))
	assert.Equal(t, "", SeriesDivision(filter.Request{SectorDivisionCodes: []string{"10", "11"}}))
	assert.Equal(t, "", SeriesDivision(filter.Request{}))
}

func TestContainerCloseStopsCacheCleanup(t *testing.T) {
	cfg := &config.Config{
		Cache:  config.CacheConfig{KeyPrefix: "test:", ReferenceTTL: time.Hour, IBGETTL: time.Hour},
		Engine: config.EngineConfig{ScopeLow: 5, ScopeHigh: 33, DefaultListingLimit: 10, MaxListingLimit: 100, LocalityTopN: 10, MaxConcurrency: 2},
		IBGE:   ibgeConfig("http://127.0.0.1:1"),
	}

	container, err := NewContainerWithGateway(context.Background(), cfg, &warehousetest.FailingGateway{}, warehousetest.Logger())
	require.NoError(t, err)
	require.NotNil(t, container.stopCleanup)
	assert.NotNil(t, container.AnalyticsService)

	require.NoError(t, container.Close())
	assert.NoError(t, container.Close())
}
