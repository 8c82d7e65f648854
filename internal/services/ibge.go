package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/aggregate"
	"github.com/nexconsult/cnpj-analytics/internal/config"
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/utils"
	"github.com/sirupsen/logrus"
)

// Fetched variables: fixed-base index, seasonal monthly change, trailing 12 months
var ibgeVariables = []string{aggregate.VarIndexFixedBase, aggregate.VarMonthlyChange, aggregate.VarTrailingTwelveMos}

var ibgeVariableNames = map[string]string{
	aggregate.VarIndexFixedBase:    "Índice Base Fixa (2022=100)",
	aggregate.VarIndexSeasonal:     "Índice Base Fixa (Sazonal)",
	aggregate.VarMonthlyChange:     "Variação Mensal (Sazonal)",
	aggregate.VarMonthlyChangeYoY:  "Variação Mensal (YoY)",
	aggregate.VarYearToDate:        "Acumulado no Ano (YTD)",
	aggregate.VarTrailingTwelveMos: "Acumulado 12 Meses (%)",
}

// CNAE division -> classification 544 category of table 8888
var ibgeCategories = map[string]string{
	"10": "129317", "11": "129318", "12": "129319", "13": "129320", "14": "129321",
	"15": "129322", "16": "129323", "17": "129324", "18": "129325", "19": "129326",
	"20": "56689", "21": "129330", "22": "129331", "23": "129332", "24": "129333",
	"25": "129334", "26": "129335", "27": "129336", "28": "129337", "29": "129338",
	"30": "129339", "31": "129340", "32": "129341", "33": "129342",
}

// IBGEService fetches PIM-PF industrial production series
type IBGEService struct {
	config config.IBGEConfig
	client *http.Client
	cache  CacheServiceInterface
	ttl    time.Duration
	logger *logrus.Logger
}

// NewIBGEService creates a new IBGE series client
func NewIBGEService(cfg config.IBGEConfig, cache CacheServiceInterface, ttl time.Duration, logger *logrus.Logger) *IBGEService {
	return &IBGEService{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// CategoryFor maps a CNAE division code to its IBGE category
func (s *IBGEService) CategoryFor(division string) string {
	if d, ok := utils.DivisionOf(division); ok {
		if category, ok := ibgeCategories[utils.DivisionCode(d)]; ok {
			return category
		}
	}
	return s.config.DefaultCategory
}

// Series returns the series for division, read through the cache
func (s *IBGEService) Series(ctx context.Context, division string) (models.IndexSeries, error) {
	category := s.CategoryFor(division)
	key := "ibge:" + category

	var series models.IndexSeries
	if s.cache.GetJSON(ctx, key, &series) {
		series.Division = division
		return series, nil
	}

	samples, err := s.fetch(ctx, category)
	if err != nil {
		return models.IndexSeries{}, err
	}

	series = models.IndexSeries{
		Division:  division,
		Category:  category,
		Samples:   samples,
		FetchedAt: time.Now(),
	}
	s.cache.SetJSON(ctx, key, series, s.ttl)
	return series, nil
}

func (s *IBGEService) seriesURL(category string) string {
	return fmt.Sprintf("%s/periodos/-120/variaveis/%s?localidades=N1[all]|N3[all]&classificacao=544[%s]",
		strings.TrimRight(s.config.BaseURL, "/"), strings.Join(ibgeVariables, ","), category)
}

type ibgeVariable struct {
	ID         string `json:"id"`
	Resultados []struct {
		Series []struct {
			Localidade struct {
				Nome string `json:"nome"`
			} `json:"localidade"`
			Serie map[string]string `json:"serie"`
		} `json:"series"`
	} `json:"resultados"`
}

func (s *IBGEService) fetch(ctx context.Context, category string) ([]models.IndexSample, error) {
	start := time.Now()
	url := s.seriesURL(category)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build IBGE request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch IBGE series: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("IBGE returned status %d", resp.StatusCode)
	}

	var payload []ibgeVariable
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode IBGE series: %w", err)
	}

	samples := parseSeries(payload)
	s.logger.WithFields(logrus.Fields{
		"category": category,
		"samples":  len(samples),
		"duration": time.Since(start),
	}).Info("IBGE series fetched")
	return samples, nil
}

func parseSeries(payload []ibgeVariable) []models.IndexSample {
	samples := []models.IndexSample{}
	for _, variable := range payload {
		if len(variable.Resultados) == 0 {
			continue
		}
		for _, series := range variable.Resultados[0].Series {
			for period, raw := range series.Serie {
				if len(period) != 6 || !utils.IsDigits(period) {
					continue
				}
				sample := models.IndexSample{
					Location:   series.Localidade.Nome,
					VariableID: variable.ID,
					Variable:   ibgeVariableNames[variable.ID],
					Month:      period[:4] + "-" + period[4:],
				}
				// "...", "-" and "X" mean no data
				if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
					sample.Value = &v
				}
				samples = append(samples, sample)
			}
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		a, b := samples[i], samples[j]
		if a.VariableID != b.VariableID {
			return a.VariableID < b.VariableID
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Month < b.Month
	})
	return samples
}
