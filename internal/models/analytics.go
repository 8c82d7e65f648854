package models

import (
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/filter"
)

// AnalyticsRequest is the body accepted by the analytics endpoints
type AnalyticsRequest struct {
	filter.Request
	Limit int `json:"limit,omitempty" example:"1000"`
	TopN  int `json:"top_n,omitempty" example:"10"`
}

// Summary is the exact headline count and average capital
type Summary struct {
	Count          int64    `json:"count" example:"1532"`
	AverageCapital *float64 `json:"average_capital" example:"250000.5"`
	// CapitalReported counts rows whose capital normalized to a number.
	CapitalReported int64 `json:"capital_reported" example:"1530"`
	CapitalMissing  int64 `json:"capital_missing" example:"2"`
}

// SectorCount is one CNAE division bucket
type SectorCount struct {
	Code          string `json:"code" example:"10"`
	Label         string `json:"label" example:"10 - Fabricação de Produtos Alimentícios"`
	Count         int64  `json:"count" example:"320"`
	Category      string `json:"category,omitempty" example:"Bens de Consumo Não Duráveis"`
	ChainPosition string `json:"chain_position,omitempty" example:"Downstream"`
}

// StateCount is one federative unit bucket
type StateCount struct {
	State string `json:"state" example:"SP"`
	Name  string `json:"name" example:"São Paulo"`
	Count int64  `json:"count" example:"812"`
}

// MunicipalityCount is one municipality bucket
type MunicipalityCount struct {
	Code  string `json:"code" example:"7107"`
	Name  string `json:"name" example:"SAO PAULO"`
	Count int64  `json:"count" example:"421"`
}

// TrendPoint is one year-month bucket of openings or closings
type TrendPoint struct {
	Month   string   `json:"month" example:"2023-05"`
	Count   int64    `json:"count" example:"17"`
	Samples []string `json:"samples"`
}

// MaturityBand is one company-age bucket
type MaturityBand struct {
	Key   string `json:"key" example:"3to9"`
	Label string `json:"label" example:"2. Jovens (3 a 9 anos)"`
	Count int64  `json:"count" example:"120"`
}

// LegalNatureGroup is one legal-form bucket
type LegalNatureGroup struct {
	Key   string `json:"key" example:"limited"`
	Label string `json:"label" example:"Sociedade Limitada (LTDA)"`
	Count int64  `json:"count" example:"900"`
}

// Company is one establishment row of the filtered listing
type Company struct {
	CNPJ                      string   `json:"cnpj" example:"33.000.167/0001-01"`
	Root                      string   `json:"root" example:"33000167"`
	Name                      string   `json:"name" example:"PETROLEO BRASILEIRO S A PETROBRAS"`
	TradeName                 string   `json:"trade_name,omitempty"`
	Headquarters              bool     `json:"headquarters"`
	Status                    string   `json:"status" example:"02"`
	StatusDescription         string   `json:"status_description" example:"ATIVA"`
	StartDate                 string   `json:"start_date,omitempty" example:"12/11/1966"`
	Capital                   *float64 `json:"capital"`
	SizeClass                 string   `json:"size_class,omitempty" example:"05"`
	SizeDescription           string   `json:"size_description,omitempty" example:"Demais"`
	LegalNature               string   `json:"legal_nature,omitempty" example:"2038"`
	LegalNatureDescription    string   `json:"legal_nature_description,omitempty"`
	Classification            string   `json:"classification,omitempty" example:"0600001"`
	ClassificationDescription string   `json:"classification_description,omitempty"`
	Division                  string   `json:"division,omitempty" example:"06"`
	State                     string   `json:"state,omitempty" example:"RJ"`
	Municipality              string   `json:"municipality,omitempty" example:"6001"`
	MunicipalityName          string   `json:"municipality_name,omitempty" example:"RIO DE JANEIRO"`
}

// Listing is the windowed row-level listing
type Listing struct {
	Companies []Company `json:"companies"`
	Limit     int       `json:"limit" example:"1000"`
	Returned  int       `json:"returned" example:"1000"`
	Skipped   int       `json:"skipped" example:"0"`
}

// BranchSplit compares the headquarters and branch populations
type BranchSplit struct {
	All          int64 `json:"all" example:"1200"`
	Headquarters int64 `json:"headquarters" example:"900"`
	Branches     int64 `json:"branches" example:"300"`
}

// Dashboard bundles every panel of one render. Failed panels are nil and
// listed in Failures.
type Dashboard struct {
	Summary             *Summary            `json:"summary"`
	HeadquartersSummary *Summary            `json:"headquarters_summary"`
	Sectors             []SectorCount       `json:"sectors"`
	States              []StateCount        `json:"states"`
	Municipalities      []MunicipalityCount `json:"municipalities"`
	OpeningTrend        []TrendPoint        `json:"opening_trend"`
	ClosingTrend        []TrendPoint        `json:"closing_trend"`
	Maturity            []MaturityBand      `json:"maturity"`
	LegalNatures        []LegalNatureGroup  `json:"legal_natures"`
	Listing             *Listing            `json:"listing"`
	Failures            map[string]string   `json:"failures,omitempty"`
	Scoped              bool                `json:"scoped"`
	GeneratedAt         time.Time           `json:"generated_at"`
}

// IndexSample is one IBGE observation; Value is nil when IBGE reports no data
type IndexSample struct {
	Location   string   `json:"location" example:"Brasil"`
	VariableID string   `json:"variable_id" example:"12606"`
	Variable   string   `json:"variable" example:"Índice Base Fixa (2022=100)"`
	Month      string   `json:"month" example:"2024-03"`
	Value      *float64 `json:"value"`
}

// IndexSeries is an IBGE industrial production series for one category
type IndexSeries struct {
	Division  string        `json:"division,omitempty" example:"10"`
	Category  string        `json:"category" example:"129317"`
	Samples   []IndexSample `json:"samples"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Correlation relates monthly openings to the industrial production index
type Correlation struct {
	Coefficient  *float64 `json:"coefficient"`
	Label        string   `json:"label" example:"Forte Correlação Positiva"`
	CommonMonths int      `json:"common_months" example:"48"`
	Sufficient   bool     `json:"sufficient"`
}

// CyclePhase classifies the sector cycle from production trend and net openings
type CyclePhase struct {
	Phase           string   `json:"phase" example:"expansion"`
	Label           string   `json:"label" example:"Expansão"`
	IndexTrend      *float64 `json:"index_trend"`
	NetOpenings     int64    `json:"net_openings" example:"42"`
	Openings        int64    `json:"openings" example:"60"`
	Closings        int64    `json:"closings" example:"18"`
	ReferenceMonths []string `json:"reference_months"`
}
