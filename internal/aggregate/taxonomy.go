package aggregate

import (
	"strings"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/utils"
)

type maturityBand struct {
	Key   string
	Label string
	// MinYears is the inclusive lower bound of the band's age in whole years.
	MinYears int
}

// Ordered youngest first. A company exactly MinYears old belongs to the band.
var maturityBands = []maturityBand{
	{Key: "lt3", Label: "1. Novas Entrantes (< 3 anos)", MinYears: 0},
	{Key: "3to9", Label: "2. Jovens (3 a 9 anos)", MinYears: 3},
	{Key: "10to20", Label: "3. Consolidadas (10 a 20 anos)", MinYears: 10},
	{Key: "gt20", Label: "4. Veteranas (> 20 anos)", MinYears: 21},
}

// cutoff is the latest start date (YYYYMMDD) still too young for the next
// band: starts strictly after it belong to this band or a younger one.
func (b maturityBand) cutoff(now time.Time) string {
	return yearsBefore(now, b.next().MinYears).Format("20060102")
}

// yearsBefore shifts now back n calendar years. A Feb 29 that does not exist
// in the target year becomes Feb 28 instead of rolling over to Mar 1.
func yearsBefore(now time.Time, n int) time.Time {
	t := time.Date(now.Year()-n, now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if t.Month() != now.Month() {
		t = t.AddDate(0, 0, -t.Day())
	}
	return t
}

func (b maturityBand) next() maturityBand {
	for i, band := range maturityBands {
		if band.Key == b.Key && i+1 < len(maturityBands) {
			return maturityBands[i+1]
		}
	}
	return b
}

// MaturityBandOf returns the band key for an activity start date. It applies
// the same cutoffs the maturity query binds.
func MaturityBandOf(start, now time.Time) string {
	s := start.Format("20060102")
	for _, band := range maturityBands[:len(maturityBands)-1] {
		if s > band.cutoff(now) {
			return band.Key
		}
	}
	return maturityBands[len(maturityBands)-1].Key
}

type legalNatureCategory struct {
	Key      string
	Label    string
	Prefixes []string
}

// Matched in order; codes are the 4-digit natureza_juridica values.
var legalNatureTaxonomy = []legalNatureCategory{
	{Key: "limited", Label: "Sociedade Limitada (LTDA)", Prefixes: []string{"206", "224"}},
	{Key: "corporation", Label: "S.A. (Aberta/Fechada)", Prefixes: []string{"204", "205"}},
	{Key: "sole_proprietor", Label: "Empresário Individual", Prefixes: []string{"213", "230"}},
	{Key: "public_micro", Label: "Empresa Pública/MEI", Prefixes: []string{"1", "201", "203"}},
}

var otherLegalNature = legalNatureCategory{Key: "other", Label: "Outros"}

// ClassifyLegalNature returns the taxonomy key for a legal-nature code
func ClassifyLegalNature(code string) string {
	code = strings.TrimSpace(code)
	for _, cat := range legalNatureTaxonomy {
		for _, prefix := range cat.Prefixes {
			if strings.HasPrefix(code, prefix) {
				return cat.Key
			}
		}
	}
	return otherLegalNature.Key
}

// Typology places a CNAE division in a macro category and value-chain position
type Typology struct {
	Category      string `json:"category"`
	ChainPosition string `json:"chain_position"`
}

// TypologyOf classifies an industrial division
func TypologyOf(division int) Typology {
	switch {
	case division >= 5 && division <= 9:
		return Typology{"Indústria Extrativa", "Upstream"}
	case division >= 10 && division <= 15, division == 18, division == 32:
		return Typology{"Bens de Consumo Não Duráveis", "Downstream"}
	case division == 16, division == 17, division >= 19 && division <= 23:
		return Typology{"Bens Intermediários", "Midstream"}
	case division == 24, division == 25:
		return Typology{"Indústria de Base", "Midstream"}
	case division == 29, division == 31:
		return Typology{"Bens de Consumo Duráveis", "Downstream"}
	case division == 28:
		return Typology{"Bens de Capital", "Upstream"}
	case division == 26, division == 27, division == 30, division == 33:
		return Typology{"Bens de Capital", "Midstream"}
	default:
		return Typology{"Outros", "N/A"}
	}
}

// TypologyOfCode classifies a division or classification code
func TypologyOfCode(code string) Typology {
	division, ok := utils.DivisionOf(code)
	if !ok {
		return TypologyOf(utils.UnidentifiedDivision)
	}
	return TypologyOf(division)
}
