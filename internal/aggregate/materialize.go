package aggregate

import (
	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/nexconsult/cnpj-analytics/internal/utils"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
)

func (e *Engine) materializeSummary(rows []warehouse.Row) models.Summary {
	var s models.Summary
	if len(rows) == 0 {
		return s
	}
	row := rows[0]
	s.Count, _ = row.Int64("total")
	s.CapitalReported, _ = row.Int64("capital_rows")
	s.CapitalMissing = s.Count - s.CapitalReported
	if avg, ok := row.Float64("avg_capital"); ok && s.CapitalReported > 0 {
		s.AverageCapital = &avg
	}
	return s
}

func (e *Engine) materializeSectors(rows []warehouse.Row) []models.SectorCount {
	out := make([]models.SectorCount, 0, len(rows))
	for _, row := range rows {
		total, ok := row.Int64("total")
		if !ok {
			e.skip(ShapeSectors, row)
			continue
		}
		division := utils.UnidentifiedDivision
		if d, ok := row.Int64("division"); ok {
			division = int(d)
		}
		code := utils.DivisionCode(division)
		typology := TypologyOf(division)
		out = append(out, models.SectorCount{
			Code:          code,
			Label:         utils.DivisionLabel(code),
			Count:         total,
			Category:      typology.Category,
			ChainPosition: typology.ChainPosition,
		})
	}
	return out
}

func (e *Engine) materializeStates(rows []warehouse.Row) []models.StateCount {
	out := make([]models.StateCount, 0, len(rows))
	for _, row := range rows {
		total, ok := row.Int64("total")
		if !ok {
			e.skip(ShapeStates, row)
			continue
		}
		state := row.String("state")
		out = append(out, models.StateCount{
			State: state,
			Name:  utils.StateName(state),
			Count: total,
		})
	}
	return out
}

func (e *Engine) materializeMunicipalities(rows []warehouse.Row) []models.MunicipalityCount {
	out := make([]models.MunicipalityCount, 0, len(rows))
	for _, row := range rows {
		total, ok := row.Int64("total")
		if !ok {
			e.skip(ShapeMunicipalities, row)
			continue
		}
		code := row.String("code")
		name := row.String("name")
		if name == "" {
			name = code
		}
		out = append(out, models.MunicipalityCount{Code: code, Name: name, Count: total})
	}
	return out
}

// monthLabel turns a YYYYMM bucket into YYYY-MM
func monthLabel(raw string) (string, bool) {
	if len(raw) != 6 || !utils.IsDigits(raw) {
		return "", false
	}
	return raw[:4] + "-" + raw[4:], true
}

func (e *Engine) materializeTrend(shape string, rows []warehouse.Row) []models.TrendPoint {
	out := make([]models.TrendPoint, 0, len(rows))
	for _, row := range rows {
		month, ok := monthLabel(row.String("month"))
		total, hasTotal := row.Int64("total")
		if !ok || !hasTotal {
			e.skip(shape, row)
			continue
		}
		out = append(out, models.TrendPoint{Month: month, Count: total, Samples: []string{}})
	}
	return out
}

func attachSamples(points []models.TrendPoint, rows []warehouse.Row, limit int) {
	index := make(map[string]int, len(points))
	for i, p := range points {
		index[p.Month] = i
	}
	for _, row := range rows {
		month, ok := monthLabel(row.String("month"))
		if !ok {
			continue
		}
		i, ok := index[month]
		if !ok || len(points[i].Samples) >= limit {
			continue
		}
		if name := row.String("name"); name != "" {
			points[i].Samples = append(points[i].Samples, name)
		}
	}
}

func emptyMaturity() []models.MaturityBand {
	out := make([]models.MaturityBand, len(maturityBands))
	for i, band := range maturityBands {
		out[i] = models.MaturityBand{Key: band.Key, Label: band.Label}
	}
	return out
}

func (e *Engine) materializeMaturity(rows []warehouse.Row) []models.MaturityBand {
	out := emptyMaturity()
	for _, row := range rows {
		key := row.String("band")
		total, ok := row.Int64("total")
		if !ok {
			e.skip(ShapeMaturity, row)
			continue
		}
		matched := false
		for i := range out {
			if out[i].Key == key {
				out[i].Count += total
				matched = true
			}
		}
		if !matched {
			e.skip(ShapeMaturity, row)
		}
	}
	return out
}

func emptyLegalNatures() []models.LegalNatureGroup {
	out := make([]models.LegalNatureGroup, 0, len(legalNatureTaxonomy)+1)
	for _, cat := range legalNatureTaxonomy {
		out = append(out, models.LegalNatureGroup{Key: cat.Key, Label: cat.Label})
	}
	return append(out, models.LegalNatureGroup{Key: otherLegalNature.Key, Label: otherLegalNature.Label})
}

func (e *Engine) materializeLegalNatures(rows []warehouse.Row) []models.LegalNatureGroup {
	out := emptyLegalNatures()
	for _, row := range rows {
		key := row.String("category")
		total, ok := row.Int64("total")
		if !ok {
			e.skip(ShapeLegalNature, row)
			continue
		}
		for i := range out {
			if out[i].Key == key {
				out[i].Count += total
			}
		}
	}
	return out
}

func (e *Engine) materializeListing(rows []warehouse.Row, limit int) models.Listing {
	listing := models.Listing{Companies: make([]models.Company, 0, len(rows)), Limit: limit}
	for _, row := range rows {
		root := row.String("root")
		if len(root) != 8 || !utils.IsDigits(root) {
			e.skip(ShapeListing, row)
			listing.Skipped++
			continue
		}
		listing.Companies = append(listing.Companies, companyFromRow(row))
	}
	listing.Returned = len(listing.Companies)
	return listing
}

func companyFromRow(row warehouse.Row) models.Company {
	root := row.String("root")
	cnpj := utils.JoinCNPJ(root, row.String("ord"), row.String("dv"))
	status := utils.NormalizeStatus(row.String("status"))
	size := row.String("size_class")
	classification := row.String("classification")

	c := models.Company{
		CNPJ:                      utils.FormatCNPJ(cnpj),
		Root:                      root,
		Name:                      row.String("name"),
		TradeName:                 row.String("trade_name"),
		Headquarters:              row.String("flag") == warehouse.HeadquartersFlag,
		Status:                    status,
		StatusDescription:         utils.StatusDescription(status),
		StartDate:                 utils.FormatDate(row.String("start_date")),
		SizeClass:                 size,
		SizeDescription:           utils.SizeClassDescription(size),
		LegalNature:               row.String("legal_nature"),
		LegalNatureDescription:    row.String("legal_nature_description"),
		Classification:            classification,
		ClassificationDescription: row.String("classification_description"),
		State:                     row.String("state"),
		Municipality:              row.String("municipality"),
		MunicipalityName:          row.String("municipality_name"),
	}
	if d, ok := utils.DivisionOf(classification); ok {
		c.Division = utils.DivisionCode(d)
	}
	if capital, ok := row.Float64("capital"); ok {
		c.Capital = &capital
	}
	return c
}
