package services

import (
	"fmt"
	"io"

	"github.com/nexconsult/cnpj-analytics/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const listingSheet = "Empresas"

var listingHeader = []interface{}{
	"CNPJ", "Razão Social", "Nome Fantasia", "Matriz", "Situação", "Início Atividade",
	"Capital Social", "Porte", "Natureza Jurídica", "CNAE", "Descrição CNAE", "UF", "Município",
}

var listingWidths = []float64{20, 45, 30, 8, 12, 14, 18, 28, 40, 10, 50, 5, 25}

// ExportService renders listings as XLSX workbooks
type ExportService struct {
	logger *logrus.Logger
}

// NewExportService creates a new export service
func NewExportService(logger *logrus.Logger) *ExportService {
	return &ExportService{logger: logger}
}

// WriteListing writes the listing as a single-sheet workbook to w
func (s *ExportService) WriteListing(w io.Writer, listing models.Listing) error {
	wb := excelize.NewFile()
	defer func() {
		if err := wb.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close workbook")
		}
	}()

	if err := wb.SetSheetName("Sheet1", listingSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := wb.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := wb.SetSheetRow(listingSheet, "A1", &listingHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(listingHeader))
	if err := wb.SetCellStyle(listingSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	for i, width := range listingWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := wb.SetColWidth(listingSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	for i, c := range listing.Companies {
		row := listingRow(c)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := wb.SetSheetRow(listingSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func listingRow(c models.Company) []interface{} {
	var capital interface{}
	if c.Capital != nil {
		capital = *c.Capital
	}
	hq := "Não"
	if c.Headquarters {
		hq = "Sim"
	}
	municipality := c.MunicipalityName
	if municipality == "" {
		municipality = c.Municipality
	}
	return []interface{}{
		c.CNPJ, c.Name, c.TradeName, hq, c.StatusDescription, c.StartDate,
		capital, c.SizeDescription, c.LegalNatureDescription, c.Classification,
		c.ClassificationDescription, c.State, municipality,
	}
}
