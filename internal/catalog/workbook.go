package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const workbookSheet = "Bestand"

var workbookColumns = []string{
	"id", "sku", "name", "system", "category", "stockLevel", "minStock",
	"warehouseLocation", "manufacturer", "capacityAh", "notes",
}

// ImportWorkbook replaces the stock table with the rows of the first sheet of an XLSX workbook.
// Row 1 must hold column headers.
func (s *Service) ImportWorkbook(ctx context.Context, r io.Reader) (ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("catalog: open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ImportResult{}, ErrImportEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ImportResult{}, fmt.Errorf("catalog: read rows: %w", err)
	}
	if len(rows) < 2 {
		return ImportResult{}, ErrImportEmpty
	}
	header := rows[0]
	records := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		record := make(map[string]any, len(header))
		for col, name := range header {
			if col < len(row) {
				record[name] = row[col]
			}
		}
		records = append(records, record)
	}
	return s.importRows(ctx, records)
}

// ExportWorkbook writes the stock table as an XLSX workbook ImportWorkbook accepts.
func (s *Service) ExportWorkbook(ctx context.Context, w io.Writer) error {
	items, err := s.List(ctx)
	if err != nil {
		return err
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", workbookSheet); err != nil {
		return fmt.Errorf("catalog: rename sheet: %w", err)
	}
	for col, name := range workbookColumns {
		if err := f.SetCellValue(workbookSheet, cellName(col, 1), name); err != nil {
			return err
		}
	}
	for i, item := range items {
		row := i + 2
		values := []any{
			item.ID, item.SKU, item.Name, item.System, item.Category, item.StockLevel, item.MinStock,
			item.WarehouseLocation, item.Manufacturer, item.CapacityAh, item.Notes,
		}
		for col, value := range values {
			if err := f.SetCellValue(workbookSheet, cellName(col, row), value); err != nil {
				return err
			}
		}
	}
	_, err = f.WriteTo(w)
	return err
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
