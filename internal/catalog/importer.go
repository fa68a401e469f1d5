package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/odyssey-erp/wareneingang/internal/shared"
)

// fieldAliases maps normalised column names onto canonical record keys.
var fieldAliases = map[string]string{
	"id":                "id",
	"sku":               "sku",
	"artikelnummer":     "sku",
	"artikelnr":         "sku",
	"name":              "name",
	"bezeichnung":       "name",
	"system":            "system",
	"category":          "category",
	"kategorie":         "category",
	"stocklevel":        "stockLevel",
	"bestand":           "stockLevel",
	"minstock":          "minStock",
	"mindestbestand":    "minStock",
	"warehouselocation": "warehouseLocation",
	"lagerort":          "warehouseLocation",
	"manufacturer":      "manufacturer",
	"hersteller":        "manufacturer",
	"capacityah":        "capacityAh",
	"kapazitaetah":      "capacityAh",
	"notes":             "notes",
	"bemerkung":         "notes",
}

type importRecord struct {
	ID                string  `mapstructure:"id"`
	SKU               string  `mapstructure:"sku"`
	Name              string  `mapstructure:"name"`
	System            string  `mapstructure:"system"`
	Category          string  `mapstructure:"category"`
	StockLevel        int     `mapstructure:"stockLevel"`
	MinStock          int     `mapstructure:"minStock"`
	WarehouseLocation string  `mapstructure:"warehouseLocation"`
	Manufacturer      string  `mapstructure:"manufacturer"`
	CapacityAh        float64 `mapstructure:"capacityAh"`
	Notes             string  `mapstructure:"notes"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Imported int
	Skipped  int
}

// Import replaces the stock table with the records of a JSON array.
// Malformed payloads are rejected as a whole and leave the table untouched.
func (s *Service) Import(ctx context.Context, payload []byte) (ImportResult, error) {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return ImportResult{}, fmt.Errorf("catalog: decode import: %w", err)
	}
	list, ok := decoded.([]any)
	if !ok {
		return ImportResult{}, ErrImportNotArray
	}
	rows := make([]map[string]any, 0, len(list))
	for i, entry := range list {
		row, ok := entry.(map[string]any)
		if !ok {
			return ImportResult{}, fmt.Errorf("%w: element %d is not an object", ErrImportNotArray, i)
		}
		rows = append(rows, row)
	}
	return s.importRows(ctx, rows)
}

func (s *Service) importRows(ctx context.Context, rows []map[string]any) (ImportResult, error) {
	items, skipped, err := s.mapRecords(rows)
	if err != nil {
		return ImportResult{}, err
	}
	if err := s.ReplaceAll(ctx, items); err != nil {
		return ImportResult{}, err
	}
	result := ImportResult{Imported: len(items), Skipped: skipped}
	s.logger.InfoContext(ctx, "stock import applied", "imported", result.Imported, "skipped", result.Skipped)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{Actor: shared.ActorFromContext(ctx), Action: "STOCK_IMPORT", Entity: "stock_item", EntityID: "*", Meta: map[string]any{"imported": result.Imported, "skipped": result.Skipped}})
	}
	return result, nil
}

// mapRecords converts raw rows into stock items. Rows without a sku or repeating an earlier sku are skipped.
func (s *Service) mapRecords(rows []map[string]any) ([]StockItem, int, error) {
	if len(rows) == 0 {
		return nil, 0, ErrImportEmpty
	}
	first := canonicalKeys(rows[0])
	if sku, ok := first["sku"]; !ok || sku == nil || strings.TrimSpace(fmt.Sprint(sku)) == "" {
		return nil, 0, ErrImportMissingSKU
	}
	now := s.now()
	items := make([]StockItem, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	skipped := 0
	for i, row := range rows {
		record, err := decodeRecord(canonicalKeys(row))
		if err != nil {
			return nil, 0, fmt.Errorf("catalog: import record %d: %w", i+1, err)
		}
		if record.SKU == "" {
			skipped++
			continue
		}
		if _, dup := seen[record.SKU]; dup {
			skipped++
			continue
		}
		seen[record.SKU] = struct{}{}
		items = append(items, record.toStockItem(now))
	}
	return items, skipped, nil
}

func (r importRecord) toStockItem(now time.Time) StockItem {
	id := r.ID
	if id == "" {
		id = r.SKU
	}
	return StockItem{
		ID:                id,
		SKU:               r.SKU,
		Name:              r.Name,
		System:            r.System,
		Category:          r.Category,
		StockLevel:        max(r.StockLevel, 0),
		MinStock:          max(r.MinStock, 0),
		WarehouseLocation: r.WarehouseLocation,
		Manufacturer:      r.Manufacturer,
		IsAkku:            r.CapacityAh > 0,
		CapacityAh:        r.CapacityAh,
		Notes:             r.Notes,
		LastUpdated:       now,
		Status:            ItemStatusActive,
	}
}

func canonicalKeys(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for key, value := range row {
		canonical, ok := fieldAliases[normaliseColumn(key)]
		if !ok {
			continue
		}
		if _, taken := out[canonical]; taken {
			continue
		}
		out[canonical] = value
	}
	return out
}

func normaliseColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "", "(", "", ")", "", ".", "", "ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")
	return replacer.Replace(name)
}

func decodeRecord(row map[string]any) (importRecord, error) {
	var record importRecord
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       lenientNumberHook,
		WeaklyTypedInput: true,
		Result:           &record,
	})
	if err != nil {
		return importRecord{}, err
	}
	if err := decoder.Decode(row); err != nil {
		return importRecord{}, err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.SKU = strings.TrimSpace(record.SKU)
	record.Name = strings.TrimSpace(record.Name)
	return record, nil
}

// lenientNumberHook turns blank or unparsable numeric cells into zero and accepts decimal commas.
func lenientNumberHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))
	switch to.Kind() {
	case reflect.Int, reflect.Int64, reflect.Int32:
		if raw == "" {
			return 0, nil
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return 0, nil
		}
		return int(value), nil
	case reflect.Float64, reflect.Float32:
		if raw == "" {
			return 0.0, nil
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return 0.0, nil
		}
		return value, nil
	default:
		return data, nil
	}
}

// Export renders the stock table as the JSON array Import accepts.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []StockItem{}
	}
	return json.MarshalIndent(items, "", "  ")
}
