package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImportExportRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	payload := `[
		{"id": "AK-1", "sku": "AK-1", "name": "Akku 12V", "system": "Stapler", "category": "Energie", "stockLevel": 4, "minStock": 2, "capacityAh": 7.5},
		{"sku": "FL-9", "name": "Filter", "stockLevel": "12", "minStock": "3", "warehouseLocation": "R2"}
	]`

	result, err := svc.Import(ctx, []byte(payload))
	require.NoError(t, err)
	require.Equal(t, 2, result.Imported)

	exported, err := svc.Export(ctx)
	require.NoError(t, err)

	other, _ := newTestService(t)
	_, err = other.Import(ctx, exported)
	require.NoError(t, err)

	before, err := svc.List(ctx)
	require.NoError(t, err)
	after, err := other.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		require.Equal(t, before[i].SKU, after[i].SKU)
		require.Equal(t, before[i].StockLevel, after[i].StockLevel)
		require.Equal(t, before[i].MinStock, after[i].MinStock)
	}

	akku, err := svc.FindBySKU(ctx, "AK-1")
	require.NoError(t, err)
	require.True(t, akku.IsAkku)
	require.Equal(t, ItemStatusActive, akku.Status)
	filter, err := svc.FindBySKU(ctx, "FL-9")
	require.NoError(t, err)
	require.Equal(t, "FL-9", filter.ID)
	require.False(t, filter.IsAkku)
	require.Equal(t, 12, filter.StockLevel)
}

func TestImportRejectsNonArray(t *testing.T) {
	svc, _ := newTestService(t, StockItem{ID: "KEEP", SKU: "KEEP", StockLevel: 1})
	ctx := context.Background()

	_, err := svc.Import(ctx, []byte(`{"sku": "X"}`))
	require.ErrorIs(t, err, ErrImportNotArray)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "KEEP", items[0].SKU)
}

func TestImportRejectsMissingSKUOnFirstRecord(t *testing.T) {
	svc, _ := newTestService(t, StockItem{ID: "KEEP", SKU: "KEEP"})
	ctx := context.Background()

	_, err := svc.Import(ctx, []byte(`[{"name": "no sku"}, {"sku": "X"}]`))
	require.ErrorIs(t, err, ErrImportMissingSKU)

	_, err = svc.Import(ctx, []byte(`[]`))
	require.ErrorIs(t, err, ErrImportEmpty)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestImportAcceptsGermanColumnsAndDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	payload := `[
		{"Artikelnummer": "D-1", "Bezeichnung": "Dichtung", "Bestand": "-4", "Mindestbestand": "", "Kapazität (Ah)": "0"},
		{"Artikelnummer": "", "Bezeichnung": "leer"},
		{"Artikelnummer": "D-1", "Bezeichnung": "doppelt"}
	]`

	result, err := svc.Import(ctx, []byte(payload))
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 2, result.Skipped)

	item, err := svc.FindBySKU(ctx, "D-1")
	require.NoError(t, err)
	require.Equal(t, "Dichtung", item.Name)
	require.Equal(t, 0, item.StockLevel)
	require.Equal(t, 0, item.MinStock)
}

func TestExportEmptyTableIsArray(t *testing.T) {
	svc, _ := newTestService(t)
	raw, err := svc.Export(context.Background())
	require.NoError(t, err)
	var decoded []any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Empty(t, decoded)
}
