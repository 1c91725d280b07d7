package services

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"catalog-import-service/internal/ingest"
	"catalog-import-service/internal/models"
)

func fullTemplate() *models.Template {
	tpl := chairsTemplate()
	tpl.ExportFields = nil
	return tpl
}

func TestExportColumns(t *testing.T) {
	assert.Equal(t, []string{"sku_internal", "color"}, ExportColumns(chairsTemplate()))
	assert.Equal(t,
		[]string{"sku_internal", "material", "released", "in_stock", "model_name", "price"},
		ExportColumns(fullTemplate()))

	tpl := chairsTemplate()
	tpl.ExportFields = []string{"price", "sku_internal"}
	assert.Equal(t, []string{"sku_internal", "price"}, ExportColumns(tpl))
}

func TestExport_RoundTripsAsNoOpUpdate(t *testing.T) {
	f := newImportFixture(fullTemplate())
	registry := NewTemplateRegistry(newMemoryTemplates(fullTemplate()), "", testLogger())
	exporter := NewExportService(registry, f.products, testLogger())

	f.products.seed(testCategory, "A1", models.Properties{
		"sku_internal": models.TextValue("A1"),
		"model_name":   models.TextValue("D5"),
		"price":        models.NumberValue(1250.5),
		"material":     models.TextValue("Oak"),
		"in_stock":     models.BoolValue(true),
		"released":     models.DateValue(time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)),
	})
	f.products.seed(testCategory, "A2", models.Properties{
		"model_name": models.TextValue("00123"),
		"price":      models.NumberValue(10),
	})
	f.products.seed("tables", "T1", models.Properties{"model_name": models.TextValue("other")})

	wb, count, err := exporter.Export(context.Background(), testCategory)
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, 2, count)

	rows, err := wb.GetRows(ProductsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ExportColumns(fullTemplate()), rows[0])
	assert.Equal(t, "A1", rows[1][0])
	assert.Equal(t, "A2", rows[2][0])

	released, _ := excelize.CoordinatesToCellName(3, 2)
	assert.Equal(t, "released", rows[0][2])
	assert.Equal(t, "2023-03-15", rows[1][2])
	raw, err := wb.GetCellValue(ProductsSheet, released, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	serial, err := strconv.ParseFloat(raw, 64)
	require.NoError(t, err)
	assert.InDelta(t, 45000, serial, 1e-6)
	cellType, err := wb.GetCellType(ProductsSheet, released)
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	assert.NotEqual(t, excelize.CellTypeInlineString, cellType)

	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	report, err := f.service.Import(context.Background(), ImportRequest{
		CategoryID: testCategory,
		FileName:   "export.xlsx",
		Data:       buf.Bytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 0, report.Invalid)
	assert.Equal(t, 0, f.products.updates)
}

func TestExport_TemplateNotFound(t *testing.T) {
	registry := NewTemplateRegistry(newMemoryTemplates(), "", testLogger())
	exporter := NewExportService(registry, newMemoryProducts(), testLogger())

	_, _, err := exporter.Export(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestBuildTemplateWorkbook(t *testing.T) {
	tpl := chairsTemplate()
	wb := BuildTemplateWorkbook(tpl)
	defer wb.Close()

	assert.Equal(t, []string{ProductsSheet, ingest.InstructionsSheet}, wb.GetSheetList())
	rows, err := wb.GetRows(ProductsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, tpl.FieldNames(), rows[0])

	wb.SetCellValue(ProductsSheet, "E2", "D5")
	wb.SetCellValue(ProductsSheet, "F2", 1000)
	data, err := wb.WriteToBuffer()
	require.NoError(t, err)

	f := newImportFixture()
	report, err := f.service.Import(context.Background(), ImportRequest{
		CategoryID: testCategory,
		FileName:   "template.xlsx",
		Data:       data.Bytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, report.UnmappedColumns)
	assert.Empty(t, report.MissingColumns)
}

func TestWriteTemplateCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplateCSV(&buf, chairsTemplate()))
	assert.Equal(t, "sku_internal,material,released,in_stock,model_name,price,color\n", buf.String())

	sheet, err := ingest.Parse(append(buf.Bytes(), []byte(",Oak,,,D5,1\n")...), "t.csv", "")
	require.NoError(t, err)
	assert.Len(t, sheet.Headers, 7)
}

func TestTemplateRegistry(t *testing.T) {
	repo := newMemoryTemplates()
	registry := NewTemplateRegistry(repo, "", testLogger())
	ctx := context.Background()

	err := registry.Save(ctx, &models.Template{CategoryID: testCategory, IsActive: true})
	assert.ErrorIs(t, err, models.ErrInvalidTemplate)

	tpl := &models.Template{CategoryID: testCategory, IsActive: true, RequiredFields: []string{"name"}}
	require.NoError(t, registry.Save(ctx, tpl))
	assert.Equal(t, models.DefaultIdentityField, tpl.IdentityField)

	got, err := registry.Resolve(ctx, testCategory)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, []string(got.RequiredFields))

	_, err = registry.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	custom := NewTemplateRegistry(newMemoryTemplates(&models.Template{CategoryID: "x", IsActive: true}), "article", testLogger())
	got, err = custom.Resolve(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "article", got.Identity())
}
