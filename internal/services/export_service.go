package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

// ProductsSheet is the data sheet name of generated workbooks
const ProductsSheet = "Products"

// ExportDateFormat is the number format of exported date cells
const ExportDateFormat = "yyyy-mm-dd"

// ExportService writes a category's records to a workbook that re-imports as an update
type ExportService struct {
	templates *TemplateRegistry
	products  repository.ProductRepositoryInterface
	logger    *logrus.Entry
}

func NewExportService(templates *TemplateRegistry, products repository.ProductRepositoryInterface, logger *logrus.Logger) *ExportService {
	return &ExportService{
		templates: templates,
		products:  products,
		logger:    logger.WithField("component", "export"),
	}
}

// ExportColumns lists the export header: the template's export fields, or every
// known field when none are set. The identity field always comes first.
func ExportColumns(tpl *models.Template) []string {
	identity := tpl.Identity()
	cols := []string{identity}
	source := []string(tpl.ExportFields)
	if len(source) == 0 {
		source = tpl.FieldNames()
	}
	for _, name := range source {
		if name != identity {
			cols = append(cols, name)
		}
	}
	return cols
}

// Export builds the workbook for a category. The caller closes the file.
func (s *ExportService) Export(ctx context.Context, categoryID string) (*excelize.File, int, error) {
	tpl, err := s.templates.Resolve(ctx, categoryID)
	if err != nil {
		return nil, 0, err
	}
	records, err := s.products.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load records for category %s: %w", categoryID, err)
	}

	cols := ExportColumns(tpl)
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", ProductsSheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	for i, name := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(ProductsSheet, cell, name)
		f.SetCellStyle(ProductsSheet, cell, cell, headerStyle)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(ProductsSheet, colName, colName, 20)
	}

	dateFormat := ExportDateFormat
	dateStyle, _ := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFormat})

	identity := tpl.Identity()
	for r, rec := range records {
		for i, name := range cols {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if name == identity {
				f.SetCellValue(ProductsSheet, cell, rec.InternalSKU)
				continue
			}
			v, ok := rec.Properties[name]
			if !ok || v.IsZero() {
				continue
			}
			switch v.Kind {
			case models.ValueNumber:
				f.SetCellValue(ProductsSheet, cell, v.Number)
			case models.ValueBool:
				f.SetCellValue(ProductsSheet, cell, v.Bool)
			case models.ValueDate:
				f.SetCellValue(ProductsSheet, cell, *v.Date)
				f.SetCellStyle(ProductsSheet, cell, cell, dateStyle)
			default:
				f.SetCellValue(ProductsSheet, cell, v.String())
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"category_id": categoryID,
		"records":     len(records),
		"columns":     len(cols),
	}).Info("Export built")
	return f, len(records), nil
}
