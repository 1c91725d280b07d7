package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"catalog-import-service/internal/ingest"
	"catalog-import-service/internal/models"
)

// BuildTemplateWorkbook generates a header-only workbook for the template.
// Required columns are marked by style only, so headers stay exact field names.
func BuildTemplateWorkbook(tpl *models.Template) *excelize.File {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", ProductsSheet)

	// Style for header row
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// Style for required columns
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	identity := tpl.Identity()
	names := tpl.FieldNames()
	for i, name := range names {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(ProductsSheet, cell, name)
		if tpl.IsRequired(name) && name != identity {
			f.SetCellStyle(ProductsSheet, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(ProductsSheet, cell, cell, headerStyle)
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(ProductsSheet, colName, colName, 20)
	}

	sheet := ingest.InstructionsSheet
	f.NewSheet(sheet)
	f.SetCellValue(sheet, "A1", fmt.Sprintf("Import template: %s", tpl.Name))
	f.SetCellValue(sheet, "A3", fmt.Sprintf("Leave %s empty to create a record; fill it to update that record.", identity))
	f.SetCellValue(sheet, "A4", "Blank cells on update keep the stored value.")
	f.SetCellValue(sheet, "A5", "Orange headers are required when creating a record.")

	f.SetCellValue(sheet, "A7", "Column")
	f.SetCellValue(sheet, "B7", "Display name")
	f.SetCellValue(sheet, "C7", "Required")
	f.SetCellValue(sheet, "D7", "Type")
	f.SetCellValue(sheet, "E7", "Options")

	for i, name := range names {
		row := i + 8
		field, _ := tpl.Field(name)
		required := "Optional"
		if tpl.IsRequired(name) && name != identity {
			required = "Required"
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), name)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), field.DisplayName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), required)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), string(field.Kind))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), strings.Join(field.Options, ", "))
	}

	f.SetColWidth(sheet, "A", "A", 25)
	f.SetColWidth(sheet, "B", "B", 30)
	f.SetColWidth(sheet, "C", "C", 15)
	f.SetColWidth(sheet, "D", "D", 15)
	f.SetColWidth(sheet, "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(ProductsSheet)
	f.SetActiveSheet(sheetIdx)
	return f
}

// WriteTemplateCSV writes the template header row as CSV
func WriteTemplateCSV(w io.Writer, tpl *models.Template) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tpl.FieldNames()); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
