package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"szattr/internal"
)

// AttributeRow is one normalized attribute tagged with the record it came from.
type AttributeRow struct {
	RecordNo int
	internal.NormalizedAttribute
}

func ExportAttributesToXLSX(rows []AttributeRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{
		"record_no", "segment", "attr_id", "attribute", "ftype_code",
		"usage_type", "attr_value", "used_from_dt", "used_thru_dt",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.RecordNo)
		set(2, row.Segment)
		set(3, row.AttrID)
		set(4, row.Attribute)
		set(5, derefString(row.FeatureType))
		set(6, row.UsageType)
		set(7, row.Value)
		set(8, formatOptional(row.UsedFrom))
		set(9, formatOptional(row.UsedThru))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatOptional(v any) string {
	if v == nil {
		return ""
	}
	return internal.FormatValue(v)
}
