package render

import (
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/xuri/excelize/v2"

	"dues/internal/core"
)

const sheetName = "Expenses"

// Workbook renders rows as a single-sheet xlsx file. Days left is a number
// cell so the sheet can be sorted and filtered.
func Workbook(rows []core.Row, loc *time.Location) ([]byte, error) {
	xlsx := excelize.NewFile()
	defer xlsx.Close()

	_ = xlsx.SetAppProps(&excelize.AppProperties{
		Application: "dues",
		DocSecurity: 2,
	})

	sheet := xlsx.GetSheetName(xlsx.GetActiveSheetIndex())
	if err := xlsx.SetSheetName(sheet, sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sheet = sheetName

	_ = xlsx.SetColWidth(sheet, "A", "A", 30)
	_ = xlsx.SetColWidth(sheet, "B", "E", 15)
	_ = xlsx.SetColWidth(sheet, "F", "F", 35)

	for i, h := range Columns {
		_ = xlsx.SetCellValue(sheet, cell('A'+rune(i), 1), h)
	}
	style, err := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), thinBorder("bottom")))
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	_ = xlsx.SetCellStyle(sheet, cell('A', 1), cell('F', 1), style)

	for i, r := range rows {
		row := i + 2
		rec := Record(r, loc)
		_ = xlsx.SetCellValue(sheet, cell('A', row), rec[0])
		_ = xlsx.SetCellValue(sheet, cell('B', row), rec[1])
		_ = xlsx.SetCellValue(sheet, cell('C', row), r.NextDue.UTC().Format("2006-01-02"))
		_ = xlsx.SetCellInt(sheet, cell('D', row), r.DaysLeft)
		_ = xlsx.SetCellValue(sheet, cell('E', row), rec[4])
		_ = xlsx.SetCellValue(sheet, cell('F', row), rec[5])

		style, err := xlsx.NewStyle(severityStyle(r))
		if err != nil {
			return nil, fmt.Errorf("row style: %w", err)
		}
		_ = xlsx.SetCellStyle(sheet, cell('D', row), cell('E', row), style)
	}

	buf, err := xlsx.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func severityStyle(r core.Row) *excelize.Style {
	if r.IsPaid {
		return mergeStyles(defaultStyle(), fill("#C6EFCE"))
	}
	switch r.Severity() {
	case core.SeverityRed:
		return mergeStyles(defaultStyle(), fontBold(), fill("#FFC7CE"))
	case core.SeverityYellow:
		return mergeStyles(defaultStyle(), fill("#FFEB9C"))
	default:
		return defaultStyle()
	}
}

func cell(col rune, row int) string {
	return fmt.Sprintf("%c%d", col, row)
}

func defaultStyle() *excelize.Style {
	return &excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FFFFFF"},
			Pattern: 1,
		},
	}
}

func fill(color string) *excelize.Style {
	return &excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{color},
			Pattern: 1,
		},
	}
}

func fontBold() *excelize.Style {
	return &excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	}
}

func thinBorder(where ...string) *excelize.Style {
	s := &excelize.Style{}
	for _, w := range where {
		s.Border = append(s.Border, excelize.Border{
			Type:  w,
			Color: "#000000",
			Style: 1,
		})
	}
	return s
}

// mergeStyles folds later styles into the first; later values win.
func mergeStyles(ext ...*excelize.Style) *excelize.Style {
	if len(ext) == 0 {
		return nil
	}
	for _, e := range ext[1:] {
		_ = mergo.Merge(ext[0], e, mergo.WithOverride)
	}
	return ext[0]
}
