// Package export は応募管理の内容をファイルに書き出す。
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/jobassist/internal/model"
)

const (
	trackerSheet = "Tracker"
	summarySheet = "Summary"
)

var trackerHeaders = []string{"Title", "Company", "Location", "Status", "Salary", "Posted", "Source URL", "Notes"}

// statusColors はステータスごとの行の背景色。
var statusColors = map[model.ApplicationStatus]string{
	model.StatusSaved:        "DDEBF7",
	model.StatusApplied:      "FFEB9C",
	model.StatusInterviewing: "E2D5F0",
	model.StatusOffer:        "C6EFCE",
	model.StatusRejected:     "FFC7CE",
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// TrackerWorkbook は応募管理の一覧とステータス集計を含む .xlsx を生成する。
func TrackerWorkbook(jobs []model.TrackedJob, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", trackerSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	if err := writeTrackerSheet(f, jobs); err != nil {
		return nil, fmt.Errorf("failed to write tracker sheet: %w", err)
	}
	if err := writeSummarySheet(f, jobs, generatedAt); err != nil {
		return nil, fmt.Errorf("failed to write summary sheet: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTrackerSheet(f *excelize.File, jobs []model.TrackedJob) error {
	widths := map[string]float64{"A": 32, "B": 24, "C": 20, "D": 14, "E": 18, "F": 16, "G": 40, "H": 50}
	for col, w := range widths {
		if err := f.SetColWidth(trackerSheet, col, col, w); err != nil {
			return err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}
	for i, h := range trackerHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(trackerSheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(trackerSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	rowStyles := make(map[model.ApplicationStatus]int, len(statusColors))
	for status, color := range statusColors {
		style, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
			Border:    thinBorder,
		})
		if err != nil {
			return err
		}
		rowStyles[status] = style
	}

	for i, tj := range jobs {
		row := i + 2
		values := []any{tj.Title, tj.Company, tj.Location, string(tj.Status), tj.Salary, tj.PostedDate, tj.SourceURL, tj.Notes}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(trackerSheet, start, &values); err != nil {
			return err
		}
		end, _ := excelize.CoordinatesToCellName(len(trackerHeaders), row)
		if style, ok := rowStyles[tj.Status]; ok {
			if err := f.SetCellStyle(trackerSheet, start, end, style); err != nil {
				return err
			}
		}
		if tj.SourceURL != "" {
			link := fmt.Sprintf("G%d", row)
			if err := f.SetCellHyperLink(trackerSheet, link, tj.SourceURL, "External"); err != nil {
				return err
			}
		}
	}

	if len(jobs) > 0 {
		ref := fmt.Sprintf("A1:H%d", len(jobs)+1)
		if err := f.AutoFilter(trackerSheet, ref, []excelize.AutoFilterOptions{}); err != nil {
			return err
		}
	}
	return f.SetPanes(trackerSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummarySheet(f *excelize.File, jobs []model.TrackedJob, generatedAt time.Time) error {
	if err := f.SetColWidth(summarySheet, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 24); err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	counts := make(map[model.ApplicationStatus]int, len(model.ApplicationStatuses))
	for _, tj := range jobs {
		counts[tj.Status]++
	}

	rows := [][]any{
		{"Generated", generatedAt.Format("2006-01-02 15:04:05")},
		{"Total tracked", len(jobs)},
		{},
	}
	for _, status := range model.ApplicationStatuses {
		rows = append(rows, []any{string(status), counts[status]})
	}

	for i, r := range rows {
		row := i + 1
		if len(r) == 0 {
			continue
		}
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
			return err
		}
		if err := f.SetCellStyle(summarySheet, cell, cell, labelStyle); err != nil {
			return err
		}
	}
	return nil
}
