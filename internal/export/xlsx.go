// Package export writes a human-readable spreadsheet rendition of an
// audit report alongside the machine-readable JSON.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"seoaudit/audit"
)

const (
	summarySheet = "Summary"
	pagesSheet   = "Pages"
)

// WriteXLSX writes the report as a workbook with a Summary sheet and a
// per-page Pages sheet.
func WriteXLSX(report audit.Report, path string) error {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeSummary(file, report); err != nil {
		return err
	}

	if err := writePages(file, report); err != nil {
		return err
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	return nil
}

func writeSummary(file *excelize.File, report audit.Report) error {
	rows := []struct {
		label string
		value any
	}{
		{label: "Site", value: report.Site},
		{label: "Generated", value: report.GeneratedAt},
		{label: "Pages crawled", value: report.Pages.Len()},
		{label: "Average score", value: AverageScore(report)},
		{label: "Pages with issues", value: pagesWithIssues(report)},
	}

	for i, row := range rows {
		labelCell := fmt.Sprintf("A%d", i+1)
		valueCell := fmt.Sprintf("B%d", i+1)

		if err := file.SetCellValue(summarySheet, labelCell, row.label); err != nil {
			return fmt.Errorf("summary cell %s: %w", labelCell, err)
		}
		if err := file.SetCellValue(summarySheet, valueCell, row.value); err != nil {
			return fmt.Errorf("summary cell %s: %w", valueCell, err)
		}
	}

	return nil
}

func writePages(file *excelize.File, report audit.Report) error {
	if _, err := file.NewSheet(pagesSheet); err != nil {
		return fmt.Errorf("create pages sheet: %w", err)
	}

	headers := []string{"URL", "Status", "Score", "PageSpeed", "Reasons", "Words", "Internal links"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(pagesSheet, cell, header); err != nil {
			return fmt.Errorf("pages header %s: %w", cell, err)
		}
	}

	for rowIdx, pageURL := range report.Pages.URLs() {
		page, _ := report.Pages.Get(pageURL)

		values := pageRow(page)
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if value == nil {
				continue
			}
			if err := file.SetCellValue(pagesSheet, cell, value); err != nil {
				return fmt.Errorf("pages cell %s: %w", cell, err)
			}
		}
	}

	return nil
}

func pageRow(page audit.Page) []any {
	row := []any{page.URL, page.Status, nil, nil, nil, nil, nil}

	if page.Scores != nil {
		row[2] = page.Scores.Score
		if page.Scores.PageSpeed != nil {
			row[3] = *page.Scores.PageSpeed
		}
		if len(page.Scores.Reasons) > 0 {
			row[4] = strings.Join(page.Scores.Reasons, ", ")
		} else {
			row[4] = "none"
		}
	} else if page.Error != "" {
		row[4] = page.Error
	}

	if page.Signals != nil {
		row[5] = page.Signals.WordCount
		row[6] = page.Signals.InternalLinkCount
	}

	return row
}

// AverageScore returns the mean heuristic score across scored pages to
// one decimal place, or 0 when nothing was scored.
func AverageScore(report audit.Report) float64 {
	sum := 0
	count := 0

	for _, pageURL := range report.Pages.URLs() {
		page, _ := report.Pages.Get(pageURL)
		if page.Scores == nil {
			continue
		}

		sum += page.Scores.Score
		count++
	}

	if count == 0 {
		return 0
	}

	return math.Round(float64(sum)/float64(count)*10) / 10
}

func pagesWithIssues(report audit.Report) int {
	count := 0
	for _, pageURL := range report.Pages.URLs() {
		page, _ := report.Pages.Get(pageURL)
		if page.Scores != nil && len(page.Scores.Reasons) > 0 {
			count++
		}
	}

	return count
}
