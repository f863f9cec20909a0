// Package report exports progress as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/prep-tracker/internal/progress"
)

// Sheet names, in workbook order.
const (
	SheetCoverage = "Coverage"
	SheetActivity = "Activity"
	SheetCalendar = "Last 30 Days"
)

// Filename is the suggested download name for a report taken on d.
func Filename(d progress.Date) string {
	return fmt.Sprintf("prep-report-%s.xlsx", d)
}

// Write renders summary and the full activity ledger into a workbook.
func Write(w io.Writer, summary progress.Summary, ledger progress.Ledger) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCoverage); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetActivity, SheetCalendar} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	coverage := [][]any{{"Subject", "Completed Days", "Total Days", "Percent"}}
	for _, s := range summary.Coverage.Subjects {
		coverage = append(coverage, []any{s.Name, s.CompletedDays, s.TotalDays, s.Percent})
	}
	c := summary.Coverage
	coverage = append(coverage, []any{"Total", c.CompletedDays, c.TotalDays, c.Percent})

	entries := slices.Clone(ledger)
	slices.SortStableFunc(entries, func(a, b progress.ActivityEntry) int {
		return strings.Compare(string(a.Date), string(b.Date))
	})
	activity := [][]any{{"Date", "Count"}}
	for _, e := range entries {
		activity = append(activity, []any{string(e.Date), e.Count})
	}

	calendar := [][]any{{"Date", "Active"}}
	for _, d := range summary.Calendar {
		calendar = append(calendar, []any{string(d.Date), d.Active})
	}

	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{SheetCoverage, coverage},
		{SheetActivity, activity},
		{SheetCalendar, calendar},
	} {
		if err := writeRows(f, sheet.name, sheet.rows, header); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	return nil
}
