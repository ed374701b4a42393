// Package report exports the three sink files as one XLSX workbook.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/titlecheck/internal/recorder"
	"github.com/JakeFAU/titlecheck/internal/verify"
)

// SummarySheet lists row counts per sink.
const SummarySheet = "Summary"

var sheetNames = map[verify.Sink]string{
	verify.SinkMatched:    "Matched",
	verify.SinkFailed:     "Failed",
	verify.SinkBotBlocked: "Bot Blocked",
}

// SheetName returns the worksheet name used for sink.
func SheetName(sink verify.Sink) string {
	return sheetNames[sink]
}

// Counts holds rows per sink found while building a workbook.
type Counts map[verify.Sink]int

// Build reads the sink files at paths and writes a workbook to out.
// Missing sink files produce empty sheets.
func Build(paths recorder.Paths, out string) (Counts, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	counts := Counts{}
	for _, sink := range verify.Sinks {
		rows, err := recorder.ReadSink(paths.For(sink))
		if err != nil {
			return nil, err
		}
		counts[sink] = len(rows)
		if err := writeSheet(f, SheetName(sink), header, rows); err != nil {
			return nil, err
		}
	}
	if err := writeSummary(f, header, counts); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SummarySheet); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.SaveAs(out); err != nil {
		return nil, fmt.Errorf("save workbook %s: %w", out, err)
	}
	return counts, nil
}

func writeSheet(f *excelize.File, name string, headerStyle int, rows [][]string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	if err := setRow(f, name, 1, recorder.Header); err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("style sheet %s: %w", name, err)
	}
	for i, row := range rows {
		if err := setRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(name, "A", "C", 48); err != nil {
		return fmt.Errorf("size sheet %s: %w", name, err)
	}
	if err := f.SetColWidth(name, "E", "E", 40); err != nil {
		return fmt.Errorf("size sheet %s: %w", name, err)
	}
	return nil
}

func writeSummary(f *excelize.File, headerStyle int, counts Counts) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", SummarySheet, err)
	}
	if err := f.SetSheetRow(SummarySheet, "A1", &[]any{"Sink", "Rows"}); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	total := 0
	for i, sink := range verify.Sinks {
		total += counts[sink]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("summary cell: %w", err)
		}
		if err := f.SetSheetRow(SummarySheet, cell, &[]any{SheetName(sink), counts[sink]}); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	cell, err := excelize.CoordinatesToCellName(1, len(verify.Sinks)+2)
	if err != nil {
		return fmt.Errorf("summary cell: %w", err)
	}
	if err := f.SetSheetRow(SummarySheet, cell, &[]any{"Total", total}); err != nil {
		return fmt.Errorf("write summary total: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("row cell: %w", err)
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
