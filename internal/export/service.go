// Package export renders run reports as XLSX workbooks.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/pipeline"
)

const (
	sheetDocuments = "Documents"
	sheetExcluded  = "Excluded"
	sheetStages    = "Stages"
)

// Service writes one workbook per run into dir.
type Service struct {
	dir    string
	logger *slog.Logger
}

func NewService(dir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dir: dir, logger: logger}
}

// WriteReport implements pipeline.ReportWriter.
func (s *Service) WriteReport(report pipeline.Report) (string, error) {
	b, err := s.BuildXLSX(report)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(s.dir, FileName(report))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// FileName is the workbook name for a run.
func FileName(report pipeline.Report) string {
	id := report.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	ts := report.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("eps-report-%s-%s.xlsx", ts.Format("20060102-150405"), id)
}

// BuildXLSX returns the workbook bytes: merged documents, excluded pages and
// per-stage counters on separate sheets.
func (s *Service) BuildXLSX(report pipeline.Report) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// The default sheet becomes the documents sheet.
	if err := f.SetSheetName("Sheet1", sheetDocuments); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetExcluded, sheetStages} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	idx, _ := f.GetSheetIndex(sheetDocuments)
	f.SetActiveSheet(idx)

	docs := [][]any{{"Invoice", "Document Type", "File", "Pages", "Members", "Patient ID", "Path"}}
	for _, d := range report.Merged {
		docs = append(docs, []any{d.Invoice, d.Type.String(), filepath.Base(d.Path), d.Pages, len(d.Members), d.PatientID, d.Path})
	}
	excluded := [][]any{{"Folder", "File", "Invoice", "Reason", "Detail"}}
	for _, p := range report.Excluded {
		excluded = append(excluded, []any{filepath.Base(p.Folder), filepath.Base(p.Path), p.Invoice, string(common.KindOf(p.Err)), errString(p.Err)})
	}
	for _, fl := range report.Failures {
		excluded = append(excluded, []any{filepath.Base(filepath.Dir(fl.Path)), filepath.Base(fl.Path), "", string(fl.Stage) + ": " + string(common.KindOf(fl.Err)), errString(fl.Err)})
	}
	stages := [][]any{{"Stage", "Scanned", "Matched", "Succeeded", "Skipped", "Failed"}}
	for _, st := range report.Stages {
		stages = append(stages, []any{string(st.Stage), st.Stats.Scanned, st.Stats.Matched, st.Stats.Succeeded, st.Stats.Skipped, st.Stats.Failed})
	}

	for sheet, rows := range map[string][][]any{sheetDocuments: docs, sheetExcluded: excluded, sheetStages: stages} {
		if err := writeRows(f, sheet, rows); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(sheetDocuments, "A", "B", 14)
	_ = f.SetColWidth(sheetDocuments, "C", "C", 34)
	_ = f.SetColWidth(sheetDocuments, "D", "F", 12)
	_ = f.SetColWidth(sheetDocuments, "G", "G", 60)
	_ = f.SetColWidth(sheetExcluded, "A", "C", 20)
	_ = f.SetColWidth(sheetExcluded, "D", "D", 24)
	_ = f.SetColWidth(sheetExcluded, "E", "E", 80)
	_ = f.SetColWidth(sheetStages, "A", "A", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("report built",
		"run_id", report.RunID,
		"documents", len(report.Merged),
		"excluded", len(report.Excluded)+len(report.Failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return truncate(err.Error(), 500)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
