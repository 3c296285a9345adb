package export

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/group"
	"github.com/joseph-ayodele/eps-docsorter/internal/pipeline"
)

var _ pipeline.ReportWriter = (*Service)(nil)

func sampleReport() pipeline.Report {
	return pipeline.Report{
		RunID:     "0123456789abcdef",
		StartedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Stages: []pipeline.StageReport{
			{Stage: constants.StageSplit, Stats: pipeline.StageStats{Scanned: 4, Matched: 3, Succeeded: 1, Skipped: 2}},
		},
		Merged: []group.MergedDocument{
			{Invoice: "46339", Type: "FVS", Path: "/in/ELE46339/FVS_890702241_ELE46339.pdf", Pages: 2, Members: []string{"a", "b"}, PatientID: "1234567"},
		},
		Excluded: []group.Page{
			{Path: "/in/ELE46339/original_x.pdf", Folder: "/in/ELE46339", Invoice: "46339",
				Err: common.NewAppError(common.KindUnclassified, "/in/ELE46339/original_x.pdf", "no document type matched", common.ErrNoMatch)},
		},
		Failures: []pipeline.FileFailure{
			{Stage: constants.StageResolve, Path: "/in/ELE1/scan.pdf", Err: common.NewAppError(common.KindOCR, "", "ocrmypdf failed", errors.New("exit 2"))},
		},
	}
}

func TestBuildXLSX(t *testing.T) {
	b, err := NewService(t.TempDir(), nil).BuildXLSX(sampleReport())
	if err != nil {
		t.Fatalf("BuildXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetDocuments)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "46339" || rows[1][2] != "FVS_890702241_ELE46339.pdf" || rows[1][3] != "2" {
		t.Errorf("documents = %v", rows)
	}

	rows, _ = f.GetRows(sheetExcluded)
	if len(rows) != 3 {
		t.Fatalf("excluded = %v", rows)
	}
	if rows[1][3] != "unclassified" || rows[2][3] != "resolve: ocr" {
		t.Errorf("reasons = %q, %q", rows[1][3], rows[2][3])
	}

	rows, _ = f.GetRows(sheetStages)
	if len(rows) != 2 || rows[1][0] != "split" || rows[1][5] != "0" {
		t.Errorf("stages = %v", rows)
	}
}

func TestWriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := NewService(dir, nil).WriteReport(sampleReport())
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if filepath.Base(path) != "eps-report-20240301-100000-01234567.xlsx" {
		t.Errorf("path = %s", path)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	_ = f.Close()
}
