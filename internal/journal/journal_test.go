package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/group"
	"github.com/joseph-ayodele/eps-docsorter/internal/pipeline"
)

var _ pipeline.Journal = (*Store)(nil)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if err := s.StartRun(ctx, "run-1", "/data/in", "NUEVA_EPS"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	runs, err := s.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != constants.RunStatusRunning || runs[0].FinishedAt.Valid {
		t.Fatalf("runs = %+v", runs)
	}

	report := pipeline.Report{
		RunID:      "run-1",
		Root:       "/data/in",
		Payer:      "NUEVA_EPS",
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Merged: []group.MergedDocument{
			{Invoice: "46339", Type: "FVS", Path: "/data/in/ELE46339/FVS_890702241_ELE46339.pdf", Pages: 2, PatientID: "1234567"},
			{Invoice: "46339", Type: "EPI", Path: "/data/in/ELE46339/EPI_890702241_ELE46339.pdf", Pages: 1},
		},
	}
	if err := s.FinishRun(ctx, report, constants.RunStatusOK, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, _ = s.Runs(ctx, 10)
	if len(runs) != 1 || runs[0].Status != constants.RunStatusOK || !runs[0].FinishedAt.Valid {
		t.Fatalf("runs = %+v", runs)
	}
	docs, err := s.Documents(ctx, "run-1")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 || docs[0].DocType != "FVS" || docs[0].Pages != 2 || docs[0].PatientID != "1234567" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestFinishRunWithoutStart(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	report := pipeline.Report{RunID: "run-2", Root: "/x", Payer: "SANITAS"}
	if err := s.FinishRun(ctx, report, constants.RunStatusFailed, errors.New("boom")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	runs, _ := s.Runs(ctx, 0)
	if len(runs) != 1 || runs[0].Status != constants.RunStatusFailed || runs[0].Error != "boom" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestOpenReusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.db")
	ctx := context.Background()
	s, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.StartRun(ctx, "a", "/r", "P"); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if err := s.Ping(ctx, time.Second); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if runs, _ := s.Runs(ctx, 5); len(runs) != 1 {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: dialectPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind = %q", got)
	}
	lite := &Store{dialect: dialectSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("rebind = %q", got)
	}
}

func TestOpenEmptyDSN(t *testing.T) {
	if _, err := Open(context.Background(), " ", nil); err == nil {
		t.Fatal("expected error")
	}
}
