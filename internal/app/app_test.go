package app

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/pipeline"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.LoadConfig()
	cfg.Registry.Path = ""
	cfg.Journal.DSN = ""
	cfg.Report.Path = ""
	cfg.Archive.Bucket = ""
	cfg.OCR.Fallback = false
	cfg.Log.Dir = t.TempDir()
	return cfg
}

func TestBuildDefaults(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), pipeline.AllStages(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer a.Close()

	if got, want := a.Service.Payers(), []string{"NUEVA_EPS", "SANITAS"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Payers() = %v, want %v", got, want)
	}
	if a.Journal != nil {
		t.Error("journal opened without a DSN")
	}
}

func TestBuildWithJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.DSN = filepath.Join(t.TempDir(), "journal.db")

	a, err := Build(context.Background(), cfg, pipeline.AllStages(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.Journal == nil {
		t.Fatal("journal not opened")
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestBuildRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*common.Config)
	}{
		{"threshold", func(c *common.Config) { c.Classify.Threshold = 120 }},
		{"missing registry", func(c *common.Config) { c.Registry.Path = filepath.Join(t.TempDir(), "nope.yaml") }},
		{"workers", func(c *common.Config) { c.Server.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			if a, err := Build(context.Background(), cfg, pipeline.AllStages(), nil); err == nil {
				a.Close()
				t.Fatal("Build succeeded")
			}
		})
	}
}
