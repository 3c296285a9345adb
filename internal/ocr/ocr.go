// Package ocr turns image-only PDFs into searchable ones by shelling out to
// ocrmypdf, with an optional in-process Tesseract fallback (build tag "ocr").
package ocr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/eps-docsorter/internal/common"
)

type Config struct {
	OCRmyPDF string // binary name or absolute path; if empty -> "ocrmypdf"
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"

	Language    string // tesseract language(s), default "spa"
	Deskew      bool
	TessdataDir string
	DPI         int // rasterization DPI for the fallback recognizer, default 300

	Timeout time.Duration // per document; 0 = no limit
}

// Engine writes a searchable copy of in to out.
type Engine interface {
	MakeSearchable(ctx context.Context, in, out string) error
}

// OCRmyPDF is the Engine backed by the ocrmypdf CLI.
type OCRmyPDF struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func withDefaults(cfg Config) Config {
	if cfg.OCRmyPDF == "" {
		cfg.OCRmyPDF = "ocrmypdf"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Language == "" {
		cfg.Language = "spa"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return cfg
}

// NewOCRmyPDF builds the engine. A nil runner executes commands on the host.
func NewOCRmyPDF(cfg Config, runner Runner, logger *slog.Logger) *OCRmyPDF {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &OCRmyPDF{cfg: withDefaults(cfg), runner: runner, logger: logger}
}

// Args returns the ocrmypdf argument list for one conversion.
func (e *OCRmyPDF) Args(in, out string) []string {
	args := []string{"-l", e.cfg.Language}
	if e.cfg.Deskew {
		args = append(args, "--deskew")
	}
	return append(args, in, out)
}

// MakeSearchable runs ocrmypdf. On failure no partial output is left at out.
func (e *OCRmyPDF) MakeSearchable(ctx context.Context, in, out string) error {
	ctx, cancel := common.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	_, errb, err := e.runner.Run(ctx, e.cfg.OCRmyPDF, e.Args(in, out)...)
	if err != nil {
		_ = os.Remove(out)
		msg := strings.TrimSpace(string(errb))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "timed out after " + e.cfg.Timeout.String()
		}
		return common.NewAppError(common.KindOCR, in, "ocrmypdf failed: "+tail(msg, 512), err)
	}
	if _, err := os.Stat(out); err != nil {
		return common.NewAppError(common.KindOCR, in, "ocrmypdf produced no output", err)
	}
	e.logger.Info("ocr applied", "path", in, "output", out, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Recognizer reads text straight from page images without writing a PDF.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
	Close() error
}
