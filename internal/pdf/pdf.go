// Package pdf wraps the PDF libraries the pipeline needs: page counting,
// single-page extraction and merging through pdfcpu, text extraction through
// ledongthuc/pdf.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// TextExtractor returns the embedded text of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Pager counts pages and writes a single page out as its own document.
type Pager interface {
	PageCount(path string) (int, error)
	WritePage(src string, page int, dst string) error
}

// Merger concatenates PDFs into one output, in input order.
type Merger interface {
	Merge(inputs []string, out string) error
}

func init() {
	// pdfcpu would otherwise create a config dir under the user's home.
	api.DisableConfigDir()
}

// Toolkit implements Pager and Merger on top of pdfcpu.
type Toolkit struct {
	logger *slog.Logger
}

func NewToolkit(logger *slog.Logger) *Toolkit {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolkit{logger: logger}
}

// conf returns a fresh configuration per call since pdfcpu mutates it during processing.
func conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = model.ValidationRelaxed
	return c
}

func (t *Toolkit) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages of %s: %w", path, err)
	}
	return n, nil
}

func (t *Toolkit) WritePage(src string, page int, dst string) error {
	if page < 1 {
		return fmt.Errorf("invalid page number %d", page)
	}
	if err := api.TrimFile(src, dst, []string{strconv.Itoa(page)}, conf()); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("extract page %d of %s: %w", page, src, err)
	}
	t.logger.Debug("page written", "source", src, "page", page, "output", dst)
	return nil
}

func (t *Toolkit) Merge(inputs []string, out string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("merge %s: no inputs", out)
	}
	if err := api.MergeCreateFile(inputs, out, false, conf()); err != nil {
		_ = os.Remove(out)
		return fmt.Errorf("merge into %s: %w", out, err)
	}
	t.logger.Debug("pdf merged", "output", out, "inputs", len(inputs))
	return nil
}
