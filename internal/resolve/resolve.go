// Package resolve guarantees each page has text, running OCR when the PDF
// carries no text layer.
package resolve

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/ocr"
	"github.com/joseph-ayodele/eps-docsorter/internal/pdf"
	"github.com/joseph-ayodele/eps-docsorter/internal/textnorm"
)

// Result is the file that now represents the page and its text.
type Result struct {
	Path       string
	Text       string
	OCRApplied bool
}

type Resolver struct {
	extractor  pdf.TextExtractor
	engine     ocr.Engine
	recognizer ocr.Recognizer
	logger     *slog.Logger
}

type Option func(*Resolver)

// WithRecognizer adds a last-resort recognizer used when ocrmypdf fails or
// yields no text. The file on disk is left unchanged in that case.
func WithRecognizer(r ocr.Recognizer) Option {
	return func(res *Resolver) { res.recognizer = r }
}

func New(extractor pdf.TextExtractor, engine ocr.Engine, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{extractor: extractor, engine: engine, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the page's text. When path has none, a searchable copy is
// written to <stem>_searchable.pdf and path is removed once that copy exists.
// On OCR failure the page stays where it is and an ocr AppError is returned.
func (r *Resolver) Resolve(ctx context.Context, path string) (Result, error) {
	text, err := r.extractor.ExtractText(ctx, path)
	if err == nil && !textnorm.IsBlank(text) {
		return Result{Path: path, Text: text}, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return Result{Path: path}, ctx.Err()
		}
		r.logger.Warn("text extraction failed, trying ocr", "path", path, "error", err)
	} else {
		r.logger.Info("no embedded text, applying ocr", "path", path)
	}

	if strings.HasSuffix(constants.Stem(path), constants.SearchableSuffix) {
		// Already an OCR output; running it again would not add text.
		return r.fallback(ctx, path, common.NewAppError(common.KindOCR, path, "searchable copy has no text", common.ErrNoText))
	}

	out := constants.SearchablePath(path)
	if res, ok := r.reuse(ctx, path, out); ok {
		return res, nil
	}

	if err := r.engine.MakeSearchable(ctx, path, out); err != nil {
		return r.fallback(ctx, path, err)
	}
	r.removeInput(path)

	text, err = r.extractor.ExtractText(ctx, out)
	if err != nil || textnorm.IsBlank(text) {
		r.logger.Warn("ocr output has no text", "path", out, "error", err)
		if r.recognizer != nil {
			if t, rerr := r.recognizer.Recognize(ctx, out); rerr == nil && !textnorm.IsBlank(t) {
				text = t
			}
		}
	}
	return Result{Path: out, Text: text, OCRApplied: true}, nil
}

// reuse picks up a searchable copy left by an interrupted run.
func (r *Resolver) reuse(ctx context.Context, path, out string) (Result, bool) {
	if _, err := os.Stat(out); err != nil {
		return Result{}, false
	}
	text, err := r.extractor.ExtractText(ctx, out)
	if err != nil || textnorm.IsBlank(text) {
		r.logger.Warn("discarding unusable searchable copy", "path", out, "error", err)
		if err := os.Remove(out); err != nil {
			r.logger.Warn("failed to remove searchable copy", "path", out, "error", err)
		}
		return Result{}, false
	}
	r.logger.Info("reusing searchable copy", "path", out)
	r.removeInput(path)
	return Result{Path: out, Text: text, OCRApplied: true}, true
}

func (r *Resolver) fallback(ctx context.Context, path string, cause error) (Result, error) {
	if r.recognizer != nil {
		text, err := r.recognizer.Recognize(ctx, path)
		if err == nil && !textnorm.IsBlank(text) {
			r.logger.Warn("ocrmypdf unavailable for page, used recognizer text", "path", path, "cause", cause)
			return Result{Path: path, Text: text}, nil
		}
		if err != nil {
			r.logger.Warn("recognizer failed", "path", path, "error", err)
		}
	}
	return Result{Path: path}, cause
}

func (r *Resolver) removeInput(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.logger.Error("failed to remove ocr input", "path", path, "error",
			common.NewAppError(common.KindFilesystem, path, "remove after ocr", err))
	}
}
