// Package app wires the pipeline and its optional sinks from configuration.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/eps-docsorter/internal/archive"
	"github.com/joseph-ayodele/eps-docsorter/internal/classify"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/export"
	"github.com/joseph-ayodele/eps-docsorter/internal/group"
	"github.com/joseph-ayodele/eps-docsorter/internal/journal"
	"github.com/joseph-ayodele/eps-docsorter/internal/ocr"
	"github.com/joseph-ayodele/eps-docsorter/internal/payer"
	"github.com/joseph-ayodele/eps-docsorter/internal/pdf"
	"github.com/joseph-ayodele/eps-docsorter/internal/pipeline"
	"github.com/joseph-ayodele/eps-docsorter/internal/resolve"
	"github.com/joseph-ayodele/eps-docsorter/internal/split"
)

// App is a fully wired pipeline service. Close releases every resource Build opened.
type App struct {
	Service  *pipeline.Service
	Registry *payer.Registry
	Journal  *journal.Store // nil when JOURNAL_DSN is unset

	closers []func() error
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires the pipeline. stages selects which passes run.
func Build(ctx context.Context, cfg *common.Config, stages pipeline.Stages, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry, err := payer.Load(cfg.Registry.Path)
	if err != nil {
		return nil, err
	}
	a := &App{Registry: registry}

	ocrCfg := ocr.Config{
		OCRmyPDF:    cfg.OCR.OCRmyPDF,
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Language:    cfg.OCR.Language,
		Deskew:      cfg.OCR.Deskew,
		TessdataDir: cfg.OCR.TessdataDir,
		Timeout:     cfg.OCR.Timeout,
	}
	var runnerOpts []ocr.RunnerOption
	if cfg.OCR.TessdataDir != "" {
		runnerOpts = append(runnerOpts, ocr.WithEnv("TESSDATA_PREFIX="+cfg.OCR.TessdataDir))
	}
	runner := ocr.NewExecRunner(logger, runnerOpts...)
	extractor := pdf.NewPlainText(logger)
	toolkit := pdf.NewToolkit(logger)

	var resolveOpts []resolve.Option
	if cfg.OCR.Fallback && ocr.Enabled {
		rec, err := ocr.NewRecognizer(ocrCfg, runner, logger)
		if err != nil {
			logger.Warn("tesseract fallback unavailable", "error", err)
		} else {
			a.closers = append(a.closers, rec.Close)
			resolveOpts = append(resolveOpts, resolve.WithRecognizer(rec))
		}
	}

	processor := pipeline.NewProcessor(
		split.New(toolkit, logger),
		resolve.New(extractor, ocr.NewOCRmyPDF(ocrCfg, runner, logger), logger, resolveOpts...),
		group.New(classify.NewClassifier(cfg.Classify.Threshold, logger), toolkit, toolkit, logger),
		extractor,
		logger,
		pipeline.WithStages(stages),
	)

	var svcOpts []pipeline.ServiceOption
	if cfg.Journal.DSN != "" {
		store, err := journal.Open(ctx, cfg.Journal.DSN, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Journal = store
		a.closers = append(a.closers, store.Close)
		svcOpts = append(svcOpts, pipeline.WithJournal(store))
	}
	if cfg.Report.Path != "" {
		svcOpts = append(svcOpts, pipeline.WithReportWriter(export.NewService(cfg.Report.Path, logger)))
	}
	if cfg.Archive.Bucket != "" {
		uploader, closeFn, err := archive.NewGCS(ctx, cfg.Archive.Bucket, logger, archive.WithTimeout(cfg.Archive.Timeout))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, closeFn)
		svcOpts = append(svcOpts, pipeline.WithArchiver(uploader))
	}

	a.Service = pipeline.NewService(registry, processor, logger, svcOpts...)
	logger.Info("pipeline ready",
		"payers", registry.Names(),
		"threshold", cfg.Classify.Threshold,
		"journal", a.Journal != nil,
		"report_dir", cfg.Report.Path,
		"archive_bucket", cfg.Archive.Bucket,
	)
	return a, nil
}
