package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/group"
	"github.com/joseph-ayodele/eps-docsorter/internal/payer"
)

// Journal persists run history.
type Journal interface {
	StartRun(ctx context.Context, runID, root, payer string) error
	FinishRun(ctx context.Context, report Report, status constants.RunStatus, runErr error) error
}

// ReportWriter renders a finished run for humans and returns where it went.
type ReportWriter interface {
	WriteReport(report Report) (string, error)
}

// Archiver copies merged documents off the machine.
type Archiver interface {
	Upload(ctx context.Context, payer string, doc group.MergedDocument) error
}

// Service is the front-end boundary: a path and a payer name in, a
// human-readable error out.
type Service struct {
	registry  *payer.Registry
	processor *Processor
	journal   Journal
	reports   ReportWriter
	archiver  Archiver
	logger    *slog.Logger
}

type ServiceOption func(*Service)

func WithJournal(j Journal) ServiceOption { return func(s *Service) { s.journal = j } }
func WithReportWriter(w ReportWriter) ServiceOption { return func(s *Service) { s.reports = w } }
func WithArchiver(a Archiver) ServiceOption { return func(s *Service) { s.archiver = a } }

func NewService(registry *payer.Registry, processor *Processor, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{registry: registry, processor: processor, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Payers lists the payer names Process accepts.
func (s *Service) Payers() []string {
	return s.registry.Names()
}

// Process runs the pipeline over inputPath for payerName.
func (s *Service) Process(ctx context.Context, inputPath, payerName string) error {
	_, err := s.ProcessReport(ctx, inputPath, payerName)
	return err
}

// ProcessReport is Process that also returns the run report.
func (s *Service) ProcessReport(ctx context.Context, inputPath, payerName string) (Report, error) {
	root := common.CleanPath(inputPath)
	if root == "" {
		return Report{}, errors.New("input path is required")
	}
	profile, err := s.registry.Lookup(payerName)
	if err != nil {
		return Report{}, humanize(err)
	}

	runID := common.RunIDFromContext(ctx)
	if runID == "" {
		runID = common.NewRunID()
		ctx = common.WithRunID(ctx, runID)
	}
	ctx = common.WithPayer(ctx, profile.Name)
	logger := s.logger.With("run_id", runID, "payer", profile.Name)

	if s.journal != nil {
		if err := s.journal.StartRun(ctx, runID, root, profile.Name); err != nil {
			logger.Warn("journal start failed", "error", err)
		}
	}

	report, runErr := s.processor.Run(ctx, root, profile)
	report.RunID = runID

	if runErr == nil && s.archiver != nil {
		for _, doc := range report.Merged {
			if err := s.archiver.Upload(ctx, profile.Name, doc); err != nil {
				logger.Error("archive upload failed", "path", doc.Path, "error", err)
			}
		}
	}
	if s.reports != nil {
		if path, err := s.reports.WriteReport(report); err != nil {
			logger.Error("report write failed", "error", err)
		} else {
			logger.Info("report written", "path", path)
		}
	}
	if s.journal != nil {
		status := constants.RunStatusOK
		if runErr != nil {
			status = constants.RunStatusFailed
		}
		// The run context may already be cancelled; the journal row must still close.
		if err := s.journal.FinishRun(context.WithoutCancel(ctx), report, status, runErr); err != nil {
			logger.Warn("journal finish failed", "error", err)
		}
	}

	if runErr != nil {
		return report, humanize(runErr)
	}
	return report, nil
}

// humanize turns pipeline errors into messages fit for an operator.
func humanize(err error) error {
	var ae *common.AppError
	if !errors.As(err, &ae) {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("processing was cancelled: %w", err)
		}
		return fmt.Errorf("processing failed: %w", err)
	}
	var hint string
	switch ae.Kind {
	case common.KindConfig:
		hint = "check the payer registry and settings"
	case common.KindFormatting:
		hint = "the payer filename template is invalid"
	case common.KindFilesystem:
		hint = "check that the input folder exists and is writable"
	default:
		hint = "see error.log for details"
	}
	return fmt.Errorf("%s (%s): %w", strings.TrimSpace(ae.Message), hint, err)
}
