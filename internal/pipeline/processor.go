// Package pipeline runs the document sorting passes over an input tree:
// stabilize names, split into pages, resolve text (OCR), then group, merge
// and rename per invoice folder.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/group"
	"github.com/joseph-ayodele/eps-docsorter/internal/payer"
	"github.com/joseph-ayodele/eps-docsorter/internal/pdf"
	"github.com/joseph-ayodele/eps-docsorter/internal/resolve"
	"github.com/joseph-ayodele/eps-docsorter/internal/split"
)

// Stages selects which passes run. Order is fixed regardless of selection.
type Stages struct {
	Stabilize bool
	Split     bool
	Resolve   bool
	Merge     bool
}

// AllStages enables every pass.
func AllStages() Stages {
	return Stages{Stabilize: true, Split: true, Resolve: true, Merge: true}
}

func (s Stages) enabled(st constants.Stage) bool {
	switch st {
	case constants.StageStabilize:
		return s.Stabilize
	case constants.StageSplit:
		return s.Split
	case constants.StageResolve:
		return s.Resolve
	case constants.StageMerge:
		return s.Merge
	}
	return false
}

// StageReport is the outcome of one pass.
type StageReport struct {
	Stage constants.Stage
	Stats StageStats
}

// FileFailure records a file a pass gave up on.
type FileFailure struct {
	Stage constants.Stage
	Path  string
	Err   error
}

// Report summarizes a run.
type Report struct {
	RunID      string
	Root       string
	Payer      string
	StartedAt  time.Time
	FinishedAt time.Time
	Stages     []StageReport
	Merged     []group.MergedDocument
	Excluded   []group.Page
	Failures   []FileFailure
	OCRApplied int
}

// Processor owns one run at a time; it is not safe for concurrent Run calls.
type Processor struct {
	splitter  *split.Splitter
	resolver  *resolve.Resolver
	grouper   *group.Grouper
	extractor pdf.TextExtractor
	stages    Stages
	logger    *slog.Logger
}

type Option func(*Processor)

func WithStages(s Stages) Option {
	return func(p *Processor) { p.stages = s }
}

func NewProcessor(splitter *split.Splitter, resolver *resolve.Resolver, grouper *group.Grouper, extractor pdf.TextExtractor, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		splitter:  splitter,
		resolver:  resolver,
		grouper:   grouper,
		extractor: extractor,
		stages:    AllStages(),
		logger:    logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// run carries the state shared by the passes of one Run.
type run struct {
	*Processor
	root    string
	profile payer.Profile
	canon   *canonicalSet
	texts   map[string]string
	report  *Report
}

// Run processes root for profile. Per-file failures are logged and reported;
// the returned error is set only for fatal errors, cancellation or an
// unreadable root.
func (p *Processor) Run(ctx context.Context, root string, profile payer.Profile) (Report, error) {
	report := Report{
		RunID:     common.RunIDFromContext(ctx),
		Root:      root,
		Payer:     profile.Name,
		StartedAt: time.Now(),
	}
	info, err := os.Stat(root)
	if err != nil {
		return report, common.NewAppError(common.KindFilesystem, root, "input path not found", err)
	}
	if !info.IsDir() {
		return report, common.NewAppError(common.KindFilesystem, root, "input path is not a directory", common.ErrInvalidInput)
	}

	r := &run{
		Processor: p,
		root:      root,
		profile:   profile,
		canon:     newCanonicalSet(profile),
		texts:     make(map[string]string),
		report:    &report,
	}
	p.logger.Info("run started", "run_id", report.RunID, "root", root, "payer", profile.Name)

	passes := map[constants.Stage]func(context.Context) (StageStats, error){
		constants.StageStabilize: r.stabilize,
		constants.StageSplit:     r.split,
		constants.StageResolve:   r.resolve,
		constants.StageMerge:     r.groupMerge,
	}
	for _, st := range constants.Stages {
		if !p.stages.enabled(st) {
			p.logger.Debug("stage disabled", "stage", string(st))
			continue
		}
		start := time.Now()
		stats, err := passes[st](ctx)
		report.Stages = append(report.Stages, StageReport{Stage: st, Stats: stats})
		p.logger.Info("stage finished",
			"stage", string(st),
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"succeeded", stats.Succeeded,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if err != nil {
			report.FinishedAt = time.Now()
			p.logger.Error("run aborted", "stage", string(st), "error", err)
			return report, err
		}
	}
	report.FinishedAt = time.Now()
	p.logger.Info("run finished",
		"run_id", report.RunID,
		"merged", len(report.Merged),
		"excluded", len(report.Excluded),
		"failures", len(report.Failures),
	)
	return report, nil
}

func (r *run) fail(st constants.Stage, path string, err error) error {
	r.report.Failures = append(r.report.Failures, FileFailure{Stage: st, Path: path, Err: err})
	r.logger.Error("file failed", "stage", string(st), "path", path, "error", err)
	return err
}

// stabilize renames every working PDF to original_<name> so later passes see
// one naming scheme and finished outputs stay distinguishable.
func (r *run) stabilize(ctx context.Context) (StageStats, error) {
	return forEachWorkingPDF(ctx, r.root, r.canon, func(path string) error {
		base := filepath.Base(path)
		if strings.HasPrefix(base, constants.OriginalPrefix) {
			return errSkip
		}
		target := filepath.Join(filepath.Dir(path), constants.OriginalPrefix+base)
		if _, err := os.Stat(target); err == nil {
			return r.fail(constants.StageStabilize, path, common.NewAppError(common.KindFilesystem, path,
				"cannot rename, target exists: "+filepath.Base(target), os.ErrExist))
		}
		if err := os.Rename(path, target); err != nil {
			return r.fail(constants.StageStabilize, path, common.NewAppError(common.KindFilesystem, path, "rename", err))
		}
		r.logger.Info("file renamed", "path", path, "target", target)
		return nil
	})
}

// split replaces every multi-page PDF with its single pages.
func (r *run) split(ctx context.Context) (StageStats, error) {
	return forEachWorkingPDF(ctx, r.root, r.canon, func(path string) error {
		pages := r.splitter.Split(path)
		switch {
		case len(pages) == 0:
			return r.fail(constants.StageSplit, path, common.NewAppError(common.KindReadParse, path, "split produced no pages", common.ErrInvalidInput))
		case len(pages) == 1 && pages[0] == path:
			return errSkip
		}
		if err := os.Remove(path); err != nil {
			r.logger.Error("failed to remove split source", "path", path, "error",
				common.NewAppError(common.KindFilesystem, path, "remove split source", err))
		}
		return nil
	})
}

// resolve makes sure every page has text and caches it for groupMerge.
func (r *run) resolve(ctx context.Context) (StageStats, error) {
	return forEachWorkingPDF(ctx, r.root, r.canon, func(path string) error {
		res, err := r.resolver.Resolve(ctx, path)
		r.texts[res.Path] = res.Text
		if err != nil {
			return r.fail(constants.StageResolve, path, err)
		}
		if res.OCRApplied {
			r.report.OCRApplied++
		}
		return nil
	})
}

// groupMerge hands each folder's pages to the grouper, folder by folder.
func (r *run) groupMerge(ctx context.Context) (StageStats, error) {
	var (
		folders []string
		byDir   = make(map[string][]group.Page)
	)
	stats, err := forEachWorkingPDF(ctx, r.root, r.canon, func(path string) error {
		text, ok := r.texts[path]
		if !ok {
			t, err := r.extractor.ExtractText(ctx, path)
			if err != nil {
				r.logger.Warn("text extraction failed", "path", path, "error", err)
			}
			text = t
		}
		dir := filepath.Dir(path)
		if _, seen := byDir[dir]; !seen {
			folders = append(folders, dir)
		}
		byDir[dir] = append(byDir[dir], group.Page{Path: path, Folder: dir, Text: text})
		return nil
	})
	if err != nil {
		return stats, err
	}

	// Counted per page: a page succeeds when it ends up in a merged document.
	stats.Succeeded = 0
	for _, dir := range folders {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		merged, excluded, err := r.grouper.GroupAndMerge(ctx, dir, byDir[dir], r.profile)
		r.report.Merged = append(r.report.Merged, merged...)
		r.report.Excluded = append(r.report.Excluded, excluded...)
		if err != nil {
			return stats, fmt.Errorf("folder %s: %w", dir, err)
		}
		stats.Failed += uint32(len(excluded))
		stats.Succeeded += uint32(len(byDir[dir]) - len(excluded))
	}
	return stats, nil
}
