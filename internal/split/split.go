// Package split breaks multi-page PDFs into one file per page.
package split

import (
	"log/slog"
	"os"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/pdf"
)

type Splitter struct {
	pager  pdf.Pager
	logger *slog.Logger
}

func New(pager pdf.Pager, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{pager: pager, logger: logger}
}

// Split writes <stem>_page_<i>.pdf for every page of path and returns them in
// page order. A single-page document is returned as is. On any failure the
// pages written so far are removed and nil is returned; path is never touched.
func (s *Splitter) Split(path string) []string {
	n, err := s.pager.PageCount(path)
	if err != nil {
		s.logger.Error("split failed", "path", path, "error",
			common.NewAppError(common.KindReadParse, path, "count pages", err))
		return nil
	}
	if n < 1 {
		s.logger.Error("split failed", "path", path, "error",
			common.NewAppError(common.KindReadParse, path, "document has no pages", common.ErrInvalidInput))
		return nil
	}
	if n == 1 {
		s.logger.Info("skipping split for single-page pdf", "path", path)
		return []string{path}
	}

	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		dst := constants.PagePath(path, i)
		if err := s.pager.WritePage(path, i, dst); err != nil {
			s.logger.Error("split failed", "path", path, "page", i, "error",
				common.NewAppError(common.KindReadParse, path, "write page", err))
			s.cleanup(out)
			return nil
		}
		out = append(out, dst)
	}
	s.logger.Info("pdf split", "path", path, "pages", n)
	return out
}

func (s *Splitter) cleanup(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove partial page", "path", p, "error", err)
		}
	}
}
