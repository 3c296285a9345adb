// Package ingest watches input roots and signals when new PDFs land.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/eps-docsorter/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, emit every root holding PDFs at start
	Debounce    time.Duration // coalesce bursts such as a folder being copied in
	// Ignore drops paths the caller produces itself. Pipeline intermediates
	// are always ignored.
	Ignore func(path string) bool
}

// StartWatcher emits a root each time PDFs settle somewhere beneath it.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 16)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			_ = w.Close()
			return nil, nil, err
		}
		hasPDF, err := addTree(w, abs)
		if err != nil {
			logger.Error("failed to add root directory", "root", abs, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
		roots = append(roots, abs)
		if cfg.InitialScan && hasPDF {
			evCh <- abs
		}
	}

	go func() {
		var (
			mu      sync.Mutex
			timer   *time.Timer
			pending = map[string]struct{}{}
			wg      sync.WaitGroup
		)
		defer close(errCh)
		defer func() {
			mu.Lock()
			if timer != nil && timer.Stop() {
				wg.Done()
			}
			mu.Unlock()
			wg.Wait()
			close(evCh)
		}()
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		flush := func() {
			defer wg.Done()
			mu.Lock()
			batch := make([]string, 0, len(pending))
			for r := range pending {
				batch = append(batch, r)
			}
			pending = map[string]struct{}{}
			mu.Unlock()
			for _, r := range batch {
				select {
				case evCh <- r:
				case <-ctx.Done():
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					if _, err := addTree(w, e.Name); err != nil {
						logger.Debug("could not watch new path", "path", e.Name, "error", err)
					}
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 || !relevant(e.Name, cfg.Ignore) {
					continue
				}
				root := rootOf(roots, e.Name)
				if root == "" {
					continue
				}
				mu.Lock()
				pending[root] = struct{}{}
				if timer != nil && timer.Stop() {
					wg.Done()
				}
				wg.Add(1)
				timer = time.AfterFunc(cfg.Debounce, flush)
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// addTree watches dir and every directory under it, skipping hidden ones,
// and reports whether any PDF was seen.
func addTree(w *fsnotify.Watcher, dir string) (bool, error) {
	hasPDF := false
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != dir && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if constants.IsPDF(path) {
			hasPDF = true
		}
		return nil
	})
	return hasPDF, err
}

// relevant filters out hidden files, non-PDFs and the pipeline's own intermediates.
func relevant(path string, ignore func(string) bool) bool {
	if !constants.IsPDF(path) || isHidden(path) {
		return false
	}
	base := filepath.Base(path)
	stem := constants.Stem(base)
	if strings.HasPrefix(base, constants.OriginalPrefix) ||
		strings.HasPrefix(base, constants.CombinedPrefix) ||
		strings.HasSuffix(stem, constants.SearchableSuffix) {
		return false
	}
	return ignore == nil || !ignore(path)
}

func rootOf(roots []string, path string) string {
	for _, r := range roots {
		rel, err := filepath.Rel(r, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return r
		}
	}
	return ""
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
