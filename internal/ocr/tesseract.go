//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Enabled reports whether the in-process recognizer was compiled in.
const Enabled = true

// Tesseract renders pages with pdftoppm and recognizes them with gosseract.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex // gosseract clients are not safe for concurrent use
	client *gosseract.Client
}

func NewRecognizer(cfg Config, runner Runner, logger *slog.Logger) (Recognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	cfg = withDefaults(cfg)

	client := gosseract.NewClient()
	if cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataDir); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(strings.Split(cfg.Language, "+")...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set language %q: %w", cfg.Language, err)
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger, client: client}, nil
}

func (t *Tesseract) Recognize(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "eps-pp-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	if _, errb, err := t.runner.Run(ctx, t.cfg.Pdftoppm, "-r", strconv.Itoa(t.cfg.DPI), "-png", path, prefix); err != nil {
		return "", fmt.Errorf("pdftoppm: %s: %w", tail(string(errb), 512), err)
	}

	// prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm rendered no pages for %s", path)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for _, img := range matches {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := t.client.SetImage(img); err != nil {
			t.logger.Warn("tesseract could not load page image", "path", path, "image", img, "error", err)
			continue
		}
		txt, err := t.client.Text()
		if err != nil {
			t.logger.Warn("tesseract failed", "path", path, "image", img, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(txt))
	}
	return b.String(), nil
}

func (t *Tesseract) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
