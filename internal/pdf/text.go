package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// PlainText extracts text with ledongthuc/pdf, page by page.
type PlainText struct {
	logger *slog.Logger
}

func NewPlainText(logger *slog.Logger) *PlainText {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlainText{logger: logger}
}

// ExtractText returns the text of every page joined by newlines. A document
// without a text layer yields "" and no error; a malformed one yields an error.
func (p *PlainText) ExtractText(ctx context.Context, path string) (text string, err error) {
	// The parser panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read %s: parser panic: %v", path, r)
		}
	}()

	f, r, err := lpdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not read PDF %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		s, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("page text extraction failed", "path", path, "page", i, "error", err)
			continue
		}
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
