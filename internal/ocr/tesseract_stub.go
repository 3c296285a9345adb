//go:build !ocr

package ocr

import (
	"errors"
	"log/slog"
)

// Enabled reports whether the in-process recognizer was compiled in.
const Enabled = false

// ErrNotEnabled is returned when the recognizer was not compiled in.
// Rebuild with -tags ocr (requires the Tesseract C library).
var ErrNotEnabled = errors.New("tesseract recognizer not enabled; rebuild with -tags ocr")

// NewRecognizer always fails without the "ocr" build tag.
func NewRecognizer(Config, Runner, *slog.Logger) (Recognizer, error) {
	return nil, ErrNotEnabled
}
