package constants

import (
	"path/filepath"
	"strconv"
	"strings"
)

// AllowedExtensions holds the file extensions the pipeline picks up.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// Filename markers written by the pipeline stages.
const (
	OriginalPrefix   = "original_"
	CombinedPrefix   = "combined_"
	PageInfix        = "_page_"
	SearchableSuffix = "_searchable"
	PDFExt           = ".pdf"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDF reports whether path has a .pdf extension, ignoring case.
func IsPDF(path string) bool {
	_, ok := AllowedExtensions[NormalizeExt(filepath.Ext(path))]
	return ok
}

// Stem returns path without its extension.
func Stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// PagePath is the deterministic name of page i (1-based) split out of src.
func PagePath(src string, i int) string {
	return Stem(src) + PageInfix + strconv.Itoa(i) + PDFExt
}

// SearchablePath is where the OCR'd copy of src is written.
func SearchablePath(src string) string {
	return Stem(src) + SearchableSuffix + PDFExt
}
