package constants

import (
	"strconv"
	"strings"
)

// DocumentType is the payer-specific code a page is classified into
// (e.g. "FVS", "EPI", or "1" for payers that number their types).
type DocumentType string

func (t DocumentType) String() string { return string(t) }

// IsZero reports whether no type was assigned.
func (t DocumentType) IsZero() bool { return t == "" }

// ParseDocumentType normalizes a registry key into a DocumentType.
// Numeric keys keep their decimal form so "01" and "1" are the same code.
func ParseDocumentType(raw string) DocumentType {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
		return DocumentType(strconv.Itoa(n))
	}
	return DocumentType(raw)
}
