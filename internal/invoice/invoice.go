// Package invoice derives billing identifiers from folder names and page text.
package invoice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reDigits    = regexp.MustCompile(`[0-9]+`)
	rePatientID = regexp.MustCompile(`(TI|CC|RC)-(\d{5,15})`)
)

// Extract returns the first run of digits in folderName, scanning left to right.
func Extract(folderName string) (string, bool) {
	m := reDigits.FindString(folderName)
	return m, m != ""
}

// PatientID finds an identity document number such as "CC-1234567" in page text.
// Whitespace is removed first because OCR tends to split the number.
func PatientID(text string) (string, bool) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	m := rePatientID.FindStringSubmatch(compact)
	if m == nil {
		return "", false
	}
	return m[2], true
}
