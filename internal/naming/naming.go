// Package naming renders payer filename templates such as
// "{file_type}_{NIT}_{PREFIX}{invoice}.pdf".
package naming

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/eps-docsorter/constants"
)

// Template field names.
const (
	FieldFileType = "file_type"
	FieldNIT      = "NIT"
	FieldPrefix   = "PREFIX"
	FieldSuffix   = "SUFFIX"
	FieldInvoice  = "invoice"
)

// KnownFields lists every field a template may reference.
var KnownFields = []string{FieldFileType, FieldNIT, FieldPrefix, FieldSuffix, FieldInvoice}

// FormattingError reports a template that cannot be rendered. It signals a
// configuration defect, so callers propagate it instead of skipping a file.
type FormattingError struct {
	Template string
	Field    string
	Reason   string
}

func (e *FormattingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("filename template %q: field %q: %s", e.Template, e.Field, e.Reason)
	}
	return fmt.Sprintf("filename template %q: %s", e.Template, e.Reason)
}

// Fields are the values substituted into a template.
type Fields struct {
	FileType constants.DocumentType
	NIT      string
	Prefix   string
	Suffix   string
	Invoice  string
}

func (f Fields) lookup(name string) (string, bool) {
	switch name {
	case FieldFileType:
		return f.FileType.String(), true
	case FieldNIT:
		return f.NIT, true
	case FieldPrefix:
		return f.Prefix, true
	case FieldSuffix:
		return f.Suffix, true
	case FieldInvoice:
		return f.Invoice, true
	}
	return "", false
}

// Render substitutes f into tmpl. "{{" and "}}" produce literal braces.
func Render(tmpl string, f Fields) (string, error) {
	var b strings.Builder
	err := walk(tmpl, func(lit string) {
		b.WriteString(lit)
	}, func(field string) error {
		v, ok := f.lookup(field)
		if !ok {
			return &FormattingError{Template: tmpl, Field: field, Reason: "unknown field"}
		}
		b.WriteString(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Validate checks that tmpl is well formed and references only known fields.
func Validate(tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return &FormattingError{Template: tmpl, Reason: "empty template"}
	}
	_, err := Render(tmpl, Fields{})
	return err
}

// walk splits tmpl into literal runs and field references.
func walk(tmpl string, lit func(string), field func(string) error) error {
	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			lit("{")
			i += 2
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			lit("}")
			i += 2
		case c == '}':
			return &FormattingError{Template: tmpl, Reason: "single '}' encountered"}
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return &FormattingError{Template: tmpl, Reason: "unclosed '{'"}
			}
			name := tmpl[i+1 : i+1+end]
			if name == "" {
				return &FormattingError{Template: tmpl, Reason: "positional field '{}' is not supported"}
			}
			if strings.ContainsAny(name, "{:!") {
				return &FormattingError{Template: tmpl, Field: name, Reason: "format specs and conversions are not supported"}
			}
			if err := field(name); err != nil {
				return err
			}
			i += end + 2
		default:
			j := i
			for j < len(tmpl) && tmpl[j] != '{' && tmpl[j] != '}' {
				j++
			}
			lit(tmpl[i:j])
			i = j
		}
	}
	return nil
}
