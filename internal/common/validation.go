package common

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError is one failed rule on one registry field.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %q %s", e.Field, e.Value, e.Message)
}

// Rule checks a single string field. It returns "" when the value passes,
// otherwise the reason it failed.
type Rule func(value string) string

// Validator collects rule failures across fields.
type Validator struct {
	errs []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules in order and stops at the first failure for the field.
func (v *Validator) Field(name, value string, rules ...Rule) *Validator {
	for _, rule := range rules {
		if msg := rule(value); msg != "" {
			v.errs = append(v.errs, ValidationError{Field: name, Value: value, Message: msg})
			break
		}
	}
	return v
}

func (v *Validator) Errors() []ValidationError {
	return v.errs
}

// Err returns the collected failures as a config AppError, or nil.
func (v *Validator) Err(path string) error {
	if len(v.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(v.errs))
	for i, e := range v.errs {
		msgs[i] = e.Error()
	}
	return NewAppError(KindConfig, path, strings.Join(msgs, "; "), ErrInvalidInput)
}

// Required rejects blank values.
func Required(value string) string {
	if strings.TrimSpace(value) == "" {
		return "is required"
	}
	return ""
}

// MaxLength caps the rune count of a value.
func MaxLength(max int) Rule {
	return func(value string) string {
		if utf8.RuneCountInString(value) > max {
			return fmt.Sprintf("must be at most %d characters", max)
		}
		return ""
	}
}

// Digits accepts ASCII digits only. Empty values pass; pair with Required.
func Digits(value string) string {
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return "must contain only digits"
		}
	}
	return ""
}

// CleanPath strips whitespace and enclosing quotes pasted along with a path.
func CleanPath(path string) string {
	return strings.Trim(strings.TrimSpace(path), `'"`)
}
