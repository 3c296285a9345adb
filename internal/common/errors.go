package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindReadParse    Kind = "read_parse"   // corrupt or unreadable PDF
	KindOCR          Kind = "ocr"          // OCR could not produce a searchable copy
	KindUnclassified Kind = "unclassified" // no invoice key or no type match
	KindFilesystem   Kind = "filesystem"   // rename/delete failed
	KindFormatting   Kind = "formatting"   // filename template defect
	KindConfig       Kind = "config"       // registry or environment defect
)

// Fatal reports whether errors of this kind stop the whole run.
func (k Kind) Fatal() bool {
	return k == KindFormatting || k == KindConfig
}

// AppError represents application-specific errors
type AppError struct {
	Kind    Kind
	Path    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoText       = errors.New("no extractable text")
	ErrNoMatch      = errors.New("no document type matched")
	ErrNoInvoice    = errors.New("no invoice number in folder name")
)

// Error constructors
func NewAppError(kind Kind, path, message string, cause error) *AppError {
	return &AppError{
		Kind:    kind,
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns the Kind of the first AppError in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsFatal reports whether err should abort a run.
func IsFatal(err error) bool {
	return KindOf(err).Fatal()
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalErrorf(format string, args ...interface{}) error {
	return status.Errorf(codes.Internal, format, args...)
}

func UnavailableError(message string) error {
	return status.Error(codes.Unavailable, message)
}

// FromContextError maps a context error to its gRPC status.
func FromContextError(err error) error {
	return status.FromContextError(err).Err()
}
