package model

import (
	"errors"
	"fmt"
)

// Kind identifies a category in the pipeline's error taxonomy.
type Kind string

const (
	KindInput         Kind = "input_error"
	KindParserInit    Kind = "parser_init_error"
	KindParserRuntime Kind = "parser_runtime_error"
	KindLLMTransport  Kind = "llm_transport_error"
	KindLLMQuota      Kind = "llm_quota_error"
	KindLLMFormat     Kind = "llm_format_error"
	KindSchema        Kind = "schema_error"
	KindValidation    Kind = "validation_error"
	KindQueueFull     Kind = "queue_full"
	KindConfig        Kind = "config_error"
)

// Error is a domain error carrying a stable kind code.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds a domain error with a formatted message.
func Errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapErr builds a domain error wrapping an underlying cause.
func WrapErr(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the domain kind from an error chain. Unclassified
// errors report an empty kind.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
