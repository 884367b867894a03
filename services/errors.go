package services

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable machine-checkable classification surfaced to
// callers alongside the human-readable message.
type ErrorKind string

const (
	KindUnauthorized     ErrorKind = "unauthorized"
	KindForbidden        ErrorKind = "forbidden"
	KindNotFound         ErrorKind = "not_found"
	KindAlreadyCompleted ErrorKind = "already_completed"
	KindValidation       ErrorKind = "validation_failure"
	KindStoreFailure     ErrorKind = "store_failure"
)

// EngineError carries a kind, a message for humans, and the wrapped cause.
type EngineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Err }

func NotFoundError(msg string) error {
	return &EngineError{Kind: KindNotFound, Message: msg}
}

func AlreadyCompletedError(msg string) error {
	return &EngineError{Kind: KindAlreadyCompleted, Message: msg}
}

func ValidationError(msg string) error {
	return &EngineError{Kind: KindValidation, Message: msg}
}

// StoreError wraps a persistence failure. These are transient; callers may retry.
func StoreError(msg string, err error) error {
	return &EngineError{Kind: KindStoreFailure, Message: msg, Err: err}
}

// KindOf extracts the kind from any error in the chain. Unclassified errors
// report as store failures so nothing leaks out untyped.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindStoreFailure
}
