package shared

import (
	"errors"
	"fmt"
)

type ErrorSource int

const (
	ErrorSourceEngine ErrorSource = iota
	ErrorSourceStore
	ErrorSourceNotifier
	ErrorSourceBridge
	ErrorSourceAPI
	ErrorSourceSystem
	ErrorSourceUnknown
)

func (s ErrorSource) String() string {
	switch s {
	case ErrorSourceEngine:
		return "engine"
	case ErrorSourceStore:
		return "store"
	case ErrorSourceNotifier:
		return "notifier"
	case ErrorSourceBridge:
		return "bridge"
	case ErrorSourceAPI:
		return "api"
	case ErrorSourceSystem:
		return "system"
	default:
		return "unknown"
	}
}

type ThreadviewError struct {
	Source  ErrorSource
	Message string
	Err     error
}

func Errorf(source ErrorSource, format string, a ...any) *ThreadviewError {
	return &ThreadviewError{
		Source:  source,
		Message: fmt.Sprintf(format, a...),
	}
}

func Wrap(source ErrorSource, err error, format string, a ...any) *ThreadviewError {
	return &ThreadviewError{
		Source:  source,
		Message: fmt.Sprintf(format, a...),
		Err:     err,
	}
}

func (e *ThreadviewError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *ThreadviewError) Unwrap() error {
	return e.Err
}

func (e *ThreadviewError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func (e *ThreadviewError) As(target interface{}) bool {
	return errors.As(e.Err, target)
}
