package model

import (
	"context"

	"github.com/pkg/errors"
)

// Error taxonomy. Callers wrap these with context and test with errors.Is.
var (
	ErrConfiguration        = errors.New("configuration error")
	ErrEngineUnavailable    = errors.New("engine unavailable")
	ErrEngineTimeout        = errors.New("engine timeout")
	ErrNumericalInstability = errors.New("numerical instability")
	ErrDataInconsistency    = errors.New("data inconsistency")
	ErrCanceled             = errors.New("canceled")
)

// KindOf maps an error onto its taxonomy name, "internal" when it matches none.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrEngineUnavailable):
		return "engine-unavailable"
	case errors.Is(err, ErrEngineTimeout):
		return "engine-timeout"
	case errors.Is(err, ErrNumericalInstability):
		return "numerical-instability"
	case errors.Is(err, ErrDataInconsistency):
		return "data-inconsistency"
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline-exceeded"
	default:
		return "internal"
	}
}

// Configf wraps ErrConfiguration with a formatted reason.
func Configf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
