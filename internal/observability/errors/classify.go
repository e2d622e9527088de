package errors

// Package errors turns arbitrary errors into low-cardinality labels for metrics and logs.

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/sentrypost/authcore/internal/errors"
)

// Classify returns a normalized error class suitable for metric labels.
// Context expiry and coded application errors win; anything else is named after
// the innermost concrete type, e.g. "net_operror".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}
	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) && appErr.Code != "" {
		return "app_" + strings.ToLower(string(appErr.Code))
	}
	return typeName(innermost(err))
}

// innermost follows Unwrap chains; for joined errors it follows the first branch.
func innermost(err error) error {
	for {
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == nil {
				return err
			}
			err = next
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 || errs[0] == nil {
				return err
			}
			err = errs[0]
		default:
			return err
		}
	}
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
