package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/sentrypost/authcore/internal/errors"
)

type sinkError struct{}

func (*sinkError) Error() string { return "sink" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", goerrors.New("x"), "errors_errorstring"},
		{"wrapped custom type", fmt.Errorf("write: %w", &sinkError{}), "errors_sinkerror"},
		{"joined", goerrors.Join(&sinkError{}, goerrors.New("close")), "errors_sinkerror"},
		{"deadline", fmt.Errorf("write audit: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"app error", apperrors.Wrap(goerrors.New("dial"), apperrors.ErrCodeInternal, "lookup user"), "app_internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
