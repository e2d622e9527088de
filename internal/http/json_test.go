package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/sentrypost/authcore/internal/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "verification failure is collapsed",
			err:    apperrors.VerificationFailed(errors.New("kid not found")),
			status: http.StatusUnauthorized,
			body:   `{"success":false,"error":{"code":"AUTHENTICATION_FAILED","message":"Authentication failed"}}`,
		},
		{
			name:   "plain error hides detail",
			err:    errors.New("pq: password authentication failed"),
			status: http.StatusInternalServerError,
			body:   `{"success":false,"error":{"code":"internal","message":"Internal server error"}}`,
		},
		{
			name:   "forbidden keeps its message",
			err:    apperrors.New(apperrors.ErrCodeInsufficientAccessLevel, "Required access level: admin"),
			status: http.StatusForbidden,
			body:   `{"success":false,"error":{"code":"INSUFFICIENT_ACCESS_LEVEL","message":"Required access level: admin"}}`,
		},
		{
			name:   "validation",
			err:    apperrors.Validation("invalid JSON body"),
			status: http.StatusBadRequest,
			body:   `{"success":false,"error":{"code":"validation","message":"invalid JSON body"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Token string `json:"token"`
	}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.True(t, DecodeJSON(rec, r, &dst), "empty body is allowed")

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"a","extra":1}`))
	assert.False(t, DecodeJSON(rec, r, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"abc"}`))
	assert.True(t, DecodeJSON(rec, r, &dst))
	assert.Equal(t, "abc", dst.Token)
}

func TestWriteDataOmitsEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusOK, nil)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}
