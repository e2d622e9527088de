package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/sentrypost/authcore/internal/errors"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
// An empty body leaves dst untouched and succeeds.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, apperrors.Validation("invalid JSON body"))
		return false
	}

	return true
}

const maxBodyBytes = 64 << 10

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

type successBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// WriteData writes {"success":true,"data":...}.
func WriteData(w http.ResponseWriter, code int, data any) {
	WriteJSON(w, code, successBody{Success: true, Data: data})
}

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError renders err as {"success":false,"error":{"code","message"}}.
// Only fixed messages reach the client for 401 and 5xx codes; the cause is never rendered.
func WriteError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	if code == "" {
		code = apperrors.ErrCodeInternal
	}
	status := apperrors.HTTPStatus(code)
	public := apperrors.PublicCode(code)

	msg := apperrors.PublicMessage(public)
	var appErr *apperrors.AppError
	if status != http.StatusUnauthorized && status < http.StatusInternalServerError && errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}

	WriteJSON(w, status, errorBody{Error: errorDetail{Code: string(public), Message: msg}})
}
