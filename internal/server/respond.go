package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"poll-audit/internal/faults"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// JSONResponse writes a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse writes a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, ErrorBody{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// FaultResponse maps a core error kind to a status code and writes it.
func FaultResponse(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, faults.ErrNotFound):
		ErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, faults.ErrConflict):
		ErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, faults.ErrInvalidInput),
		errors.Is(err, faults.ErrMalformedData),
		errors.Is(err, faults.ErrUnverifiable):
		ErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("unexpected error", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "internal error")
	}
}

// ParseJSONBody parses the request body into the given struct
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// WithLogging wraps a handler with request logging
func WithLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		slog.Info("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)
		next(w, r)
		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
