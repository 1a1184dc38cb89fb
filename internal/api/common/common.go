// Package common provides shared HTTP helpers for the API handlers.
package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ErrorResponse is the error envelope shared by every endpoint
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ErrBodyTooLarge is returned by DecodeJSONBody when the body exceeds the limit
var ErrBodyTooLarge = errors.New("request body too large")

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Success: false, Error: message}, statusCode)
}

// MethodNotAllowedHandler answers requests whose path matched a route but whose method did not
func MethodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	WriteErrorResponse(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

// NotFoundHandler answers requests that matched no route
func NotFoundHandler(w http.ResponseWriter, _ *http.Request) {
	WriteErrorResponse(w, "Not Found", http.StatusNotFound)
}

// DecodeJSONBody decodes a JSON request body of at most maxBytes into v.
// Trailing data after the JSON value is rejected.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is empty")
		default:
			return fmt.Errorf("invalid JSON in request body: %w", err)
		}
	}

	if decoder.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// GetURLParam extracts and decodes a chi URL parameter. The decoded value must
// not be empty and must not contain whitespace.
func GetURLParam(r *http.Request, name string) (string, error) {
	decoded, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return "", fmt.Errorf("invalid URL encoding in %s", name)
	}

	if strings.TrimSpace(decoded) == "" {
		return "", fmt.Errorf("%s cannot be empty", name)
	}
	if strings.ContainsAny(decoded, " \t\n\r") {
		return "", fmt.Errorf("%s cannot contain whitespace", name)
	}

	return decoded, nil
}
