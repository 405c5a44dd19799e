// Package handler provides HTTP handlers for the application.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/adworks/leadbot/internal/errors"
	"github.com/adworks/leadbot/internal/middleware"
)

// JSON writes a JSON response with the appropriate headers.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// JSONWithRequest writes a JSON response, including request ID in headers.
// This is the preferred method when the request is available.
func JSONWithRequest(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if reqID := middleware.GetRequestID(r.Context()); reqID != "" {
		w.Header().Set(middleware.RequestIDHeader, reqID)
	}
	JSON(w, status, data)
}

// APIError writes an API error response in a consistent format.
func APIError(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSONWithRequest(w, r, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
		"status":  status,
	})
}

// AppError writes an application error as JSON, mapping the error code to
// an HTTP status. Non-application errors become an opaque 500.
func AppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		JSONWithRequest(w, r, appErr.HTTPStatus(), appErr.ToResponse())
		return
	}
	APIError(w, r, http.StatusInternalServerError, "internal error")
}
