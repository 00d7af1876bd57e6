package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/service"
)

type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Total   *int   `json:"total,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	writeEnvelope(w, code, envelope{Status: "success", Data: data})
}

func writeList(w http.ResponseWriter, data any, total int) {
	writeEnvelope(w, http.StatusOK, envelope{Status: "success", Data: data, Total: &total})
}

func writeEnvelope(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeEnvelope(w, code, envelope{Status: "error", Message: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", err.Error())
	}
	return nil
}
