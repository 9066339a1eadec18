package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"escape-room-service/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps a use-case error onto a wire code and HTTP status. Unknown
// errors are internal and their detail stays in the log.
func classify(err error) (code string, status int, message string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return "invalid-argument", http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated", http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission-denied", http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid-argument", http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "not-found", http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return "failed-precondition", http.StatusConflict, err.Error()
	default:
		log.Printf("internal error: %v", err)
		return "internal", http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, status, message := classify(err)
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response failed: %v", err)
	}
}
