package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/filechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Body is a flat JSON object. Every endpoint answers with its own keys.
type Body map[string]any

// JSON sends a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// Error sends {"success": false, "error": message}
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Body{
		"success": false,
		"error":   message,
	})
}

// FromError maps domain errors onto status codes: validation 400,
// upstream 502, storage and anything else 500
func FromError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		ue *domain.UpstreamError
		se *domain.StorageError
	)
	switch {
	case errors.As(err, &ve):
		BadRequest(w, ve.Message)
	case errors.As(err, &ue):
		Error(w, http.StatusBadGateway, ue.Error())
	case errors.As(err, &se):
		log.Error().Err(err).Str("op", se.Op).Msg("storage failure")
		InternalError(w, se.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		InternalError(w, err.Error())
	}
}

// OK sends a 200 OK response with data
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// BadRequest sends a 400 Bad Request response
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// NotFound sends a 404 Not Found response
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}
