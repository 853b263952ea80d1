package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"askmemo-backend/internal/middleware"
	"askmemo-backend/internal/models"
	"askmemo-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

// errorStatus maps a service error to its HTTP status, API code and the
// message shown to the user.
func errorStatus(err error) (int, string, string) {
	var (
		validationErr *services.ValidationError
		emptyErr      *services.EmptyInputError
		nothingErr    *services.NothingToSaveError
		completionErr *services.CompletionServiceError
		notFoundErr   *services.DatabaseNotFoundError
		writeErr      *services.StoreWriteError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed"
	case errors.As(err, &emptyErr):
		return http.StatusBadRequest, "EMPTY_INPUT", emptyErr.Error()
	case errors.As(err, &nothingErr):
		return http.StatusConflict, "NOTHING_TO_SAVE", nothingErr.Error()
	case errors.As(err, &completionErr):
		return http.StatusBadGateway, "COMPLETION_ERROR", completionErr.Error()
	case errors.As(err, &notFoundErr):
		return http.StatusBadGateway, "DATABASE_NOT_FOUND", notFoundErr.Error()
	case errors.As(err, &writeErr):
		return http.StatusBadGateway, "STORE_WRITE_ERROR", writeErr.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", r.Header.Get(middleware.RequestIDHeader)).Msg("unhandled service error")
	}

	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, status, errorRespWithFields(code, message, validationErr.Fields, r))
		return
	}
	writeJSON(w, status, errorResp(code, message, r))
}

func asValidationError(err error) *services.ValidationError {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}
	return nil
}
