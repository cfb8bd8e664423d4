package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"migra/pkg/domain"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Warn("failed to write response", "error", err)
	}
}

func successResponse(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{
		Code:    "SUCCESS",
		Message: "operation successful",
		Data:    data,
	})
}

func createdResponse(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, Response{
		Code:    "CREATED",
		Message: "resource created successfully",
		Data:    data,
	})
}

func badRequestResponse(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Response{
		Code:    "BAD_REQUEST",
		Message: message,
	})
}

// errorResponse maps err to a status code. Only domain errors expose their
// message.
func errorResponse(w http.ResponseWriter, err error) {
	var status int
	var code string

	switch {
	case domain.IsInvalidInput(err):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case domain.IsNotFound(err):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case domain.IsInvalidTransition(err):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case domain.IsInvalidArchive(err):
		status, code = http.StatusUnprocessableEntity, "INVALID_ARCHIVE"
	case domain.IsEmptyArchive(err):
		status, code = http.StatusUnprocessableEntity, "EMPTY_ARCHIVE"
	case domain.IsEmptySelection(err):
		status, code = http.StatusUnprocessableEntity, "EMPTY_SELECTION"
	case domain.IsTenantCreationFailed(err):
		status, code = http.StatusBadGateway, "TENANT_CREATION_FAILED"
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Response{
				Code:    "ARCHIVE_TOO_LARGE",
				Message: "the archive exceeds the upload limit",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, Response{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		})
		return
	}

	writeJSON(w, status, Response{Code: code, Message: domain.UserMessage(err)})
}
