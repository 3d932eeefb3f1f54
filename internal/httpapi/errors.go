package httpapi

import (
	"errors"
	"net/http"

	"github.com/mfigueroa/hucha/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter) {
	writeErr(w, http.StatusNotFound, "not_found", "not_found")
}
func conflict(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusConflict, msg, "conflict")
}
func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// writeServiceErr maps service layer sentinels onto HTTP statuses.
func (s *Server) writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrInvalid):
		unprocessable(w, err.Error(), "validation_error")
	case errors.Is(err, errs.ErrInsufficientFunds):
		unprocessable(w, err.Error(), "insufficient_funds")
	case errors.Is(err, errs.ErrAlreadyRepaid):
		unprocessable(w, err.Error(), "already_repaid")
	case errors.Is(err, errs.ErrConflict):
		conflict(w, err.Error())
	default:
		s.log.Error("internal error", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error", "")
	}
}
