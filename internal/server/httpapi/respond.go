package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tbsky/session/internal/common"
	"github.com/tbsky/session/internal/server/services"
)

// detailResponse is the error payload shape: {"detail": "..."}.
type detailResponse struct {
	Detail string `json:"detail"`
}

// messageResponse is the confirmation payload shape: {"message": "..."}.
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

// writeError maps service errors to fixed HTTP statuses and detail strings.
// Credential mismatches share one generic message to prevent enumeration, and
// not-found in auth flows is never surfaced as 404.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		writeDetail(w, http.StatusUnauthorized, "Token expired, please log in again")
	case errors.Is(err, services.ErrInvalidAccessToken):
		writeDetail(w, http.StatusUnauthorized, "Invalid access token")
	case errors.Is(err, services.ErrInvalidRefreshToken):
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, services.ErrBadCredentials):
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrorNotFound):
		writeDetail(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, common.ErrorValidation):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		writeDetail(w, http.StatusConflict, "Email already registered")
	default:
		s.logger.Error(r.Context(), "unhandled error", "path", r.URL.Path, "error", err.Error())
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}
