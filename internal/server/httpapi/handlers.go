package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/tbsky/session/internal/server/services"
)

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	_, pair, err := s.security.Register(r.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	setTokenCookies(w, r, pair)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	_, pair, err := s.security.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	setTokenCookies(w, r, pair)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	pair, err := s.security.IssueTokens(user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	setTokenCookies(w, r, pair)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Login successful"})
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	refreshToken, ok := readCookie(r, RefreshTokenCookie)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	pair, err := s.security.Refresh(r.Context(), user, refreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	setTokenCookies(w, r, pair)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Login successful"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := readCookie(r, AccessTokenCookie)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid access token")
		return
	}
	refreshToken, ok := readCookie(r, RefreshTokenCookie)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	if err := s.security.Logout(r.Context(), accessToken, refreshToken); err != nil {
		s.writeError(w, r, err)
		return
	}

	clearTokenCookies(w, r)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logout successful"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	writeJSON(w, http.StatusOK, userResponse{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	})
}
