package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/tbsky/session/internal/server/models"
)

type ctxKey string

const userKey ctxKey = "user"

// bearerFromHeader extracts the token from an Authorization: Bearer header.
func bearerFromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// requireUser resolves the caller's access token to a validated user before
// invoking next. The Authorization header takes priority over the
// access-token cookie. The resolved user is stored in the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken := bearerFromHeader(r)
		if accessToken == "" {
			accessToken, _ = readCookie(r, AccessTokenCookie)
		}
		if accessToken == "" {
			writeDetail(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		refreshToken, _ := readCookie(r, RefreshTokenCookie)

		user, err := s.security.Authenticate(r.Context(), accessToken, refreshToken)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next(w, r.WithContext(ctx))
	}
}

// userFrom returns the authenticated caller placed in ctx by requireUser.
func userFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}
