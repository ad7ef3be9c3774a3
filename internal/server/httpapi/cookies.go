package httpapi

import (
	"net/http"
	"strings"

	"github.com/tbsky/session/internal/server/services"
)

// Canonical session cookie names.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// readCookie returns the trimmed cookie value when present.
func readCookie(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie == nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

// setTokenCookies delivers a freshly minted pair as HTTP-only cookies whose
// max-age equals each token's remaining seconds.
func setTokenCookies(w http.ResponseWriter, r *http.Request, pair *services.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   pair.AccessTokenTTL,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   pair.RefreshTokenTTL,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearTokenCookies expires both session cookies.
func clearTokenCookies(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
