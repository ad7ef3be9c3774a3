// Package token mints and verifies the bearer tokens backing sessions.
//
// Tokens are HMAC-signed JWTs carrying the caller's claims plus a textual
// "expire" timestamp. Expiry is enforced against that embedded timestamp
// rather than the registered exp claim, so a token is rejected exactly when
// absolute UTC now is strictly after the parsed expire value.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbsky/session/internal/common"
	"github.com/tbsky/session/internal/config"
)

// SubjectClaim is the payload field identifying the owning user's id.
const SubjectClaim = "sub"

// expireClaim is the payload field holding the absolute expiry timestamp.
const expireClaim = "expire"

// Tool signs and verifies session tokens with a symmetric secret.
type Tool struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
}

var signingMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// New constructs a Tool from security settings.
func New(s config.SecuritySettings) (*Tool, error) {
	method, ok := signingMethods[s.JWTAlgorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm: %q", s.JWTAlgorithm)
	}
	return &Tool{
		secret:     []byte(s.SecretKey),
		method:     method,
		accessTTL:  s.AccessTokenTTL(),
		refreshTTL: s.RefreshTokenTTL(),
	}, nil
}

// CreateAccessToken signs claims with the configured access-token lifetime.
// It returns the token string and the remaining whole seconds until expiry,
// computed after minting.
func (t *Tool) CreateAccessToken(claims map[string]any) (string, int, error) {
	return t.create(claims, t.accessTTL)
}

// CreateRefreshToken signs claims with the configured refresh-token lifetime.
func (t *Tool) CreateRefreshToken(claims map[string]any) (string, int, error) {
	return t.create(claims, t.refreshTTL)
}

func (t *Tool) create(claims map[string]any, ttl time.Duration) (string, int, error) {
	expire := time.Now().UTC().Add(ttl)

	payload := jwt.MapClaims{}
	for k, v := range claims {
		payload[k] = v
	}
	payload[expireClaim] = expire.Format(time.RFC3339Nano)

	signed, err := jwt.NewWithClaims(t.method, payload).SignedString(t.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return signed, int(time.Until(expire).Seconds()), nil
}

// Decode verifies the signature and algorithm of tokenString and enforces the
// embedded expiry. It returns the remaining claims (the expire field is
// stripped), or common.ErrTokenExpired / common.ErrInvalidToken.
func (t *Tool) Decode(tokenString string) (map[string]any, error) {
	parsed, err := jwt.Parse(tokenString, func(tk *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{t.method.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidToken
	}

	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, common.ErrInvalidToken
	}

	raw, ok := payload[expireClaim].(string)
	if !ok {
		return nil, common.ErrInvalidToken
	}
	expire, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if time.Now().UTC().After(expire) {
		return nil, common.ErrTokenExpired
	}

	delete(payload, expireClaim)
	return payload, nil
}

// Subject extracts the subject claim from decoded claims.
func Subject(claims map[string]any) (string, error) {
	sub, ok := claims[SubjectClaim].(string)
	if !ok || sub == "" {
		return "", common.ErrInvalidToken
	}
	return sub, nil
}
