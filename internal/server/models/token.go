package models

import (
	"time"

	"github.com/google/uuid"
)

// Token kinds.
const (
	TokenTypeBearer    = "bearer"
	TokenTypeBlacklist = "blacklist"
)

// Token is an ephemeral bearer credential. Tokens live in the key-value store
// only once blacklisted; until then they exist solely as signed strings held
// by the client.
type Token struct {
	Key          string    `json:"key"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewToken returns a bearer token record with a generated key.
func NewToken(accessToken, refreshToken, createdBy string) *Token {
	return &Token{
		Key:          uuid.NewString(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}
}

// BlackListToken marks a token as revoked. Its key always equals its
// access-token value, so revocation lookups are point reads by the raw token
// string.
type BlackListToken struct {
	Token
}

// NewBlackListToken returns a blacklist record keyed by accessToken.
func NewBlackListToken(accessToken, refreshToken, createdBy string) *BlackListToken {
	return &BlackListToken{Token: Token{
		Key:          accessToken,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBlacklist,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}}
}
