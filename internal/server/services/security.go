// Package services contains the server-side business logic. This file
// implements SecurityService: registration, credential login, token
// issuance/refresh, logout with revocation, and per-request authentication.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"

	"github.com/tbsky/session/internal/common"
	"github.com/tbsky/session/internal/config"
	"github.com/tbsky/session/internal/dbx"
	"github.com/tbsky/session/internal/logging"
	"github.com/tbsky/session/internal/server/models"
	"github.com/tbsky/session/internal/server/password"
	"github.com/tbsky/session/internal/server/repositories/blacklist"
	"github.com/tbsky/session/internal/server/repositories/repomanager"
	"github.com/tbsky/session/internal/server/repositories/users"
	"github.com/tbsky/session/internal/server/token"
)

// Sentinel auth failures with distinct user-facing meanings. All of them
// match common.ErrorUnauthorized via errors.Is.
var (
	ErrInvalidAccessToken  = fmt.Errorf("invalid access token: %w", common.ErrorUnauthorized)
	ErrInvalidRefreshToken = fmt.Errorf("invalid refresh token: %w", common.ErrorUnauthorized)
	ErrBadCredentials      = fmt.Errorf("incorrect username or password: %w", common.ErrorUnauthorized)
)

// minNameLength is the minimum accepted first/last name length.
const minNameLength = 3

// TokenPair bundles a short-lived access token and a longer-lived refresh
// token together with each token's remaining lifetime in seconds.
type TokenPair struct {
	AccessToken     string
	AccessTokenTTL  int
	RefreshToken    string
	RefreshTokenTTL int
}

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// SecurityService provides authentication-related operations.
type SecurityService struct {
	db            *sql.DB
	repos         repomanager.RepositoryManager
	blacklist     blacklist.Repository
	tokens        *token.Tool
	logger        logging.Logger
	defaultUserID string
}

// NewSecurityService constructs a SecurityService from its collaborators.
func NewSecurityService(db *sql.DB, repos repomanager.RepositoryManager,
	bl blacklist.Repository, tokens *token.Tool, logger logging.Logger,
	cfg *config.Config) *SecurityService {
	return &SecurityService{
		db:            db,
		repos:         repos,
		blacklist:     bl,
		tokens:        tokens,
		logger:        logger,
		defaultUserID: cfg.Users.DefaultUserID,
	}
}

// Register validates the input, hashes the password, persists the user, and
// mints a token pair for the new account. Validation failures wrap
// common.ErrorValidation; a duplicate email wraps common.ErrorAlreadyExists.
func (s *SecurityService) Register(ctx context.Context, in RegisterInput) (*models.User, *TokenPair, error) {
	if err := validateRegisterInput(in); err != nil {
		return nil, nil, err
	}

	hashed, err := password.Hash(in.Password)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	user := models.NewUser(in.FirstName, in.LastName, in.Email, hashed, s.defaultUserID)
	created, err := s.repos.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, nil, fmt.Errorf("email taken: %w", common.ErrorAlreadyExists)
		}
		s.logger.Error(ctx, "error creating user", "error", err.Error())
		return nil, nil, common.ErrorInternal
	}

	pair, err := s.IssueTokens(created.ID)
	if err != nil {
		return nil, nil, err
	}
	return created, pair, nil
}

// CreateUsers persists all users in a single transaction committed at the
// end; either every insert succeeds or none do.
func (s *SecurityService) CreateUsers(ctx context.Context, list []*models.User) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		for _, user := range list {
			if _, err := repo.Create(ctx, user); err != nil {
				return err
			}
		}
		return nil
	})
}

// Login verifies the email/password pair and mints tokens. Unknown email and
// wrong password both fail with ErrBadCredentials to prevent enumeration.
func (s *SecurityService) Login(ctx context.Context, email, plainPassword string) (*models.User, *TokenPair, error) {
	user, err := s.repos.Users(s.db).GetFirst(ctx, users.Filters{"email": email})
	if err != nil {
		s.logger.Error(ctx, "error looking up user", "error", err.Error())
		return nil, nil, common.ErrorInternal
	}
	if user == nil || !password.Verify(plainPassword, user.HashedPassword) {
		return nil, nil, ErrBadCredentials
	}

	pair, err := s.IssueTokens(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// IssueTokens mints a fresh access/refresh pair with userID as subject.
func (s *SecurityService) IssueTokens(userID string) (*TokenPair, error) {
	claims := map[string]any{token.SubjectClaim: userID}

	access, accessTTL, err := s.tokens.CreateAccessToken(claims)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, refreshTTL, err := s.tokens.CreateRefreshToken(claims)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{
		AccessToken:     access,
		AccessTokenTTL:  accessTTL,
		RefreshToken:    refresh,
		RefreshTokenTTL: refreshTTL,
	}, nil
}

// Refresh decodes refreshToken, confirms its subject matches the
// authenticated user, and mints a fresh pair. A subject mismatch fails with
// ErrInvalidAccessToken.
func (s *SecurityService) Refresh(ctx context.Context, user *models.User, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Decode(refreshToken)
	if err != nil {
		return nil, err
	}
	sub, err := token.Subject(claims)
	if err != nil {
		return nil, err
	}
	if sub != user.ID {
		return nil, ErrInvalidAccessToken
	}
	return s.IssueTokens(user.ID)
}

// Logout revokes both tokens of the current session. The two blacklist
// entries go through one transactional pipeline; the refresh token is stored
// under its own value as key so that either token string hits the blacklist
// on lookup.
func (s *SecurityService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	entries := []*models.BlackListToken{
		models.NewBlackListToken(accessToken, refreshToken, s.defaultUserID),
		models.NewBlackListToken(refreshToken, refreshToken, s.defaultUserID),
	}
	if err := s.blacklist.AddAll(ctx, entries...); err != nil {
		s.logger.Error(ctx, "error blacklisting tokens", "error", err.Error())
		return common.ErrorInternal
	}
	return nil
}

// Authenticate resolves the caller behind accessToken to a validated user.
// refreshToken is optional; when present it is independently checked against
// the blacklist. The error identifies which check failed.
func (s *SecurityService) Authenticate(ctx context.Context, accessToken, refreshToken string) (*models.User, error) {
	claims, err := s.tokens.Decode(accessToken)
	if err != nil {
		return nil, err
	}
	sub, err := token.Subject(claims)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.Get(ctx, accessToken)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if len(revoked) > 0 {
		return nil, ErrInvalidAccessToken
	}

	if refreshToken != "" {
		revoked, err := s.blacklist.Get(ctx, refreshToken)
		if err != nil {
			return nil, common.ErrorInternal
		}
		if len(revoked) > 0 {
			return nil, ErrInvalidRefreshToken
		}
	}

	user, err := s.repos.Users(s.db).GetFirst(ctx, users.Filters{"user_id": sub})
	if err != nil {
		s.logger.Error(ctx, "error looking up user", "error", err.Error())
		return nil, common.ErrorInternal
	}
	if user == nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}

func validateRegisterInput(in RegisterInput) error {
	if len(in.FirstName) < minNameLength {
		return fmt.Errorf("%w: first_name should be at least %d characters", common.ErrorValidation, minNameLength)
	}
	if len(in.LastName) < minNameLength {
		return fmt.Errorf("%w: last_name should be at least %d characters", common.ErrorValidation, minNameLength)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email address", common.ErrorValidation)
	}
	return password.Validate(in.Password)
}
