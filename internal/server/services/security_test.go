package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbsky/session/internal/common"
	"github.com/tbsky/session/internal/config"
	"github.com/tbsky/session/internal/dbx"
	"github.com/tbsky/session/internal/logging"
	"github.com/tbsky/session/internal/server/models"
	"github.com/tbsky/session/internal/server/password"
	"github.com/tbsky/session/internal/server/repositories/users"
	"github.com/tbsky/session/internal/server/token"
)

type fakeUserRepo struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
	created []*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    map[string]*models.User{},
		byEmail: map[string]*models.User{},
	}
}

func (f *fakeUserRepo) Get(ctx context.Context, filters users.Filters) ([]*models.User, error) {
	if id, ok := filters["user_id"].(string); ok {
		if u, found := f.byID[id]; found && !u.Deleted {
			return []*models.User{u}, nil
		}
		return nil, nil
	}
	if email, ok := filters["email"].(string); ok {
		if u, found := f.byEmail[email]; found && !u.Deleted {
			return []*models.User{u}, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetFirst(ctx context.Context, filters users.Filters) (*models.User, error) {
	found, err := f.Get(ctx, filters)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (f *fakeUserRepo) GetOne(ctx context.Context, filters users.Filters) (*models.User, error) {
	user, err := f.GetFirst(ctx, filters)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.ErrorNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, exists := f.byEmail[user.Email]; exists {
		return nil, common.ErrorAlreadyExists
	}
	f.byID[user.ID] = user
	f.byEmail[user.Email] = user
	f.created = append(f.created, user)
	return user, nil
}

type fakeRepoManager struct {
	users *fakeUserRepo
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (f *fakeRepoManager) Users(db dbx.DBTX) users.Repository { return f.users }

type fakeBlacklist struct {
	entries map[string]*models.BlackListToken
	failing bool
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{entries: map[string]*models.BlackListToken{}}
}

func (f *fakeBlacklist) Add(ctx context.Context, entry *models.BlackListToken) error {
	return f.AddAll(ctx, entry)
}

func (f *fakeBlacklist) AddAll(ctx context.Context, entries ...*models.BlackListToken) error {
	if f.failing {
		return errors.New("cache down")
	}
	for _, e := range entries {
		f.entries[e.Key] = e
	}
	return nil
}

func (f *fakeBlacklist) Get(ctx context.Context, keys ...string) ([]*models.BlackListToken, error) {
	if f.failing {
		return nil, errors.New("cache down")
	}
	var result []*models.BlackListToken
	for _, k := range keys {
		if e, ok := f.entries[k]; ok {
			result = append(result, e)
		}
	}
	return result, nil
}

type fixture struct {
	service   *SecurityService
	userRepo  *fakeUserRepo
	blacklist *fakeBlacklist
	mock      sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tool, err := token.New(config.SecuritySettings{
		SecretKey:                "test-secret",
		JWTAlgorithm:             "HS256",
		AccessTokenExpireMinutes: 15,
		RefreshTokenExpireDays:   1,
	})
	require.NoError(t, err)

	userRepo := newFakeUserRepo()
	bl := newFakeBlacklist()
	cfg := &config.Config{}
	cfg.Users.DefaultUserID = "system"

	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	svc := NewSecurityService(db, &fakeRepoManager{users: userRepo}, bl, tool, logger, cfg)

	return &fixture{service: svc, userRepo: userRepo, blacklist: bl, mock: mock}
}

func validInput() RegisterInput {
	return RegisterInput{
		FirstName: "Test",
		LastName:  "Test",
		Email:     "a@x.com",
		Password:  "A_Bdv7`82T+t",
	}
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, pair, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, pair)

	assert.NotEqual(t, "A_Bdv7`82T+t", user.HashedPassword)
	assert.True(t, password.Verify("A_Bdv7`82T+t", user.HashedPassword))
	assert.Equal(t, "system", user.CreatedBy)

	resolved, err := f.service.Authenticate(ctx, pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)

	_, _, err = f.service.Register(ctx, validInput())
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_ValidationFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"short first name", func(in *RegisterInput) { in.FirstName = "Al" }},
		{"short last name", func(in *RegisterInput) { in.LastName = "B" }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"weak password", func(in *RegisterInput) { in.Password = "short" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, _, err := f.service.Register(ctx, in)
			require.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestLogin_SuccessAndFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, _, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)

	user, pair, err := f.service.Login(ctx, "a@x.com", "A_Bdv7`82T+t")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Greater(t, pair.RefreshTokenTTL, pair.AccessTokenTTL)

	// Unknown email and wrong password yield the same error.
	_, _, errUnknown := f.service.Login(ctx, "absent@x.com", "A_Bdv7`82T+t")
	_, _, errWrong := f.service.Login(ctx, "a@x.com", "Wrong_pass1!")
	require.ErrorIs(t, errUnknown, ErrBadCredentials)
	require.ErrorIs(t, errWrong, ErrBadCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestAuthenticate_BlacklistedAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, f.blacklist.Add(ctx, models.NewBlackListToken(pair.AccessToken, pair.RefreshToken, "system")))

	_, err = f.service.Authenticate(ctx, pair.AccessToken, "")
	require.ErrorIs(t, err, ErrInvalidAccessToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestAuthenticate_BlacklistedRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, f.blacklist.Add(ctx, models.NewBlackListToken(pair.RefreshToken, pair.RefreshToken, "system")))

	_, err = f.service.Authenticate(ctx, pair.AccessToken, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthenticate_UnknownOrDeletedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, pair, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)

	user.Deleted = true

	_, err = f.service.Authenticate(ctx, pair.AccessToken, "")
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Authenticate(context.Background(), "not-a-token", "")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestLogout_RevokesBothTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, pair, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, pair.AccessToken, pair.RefreshToken))

	_, err = f.service.Authenticate(ctx, pair.AccessToken, "")
	require.ErrorIs(t, err, ErrInvalidAccessToken)

	// The refresh token is revoked under its own value as key.
	_, err = f.service.Authenticate(ctx, pair.AccessToken, pair.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	entry, ok := f.blacklist.entries[pair.RefreshToken]
	require.True(t, ok)
	assert.Equal(t, models.TokenTypeBlacklist, entry.TokenType)
	assert.Equal(t, entry.Key, entry.AccessToken)
}

func TestLogout_CacheFailure(t *testing.T) {
	f := newFixture(t)
	f.blacklist.failing = true

	err := f.service.Logout(context.Background(), "a", "r")
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestRefresh_SubjectMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userA, _, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)

	inB := validInput()
	inB.Email = "b@x.com"
	_, pairB, err := f.service.Register(ctx, inB)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, userA, pairB.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestRefresh_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, pair, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)

	fresh, err := f.service.Refresh(ctx, user, pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, fresh)

	resolved, err := f.service.Authenticate(ctx, fresh.AccessToken, fresh.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestCreateUsers_SingleTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	list := []*models.User{
		models.NewUser("Test", "One", "one@x.com", "$2a$hash", "system"),
		models.NewUser("Test", "Two", "two@x.com", "$2a$hash", "system"),
	}
	require.NoError(t, f.service.CreateUsers(ctx, list))
	require.Len(t, f.userRepo.created, 2)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateUsers_RollsBackOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.service.Register(ctx, validInput())
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	list := []*models.User{
		models.NewUser("Test", "Dup", "a@x.com", "$2a$hash", "system"),
	}
	require.ErrorIs(t, f.service.CreateUsers(ctx, list), common.ErrorAlreadyExists)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
