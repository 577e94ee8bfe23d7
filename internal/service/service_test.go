package service

// Тесты сервисного слоя blog-api.
//
// Моки хранилищ и кэша генерируются в /mocks:
//   go generate ./internal/storage ./internal/cache
//
// Запуск:
//   go test ./internal/service -v -race -count=1

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-blog/internal/cache"
	"github.com/pribylovaa/go-blog/internal/config"
	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/storage"
	"github.com/pribylovaa/go-blog/mocks"
	"github.com/pribylovaa/go-blog/pkg/models"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-access-secret-0123456789abcdef",
		RefreshSecret:   "unit-refresh-secret-0123456789abcdef",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "go-blog",
		Audience:        []string{"go-blog-web"},
		AdminEmails:     []string{"Admin@Example.com"},
	}
}

// newSvc поднимает сервис с моками основного хранилища и хранилища комментариев
// и фиксированными часами.
func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *mocks.MockCommentStorage, *gomock.Controller) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	cs := mocks.NewMockCommentStorage(ctrl)

	svc := New(st, cs, testAuthCfg(), config.LimitsConfig{Default: 10, Max: 100})
	svc.now = func() time.Time { return testNow }

	return svc, st, cs, ctrl
}

func admin() *imodels.Principal {
	return &imodels.Principal{UserID: uuid.New(), Role: models.RoleAdmin}
}

func reader() *imodels.Principal {
	return &imodels.Principal{UserID: uuid.New(), Role: models.RoleUser}
}

func ptr[T any](v T) *T { return &v }

func requireField(t *testing.T, err error, field string) {
	t.Helper()

	require.ErrorIs(t, err, ErrInvalidArgument)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, field, ve.Field)
}

func TestRegister_OK(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	var saved *models.User
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
		saved = u
		return nil
	})
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rt *imodels.RefreshToken) error {
		require.Equal(t, testNow.Add(24*time.Hour), rt.ExpiresAt)
		require.NotEmpty(t, rt.TokenHash)
		return nil
	})

	res, err := svc.Register(context.Background(), models.RegisterInput{
		Email:    " Jane@Example.com ",
		Username: "jane_doe",
		Password: "Abcdef1!",
	})
	require.NoError(t, err)

	require.Equal(t, "jane@example.com", saved.Email)
	require.Equal(t, models.RoleUser, saved.Role)
	require.True(t, checkPassword(saved.PasswordHash, "Abcdef1!"))

	require.Equal(t, saved.ID, res.User.ID)
	require.Equal(t, "Bearer", res.Tokens.TokenType)
	require.EqualValues(t, 900, res.Tokens.ExpiresIn)
	require.NotEmpty(t, res.Tokens.RefreshToken)

	p, err := svc.Authenticate(context.Background(), res.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, saved.ID, p.UserID)
	require.Equal(t, models.RoleUser, p.Role)
}

func TestRegister_AdminEmailGetsAdminRole(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	res, err := svc.Register(context.Background(), models.RegisterInput{
		Email: "admin@example.com", Username: "admin", Password: "Abcdef1!",
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, res.User.Role)

	p, err := svc.Authenticate(context.Background(), res.Tokens.AccessToken)
	require.NoError(t, err)
	require.True(t, p.IsAdmin())
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	tests := []struct {
		name  string
		in    models.RegisterInput
		field string
	}{
		{"empty email", models.RegisterInput{Username: "jane", Password: "Abcdef1!"}, "email"},
		{"bad email", models.RegisterInput{Email: "nope", Username: "jane", Password: "Abcdef1!"}, "email"},
		{"display name email", models.RegisterInput{Email: "Jane <j@e.com>", Username: "jane", Password: "Abcdef1!"}, "email"},
		{"short username", models.RegisterInput{Email: "j@e.com", Username: "jo", Password: "Abcdef1!"}, "username"},
		{"username with space", models.RegisterInput{Email: "j@e.com", Username: "jane doe", Password: "Abcdef1!"}, "username"},
		{"empty password", models.RegisterInput{Email: "j@e.com", Username: "jane"}, "password"},
		{"weak password", models.RegisterInput{Email: "j@e.com", Username: "jane", Password: "abcdefgh"}, "password"},
		{"short password", models.RegisterInput{Email: "j@e.com", Username: "jane", Password: "Ab1!"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			requireField(t, err, tt.field)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)

	_, err := svc.Register(context.Background(), models.RegisterInput{
		Email: "jane@example.com", Username: "jane", Password: "Abcdef1!",
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	hash, err := hashPassword("Abcdef1!")
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: "jane@example.com", Role: models.RoleUser, PasswordHash: hash}

	t.Run("ok", func(t *testing.T) {
		svc, st, _, ctrl := newSvc(t)
		defer ctrl.Finish()

		st.EXPECT().UserByEmail(gomock.Any(), "jane@example.com").Return(user, nil)
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

		res, err := svc.Login(context.Background(), models.LoginInput{Email: "JANE@example.com", Password: "Abcdef1!"})
		require.NoError(t, err)
		require.Equal(t, user.ID, res.User.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, st, _, ctrl := newSvc(t)
		defer ctrl.Finish()

		st.EXPECT().UserByEmail(gomock.Any(), "jane@example.com").Return(user, nil)

		_, err := svc.Login(context.Background(), models.LoginInput{Email: "jane@example.com", Password: "Wrong1!x"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, st, _, ctrl := newSvc(t)
		defer ctrl.Finish()

		st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").Return(nil, storage.ErrNotFound)

		_, err := svc.Login(context.Background(), models.LoginInput{Email: "ghost@example.com", Password: "Abcdef1!"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("malformed email is not a validation error", func(t *testing.T) {
		svc, _, _, ctrl := newSvc(t)
		defer ctrl.Finish()

		_, err := svc.Login(context.Background(), models.LoginInput{Email: "nope", Password: "x"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestRefresh_RotatesToken(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	uid := uuid.New()
	hash := svc.hashRefresh("old-refresh")

	gomock.InOrder(
		st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).
			Return(&imodels.RefreshToken{TokenHash: hash, UserID: uid, ExpiresAt: testNow.Add(time.Hour)}, nil),
		st.EXPECT().RevokeRefreshToken(gomock.Any(), hash).Return(true, nil),
		st.EXPECT().UserByID(gomock.Any(), uid).Return(&models.User{ID: uid, Role: models.RoleUser}, nil),
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil),
	)

	tp, err := svc.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.NotEqual(t, "old-refresh", tp.RefreshToken)
	require.NotEmpty(t, tp.AccessToken)
}

func TestRefresh_Rejections(t *testing.T) {
	t.Parallel()

	uid := uuid.New()

	tests := []struct {
		name    string
		setup   func(st *mocks.MockStorage, hash string)
		wantErr error
	}{
		{
			name: "unknown",
			setup: func(st *mocks.MockStorage, hash string) {
				st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(nil, storage.ErrNotFound)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "revoked",
			setup: func(st *mocks.MockStorage, hash string) {
				st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).
					Return(&imodels.RefreshToken{UserID: uid, Revoked: true, ExpiresAt: testNow.Add(time.Hour)}, nil)
			},
			wantErr: ErrTokenRevoked,
		},
		{
			name: "expired",
			setup: func(st *mocks.MockStorage, hash string) {
				st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).
					Return(&imodels.RefreshToken{UserID: uid, ExpiresAt: testNow.Add(-time.Second)}, nil)
			},
			wantErr: ErrTokenExpired,
		},
		{
			name: "revoked concurrently",
			setup: func(st *mocks.MockStorage, hash string) {
				st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).
					Return(&imodels.RefreshToken{UserID: uid, ExpiresAt: testNow.Add(time.Hour)}, nil)
				st.EXPECT().RevokeRefreshToken(gomock.Any(), hash).Return(false, nil)
			},
			wantErr: ErrTokenRevoked,
		},
		{
			name: "user gone",
			setup: func(st *mocks.MockStorage, hash string) {
				st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).
					Return(&imodels.RefreshToken{UserID: uid, ExpiresAt: testNow.Add(time.Hour)}, nil)
				st.EXPECT().RevokeRefreshToken(gomock.Any(), hash).Return(true, nil)
				st.EXPECT().UserByID(gomock.Any(), uid).Return(nil, storage.ErrNotFound)
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _, ctrl := newSvc(t)
			defer ctrl.Finish()

			tt.setup(st, svc.hashRefresh("token"))

			_, err := svc.Refresh(context.Background(), "token")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRefresh_EmptyToken(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.Refresh(context.Background(), "  ")
	requireField(t, err, "refreshToken")
}

func TestRefresh_CacheHitSkipsLookup(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	rc := mocks.NewMockRefreshCache(ctrl)
	svc.SetRefreshCache(rc)

	uid := uuid.New()
	hash := svc.hashRefresh("cached")

	rc.EXPECT().Get(gomock.Any(), hash).
		Return(&cache.RefreshEntry{UserID: uid, ExpiresAt: testNow.Add(time.Hour)}, true, nil)
	st.EXPECT().RevokeRefreshToken(gomock.Any(), hash).Return(true, nil)
	rc.EXPECT().MarkRevoked(gomock.Any(), hash).Return(nil)
	st.EXPECT().UserByID(gomock.Any(), uid).Return(&models.User{ID: uid, Role: models.RoleUser}, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
	rc.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), 24*time.Hour).Return(nil)

	_, err := svc.Refresh(context.Background(), "cached")
	require.NoError(t, err)
}

func TestRefresh_CachedRevocationRejected(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	rc := mocks.NewMockRefreshCache(ctrl)
	svc.SetRefreshCache(rc)

	rc.EXPECT().Get(gomock.Any(), gomock.Any()).
		Return(&cache.RefreshEntry{UserID: uuid.New(), Revoked: true, ExpiresAt: testNow.Add(time.Hour)}, true, nil)

	_, err := svc.Refresh(context.Background(), "reused")
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefresh_CacheFailureFallsBackToStorage(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	rc := mocks.NewMockRefreshCache(ctrl)
	svc.SetRefreshCache(rc)

	hash := svc.hashRefresh("token")

	rc.EXPECT().Get(gomock.Any(), hash).Return(nil, false, errors.New("redis down"))
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(nil, storage.ErrNotFound)

	_, err := svc.Refresh(context.Background(), "token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		revoked bool
		err     error
		wantErr error
	}{
		{name: "active", revoked: true},
		{name: "already revoked is fine", revoked: false},
		{name: "unknown", err: storage.ErrNotFound, wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _, ctrl := newSvc(t)
			defer ctrl.Finish()

			st.EXPECT().RevokeRefreshToken(gomock.Any(), svc.hashRefresh("rt")).Return(tt.revoked, tt.err)

			err := svc.Logout(context.Background(), "rt")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := &models.User{ID: uuid.New(), Role: models.RoleUser}
	token, err := svc.generateAccessToken(context.Background(), user, testNow)
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "not.a.jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("foreign secret", func(t *testing.T) {
		other, _, _, _ := newSvc(t)
		other.auth.JWTSecret = "another-secret-another-secret-0000"

		foreign, err := other.generateAccessToken(context.Background(), user, testNow)
		require.NoError(t, err)

		_, err = svc.Authenticate(context.Background(), foreign)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later, _, _, _ := newSvc(t)
		later.now = func() time.Time { return testNow.Add(time.Hour) }

		_, err := later.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestGenerateRefreshToken_CollisionLimit(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists).Times(5)

	_, err := svc.generateRefreshToken(context.Background(), uuid.New(), testNow)
	require.ErrorIs(t, err, ErrRefreshTokenCollision)
}

func TestCleanupExpiredTokens(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().DeleteExpiredTokens(gomock.Any(), testNow).Return(int64(3), nil)

	n, err := svc.CleanupExpiredTokens(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	p := reader()
	st.EXPECT().UserByID(gomock.Any(), p.UserID).
		Return(&models.User{ID: p.UserID, Username: "old", Bio: ptr("bio"), Avatar: ptr("https://cdn/a.png")}, nil)
	st.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
		require.Equal(t, "new_name", u.Username)
		require.Nil(t, u.Bio)
		require.Equal(t, "https://cdn/a.png", *u.Avatar)
		require.Equal(t, testNow, u.UpdatedAt)
		return nil
	})

	_, err := svc.UpdateProfile(context.Background(), p, models.UpdateProfileInput{
		Username: ptr("new_name"),
		Bio:      ptr(""),
	})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(context.Background(), nil, models.UpdateProfileInput{})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateProfile_BadAvatar(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	p := reader()
	st.EXPECT().UserByID(gomock.Any(), p.UserID).Return(&models.User{ID: p.UserID}, nil)

	_, err := svc.UpdateProfile(context.Background(), p, models.UpdateProfileInput{Avatar: ptr("javascript:alert(1)")})
	requireField(t, err, "avatar")
}

func TestHealth(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().Ping(gomock.Any()).Return(nil)
	require.Equal(t, &models.Health{Status: "ok", Database: "up"}, svc.Health(context.Background()))

	st.EXPECT().Ping(gomock.Any()).Return(errors.New("conn refused"))
	require.Equal(t, &models.Health{Status: "degraded", Database: "down"}, svc.Health(context.Background()))
}
