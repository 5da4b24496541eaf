package filevault_test

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/math-dev-24/filevault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestService_IssueKey(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()
		user := filevault.User{ID: 7, Email: "ada@example.com", PasswordHash: hashPassword(t, "correct horse")}

		var stored filevault.NewAPIKey
		repo.On("GetUser", ctx, int64(7)).Return(user, nil)
		repo.On("CreateAPIKey", ctx, mock.Anything).Run(func(args mock.Arguments) {
			stored = args.Get(1).(filevault.NewAPIKey)
		}).Return(filevault.APIKey{ID: 1, UserID: 7, ExpiresAt: testNow.Add(24 * time.Hour)}, nil)

		issued, err := service.IssueKey(ctx, 7, "correct horse")
		require.NoError(t, err)

		assert.Len(t, issued.Token, 64)
		_, decodeErr := hex.DecodeString(issued.Token)
		assert.NoError(t, decodeErr)

		assert.Equal(t, int64(7), stored.UserID)
		assert.Equal(t, testNow.Add(24*time.Hour), stored.ExpiresAt)
		assert.Equal(t, filevault.HashToken(issued.Token), stored.TokenHash)
		assert.Equal(t, issued.Token[:8], stored.Prefix)
		assert.NotContains(t, stored.TokenHash, issued.Token)
		repo.AssertExpectations(t)
	})

	t.Run("two keys differ", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()
		user := filevault.User{ID: 7, PasswordHash: hashPassword(t, "correct horse")}

		repo.On("GetUser", ctx, int64(7)).Return(user, nil)
		repo.On("CreateAPIKey", ctx, mock.Anything).Return(filevault.APIKey{}, nil)

		a, err := service.IssueKey(ctx, 7, "correct horse")
		require.NoError(t, err)
		b, err := service.IssueKey(ctx, 7, "correct horse")
		require.NoError(t, err)
		assert.NotEqual(t, a.Token, b.Token)
	})

	t.Run("error - bad password", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()
		user := filevault.User{ID: 7, PasswordHash: hashPassword(t, "correct horse")}

		repo.On("GetUser", ctx, int64(7)).Return(user, nil)

		_, err := service.IssueKey(ctx, 7, "battery staple")
		assert.ErrorIs(t, err, filevault.ErrBadPassword)
		assert.ErrorIs(t, err, filevault.ErrUnauthenticated)
		repo.AssertNotCalled(t, "CreateAPIKey")
	})

	t.Run("error - unknown user", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetUser", ctx, int64(404)).Return(filevault.User{}, filevault.ErrNotFound)

		_, err := service.IssueKey(ctx, 404, "whatever")
		assert.ErrorIs(t, err, filevault.ErrUserNotFound)
	})

	t.Run("error - store failure", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()
		user := filevault.User{ID: 7, PasswordHash: hashPassword(t, "correct horse")}

		repo.On("GetUser", ctx, int64(7)).Return(user, nil)
		repo.On("CreateAPIKey", ctx, mock.Anything).Return(filevault.APIKey{}, errors.New("database error"))

		_, err := service.IssueKey(ctx, 7, "correct horse")
		assert.Error(t, err)
	})
}

func TestService_Authenticate(t *testing.T) {
	const token = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	user := filevault.User{ID: 7, Email: "ada@example.com"}
	key := filevault.APIKey{ID: 1, UserID: 7, ExpiresAt: testNow.Add(time.Hour)}

	withClock := func(at time.Time) func(*filevault.ServiceConfig) {
		return func(c *filevault.ServiceConfig) { c.Now = func() time.Time { return at } }
	}

	tests := []struct {
		name    string
		now     time.Time
		wantErr bool
	}{
		{name: "well before expiry", now: testNow, wantErr: false},
		{name: "1ms before expiry", now: key.ExpiresAt.Add(-time.Millisecond), wantErr: false},
		{name: "exactly at expiry", now: key.ExpiresAt, wantErr: true},
		{name: "1ms after expiry", now: key.ExpiresAt.Add(time.Millisecond), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo := newTestService(t, new(SpyFileStorage), withClock(tt.now))
			ctx := context.Background()

			repo.On("GetAPIKeyByHash", ctx, filevault.HashToken(token)).Return(key, nil)
			repo.On("GetUser", ctx, int64(7)).Return(user, nil).Maybe()

			got, err := service.Authenticate(ctx, token)
			if tt.wantErr {
				assert.ErrorIs(t, err, filevault.ErrUnauthenticated)
				repo.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user, got)
		})
	}

	t.Run("missing key", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)

		_, err := service.Authenticate(context.Background(), "")
		assert.ErrorIs(t, err, filevault.ErrUnauthenticated)
		repo.AssertNotCalled(t, "GetAPIKeyByHash")
	})

	t.Run("unknown key", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetAPIKeyByHash", ctx, filevault.HashToken("nope")).Return(filevault.APIKey{}, filevault.ErrNotFound)

		_, err := service.Authenticate(ctx, "nope")
		assert.ErrorIs(t, err, filevault.ErrUnauthenticated)
		assert.NotErrorIs(t, err, filevault.ErrNotFound)
	})

	t.Run("store failure is not unauthenticated", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetAPIKeyByHash", ctx, mock.Anything).Return(filevault.APIKey{}, errors.New("connection refused"))

		_, err := service.Authenticate(ctx, token)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, filevault.ErrUnauthenticated)
	})

	t.Run("owner missing", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()

		repo.On("GetAPIKeyByHash", ctx, mock.Anything).Return(key, nil)
		repo.On("GetUser", ctx, int64(7)).Return(filevault.User{}, filevault.ErrNotFound)

		_, err := service.Authenticate(ctx, token)
		assert.ErrorIs(t, err, filevault.ErrUnauthenticated)
	})
}

func TestService_PruneExpiredKeys(t *testing.T) {
	t.Run("deletes keys expired at now", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()

		repo.On("DeleteExpiredAPIKeys", ctx, testNow).Return(int64(3), nil)

		n, err := service.PruneExpiredKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("store failure", func(t *testing.T) {
		service, repo, _ := NewSpyService(t)
		ctx := context.Background()

		repo.On("DeleteExpiredAPIKeys", ctx, testNow).Return(int64(0), errors.New("boom"))

		_, err := service.PruneExpiredKeys(ctx)
		assert.Error(t, err)
	})
}
