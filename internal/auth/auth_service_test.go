// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/internal/auth/mocks"
	"github.com/VarshithSidhoju/sign-loginfull/pkg/errutil"
)

type serviceFixture struct {
	users  *mocks.MockUserRepository
	hasher *mocks.MockPasswordHasher
	tokens *mocks.MockTokenIssuer
	svc    *auth.Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		users:  mocks.NewMockUserRepository(t),
		hasher: mocks.NewMockPasswordHasher(t),
		tokens: mocks.NewMockTokenIssuer(t),
	}
	svc, err := auth.NewService(f.users, f.hasher, f.tokens)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func existingUser() *auth.User {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &auth.User{
		ID:           ulid.Make(),
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "$argon2id$stored",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestNewService_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		users       auth.UserRepository
		hasher      auth.PasswordHasher
		tokens      auth.TokenIssuer
		expectError string
	}{
		{
			name:        "nil user repository",
			hasher:      mocks.NewMockPasswordHasher(t),
			tokens:      mocks.NewMockTokenIssuer(t),
			expectError: "user repository is required",
		},
		{
			name:        "nil password hasher",
			users:       mocks.NewMockUserRepository(t),
			tokens:      mocks.NewMockTokenIssuer(t),
			expectError: "password hasher is required",
		},
		{
			name:        "nil token issuer",
			users:       mocks.NewMockUserRepository(t),
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "token issuer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.users, tt.hasher, tt.tokens)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestNewServiceWithLogger_NilLogger(t *testing.T) {
	svc, err := auth.NewServiceWithLogger(
		mocks.NewMockUserRepository(t),
		mocks.NewMockPasswordHasher(t),
		mocks.NewMockTokenIssuer(t),
		nil,
	)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "logger")
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("creates user and issues token", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "secret1").Return("$argon2id$new", nil)
		f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			return u.Name == "Ada" && u.Email == "ada@example.com" && u.PasswordHash == "$argon2id$new"
		})).Return(nil)
		f.tokens.On("Issue", mock.AnythingOfType("ulid.ULID")).Return(auth.IssuedToken{Token: "tok", ExpiresAt: expires}, nil)

		res, err := f.svc.Register(ctx, " Ada ", "ADA@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "tok", res.Token)
		assert.Equal(t, expires, res.ExpiresAt)
		assert.Equal(t, "Ada", res.User.Name)
		assert.Equal(t, "ada@example.com", res.User.Email)
		assert.NotEmpty(t, res.User.ID)
	})

	t.Run("token subject is the created user", func(t *testing.T) {
		f := newServiceFixture(t)

		var created *auth.User
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "secret1").Return("h", nil)
		f.users.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).
			Run(func(args mock.Arguments) { created = args.Get(1).(*auth.User) }).
			Return(nil)
		f.tokens.On("Issue", mock.AnythingOfType("ulid.ULID")).
			Return(func(id ulid.ULID) (auth.IssuedToken, error) {
				return auth.IssuedToken{Token: id.String()}, nil
			})

		res, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, created.ID.String(), res.Token)
		assert.Equal(t, created.ID.String(), res.User.ID)
	})

	t.Run("rejects email already registered in any case", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(existingUser(), nil)

		res, err := f.svc.Register(ctx, "Ada", "Ada@Example.com", "secret1")
		require.Error(t, err)
		assert.Nil(t, res)
		errutil.AssertErrorCode(t, err, auth.CodeEmailTaken)
		assert.Equal(t, auth.KindValidation, auth.KindOf(err))
	})

	t.Run("race loser on unique constraint gets validation error", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "secret1").Return("h", nil)
		f.users.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).
			Return(oops.Code("USER_EMAIL_TAKEN").Wrap(auth.ErrEmailTaken))

		_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeEmailTaken)
	})

	validation := []struct {
		name     string
		userName string
		email    string
		password string
		code     string
	}{
		{"blank name", "   ", "ada@example.com", "secret1", auth.CodeInvalidName},
		{"bad email", "Ada", "not-an-email", "secret1", auth.CodeInvalidEmail},
		{"short password", "Ada", "ada@example.com", "12345", auth.CodeInvalidPassword},
	}
	for _, tt := range validation {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			_, err := f.svc.Register(ctx, tt.userName, tt.email, tt.password)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.Equal(t, auth.KindValidation, auth.KindOf(err))
		})
	}

	t.Run("repository failure is internal", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, errors.New("connection refused"))

		_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
		assert.Equal(t, auth.KindInternal, auth.KindOf(err))
	})

	t.Run("token failure is internal", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "secret1").Return("h", nil)
		f.users.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).Return(nil)
		f.tokens.On("Issue", mock.AnythingOfType("ulid.ULID")).Return(auth.IssuedToken{}, errors.New("signing failed"))

		_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials issue token", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "secret1", user.PasswordHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", user.PasswordHash).Return(false)
		f.tokens.On("Issue", user.ID).Return(auth.IssuedToken{Token: "tok"}, nil)

		res, err := f.svc.Login(ctx, "  ADA@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "tok", res.Token)
		assert.Equal(t, user.ID.String(), res.User.ID)
	})

	t.Run("unknown email still verifies against dummy hash", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Verify", "secret1", mock.MatchedBy(func(h string) bool {
			return len(h) > 0
		})).Return(false, nil)

		res, err := f.svc.Login(ctx, "ghost@example.com", "secret1")
		require.Error(t, err)
		assert.Nil(t, res)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
		errutil.AssertNoErrorContext(t, err, "password", "password_hash")
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Verify", "wrong-pass", user.PasswordHash).Return(false, nil)
		f.hasher.On("Verify", "wrong-pass", mock.AnythingOfType("string")).Return(false, nil)

		_, wrongPass := f.svc.Login(ctx, "ada@example.com", "wrong-pass")
		_, unknown := f.svc.Login(ctx, "ghost@example.com", "wrong-pass")
		require.Error(t, wrongPass)
		require.Error(t, unknown)
		assert.Equal(t, wrongPass.Error(), unknown.Error())
		assert.Equal(t, auth.KindAuth, auth.KindOf(wrongPass))
		assert.Equal(t, auth.KindAuth, auth.KindOf(unknown))
	})

	t.Run("corrupt stored hash is internal", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "secret1", user.PasswordHash).Return(false, errors.New("bad hash"))

		_, err := f.svc.Login(ctx, "ada@example.com", "secret1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
		errutil.AssertNoErrorContext(t, err, "password", "password_hash")
	})

	t.Run("lookup failure is internal", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, errors.New("timeout"))

		_, err := f.svc.Login(ctx, "ada@example.com", "secret1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})

	t.Run("legacy hash is upgraded on success", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		user.PasswordHash = "$2a$10$legacy"

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "secret1", "$2a$10$legacy").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "$2a$10$legacy").Return(true)
		f.hasher.On("Hash", "secret1").Return("$argon2id$upgraded", nil)
		f.users.On("Update", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			return u.PasswordHash == "$argon2id$upgraded" && u.Email == "ada@example.com"
		})).Return(nil)
		f.tokens.On("Issue", user.ID).Return(auth.IssuedToken{Token: "tok"}, nil)

		res, err := f.svc.Login(ctx, "ada@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "tok", res.Token)
	})

	t.Run("upgrade failure is logged and login succeeds", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		tokens := mocks.NewMockTokenIssuer(t)
		svc, err := auth.NewServiceWithLogger(users, hasher, tokens, logger)
		require.NoError(t, err)

		user := existingUser()
		users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		hasher.On("Verify", "secret1", user.PasswordHash).Return(true, nil)
		hasher.On("NeedsUpgrade", user.PasswordHash).Return(true)
		hasher.On("Hash", "secret1").Return("$argon2id$upgraded", nil)
		users.On("Update", mock.Anything, mock.AnythingOfType("*auth.User")).Return(errors.New("db down"))
		tokens.On("Issue", user.ID).Return(auth.IssuedToken{Token: "tok"}, nil)

		res, err := svc.Login(ctx, "ada@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, "tok", res.Token)
		assert.Contains(t, buf.String(), "password hash upgrade failed")
		assert.Contains(t, buf.String(), user.ID.String())
	})
}

func TestService_GetProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("returns public profile", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		p, err := f.svc.GetProfile(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Profile(), *p)
	})

	t.Run("deleted user is not found", func(t *testing.T) {
		f := newServiceFixture(t)
		id := ulid.Make()
		f.users.On("GetByID", mock.Anything, id).Return(nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound))

		_, err := f.svc.GetProfile(ctx, id)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
		assert.Equal(t, auth.KindNotFound, auth.KindOf(err))
	})

	t.Run("repository failure is internal", func(t *testing.T) {
		f := newServiceFixture(t)
		id := ulid.Make()
		f.users.On("GetByID", mock.Anything, id).Return(nil, errors.New("boom"))

		_, err := f.svc.GetProfile(ctx, id)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_GET_PROFILE_FAILED")
	})
}

func strPtr(s string) *string { return &s }

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("updates only supplied name", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.users.On("Update", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			return u.Name == "Ada L" &&
				u.Email == user.Email &&
				u.PasswordHash == user.PasswordHash &&
				u.UpdatedAt.After(user.UpdatedAt)
		})).Return(nil)

		p, err := f.svc.UpdateProfile(ctx, user.ID, auth.ProfileUpdate{Name: strPtr("  Ada L ")})
		require.NoError(t, err)
		assert.Equal(t, "Ada L", p.Name)
		assert.Equal(t, user.Email, p.Email)
		assert.Equal(t, user.CreatedAt, p.CreatedAt)
	})

	t.Run("password is re-hashed, never stored verbatim", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.hasher.On("Hash", "brand-new").Return("$argon2id$fresh", nil)
		f.users.On("Update", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			return u.PasswordHash == "$argon2id$fresh" && u.Name == user.Name
		})).Return(nil)

		_, err := f.svc.UpdateProfile(ctx, user.ID, auth.ProfileUpdate{Password: strPtr("brand-new")})
		require.NoError(t, err)
	})

	t.Run("new email is checked against other accounts", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		other := existingUser()
		other.Email = "grace@example.com"

		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.users.On("GetByEmail", mock.Anything, "grace@example.com").Return(other, nil)

		_, err := f.svc.UpdateProfile(ctx, user.ID, auth.ProfileUpdate{Email: strPtr("Grace@Example.com")})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeEmailTaken)
	})

	t.Run("free email is applied", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, auth.ErrNotFound)
		f.users.On("Update", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			return u.Email == "new@example.com"
		})).Return(nil)

		p, err := f.svc.UpdateProfile(ctx, user.ID, auth.ProfileUpdate{Email: strPtr("NEW@example.com")})
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", p.Email)
	})

	t.Run("own email in different case is not a conflict", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		p, err := f.svc.UpdateProfile(ctx, user.ID, auth.ProfileUpdate{Email: strPtr("ADA@EXAMPLE.COM")})
		require.NoError(t, err)
		assert.Equal(t, user.Email, p.Email)
		assert.Equal(t, user.UpdatedAt, p.UpdatedAt)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		p, err := f.svc.UpdateProfile(ctx, user.ID, auth.ProfileUpdate{})
		require.NoError(t, err)
		assert.Equal(t, user.Profile(), *p)
	})

	t.Run("constraint race on email is validation error", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, auth.ErrNotFound)
		f.users.On("Update", mock.Anything, mock.AnythingOfType("*auth.User")).Return(auth.ErrEmailTaken)

		_, err := f.svc.UpdateProfile(ctx, user.ID, auth.ProfileUpdate{Email: strPtr("new@example.com")})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeEmailTaken)
	})

	t.Run("user deleted between read and write", func(t *testing.T) {
		f := newServiceFixture(t)
		user := existingUser()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.users.On("Update", mock.Anything, mock.AnythingOfType("*auth.User")).Return(auth.ErrNotFound)

		_, err := f.svc.UpdateProfile(ctx, user.ID, auth.ProfileUpdate{Name: strPtr("Other")})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
	})

	t.Run("missing user", func(t *testing.T) {
		f := newServiceFixture(t)
		id := ulid.Make()
		f.users.On("GetByID", mock.Anything, id).Return(nil, auth.ErrNotFound)

		_, err := f.svc.UpdateProfile(ctx, id, auth.ProfileUpdate{Name: strPtr("x")})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
	})

	invalid := []struct {
		name   string
		update auth.ProfileUpdate
		code   string
	}{
		{"blank name", auth.ProfileUpdate{Name: strPtr(" ")}, auth.CodeInvalidName},
		{"bad email", auth.ProfileUpdate{Email: strPtr("nope")}, auth.CodeInvalidEmail},
		{"short password", auth.ProfileUpdate{Password: strPtr("123")}, auth.CodeInvalidPassword},
	}
	for _, tt := range invalid {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			user := existingUser()
			f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

			_, err := f.svc.UpdateProfile(ctx, user.ID, tt.update)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestService_ListUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("returns profiles in repository order", func(t *testing.T) {
		f := newServiceFixture(t)
		a, b := existingUser(), existingUser()
		b.Email = "grace@example.com"
		f.users.On("List", mock.Anything).Return([]*auth.User{a, b}, nil)

		got, err := f.svc.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, a.Profile(), got[0])
		assert.Equal(t, b.Profile(), got[1])
	})

	t.Run("empty store yields empty slice", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("List", mock.Anything).Return(nil, nil)

		got, err := f.svc.ListUsers(ctx)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("repository failure", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("List", mock.Anything).Return(nil, errors.New("boom"))

		_, err := f.svc.ListUsers(ctx)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LIST_USERS_FAILED")
	})
}
