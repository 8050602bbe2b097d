// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("signlogin/auth")

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorCode(err))
	}
	span.End()
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Profile   `json:"user"`
}

// ProfileUpdate carries a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Password *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Password == nil
}

// Service implements registration, login and profile management.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer) (*Service, error) {
	return NewServiceWithLogger(users, hasher, tokens, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a new Service that logs best-effort failures.
func NewServiceWithLogger(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}, nil
}

// dummyPasswordHash is verified when no user matches so that unknown emails
// and wrong passwords take comparable time. It never matches any password.
//
//nolint:gosec // G101: not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func errEmailTaken() error {
	return oops.Code(CodeEmailTaken).Errorf("email is already registered")
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func errUserNotFound(id ulid.ULID) error {
	return oops.Code(CodeUserNotFound).With("user_id", id.String()).Errorf("user not found")
}

// Register creates an account and returns a session token for it.
func (s *Service) Register(ctx context.Context, name, email, password string) (_ *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer func() { endSpan(span, err) }()

	name = NormalizeName(name)
	email = NormalizeEmail(email)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, lookupErr := s.users.GetByEmail(ctx, email); lookupErr == nil {
		return nil, errEmailTaken()
	} else if !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check email").
			Wrap(lookupErr)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(name, email, hash)
	if err != nil {
		return nil, err
	}

	if createErr := s.users.Create(ctx, user); createErr != nil {
		// Lost a concurrent registration race on the unique index.
		if errors.Is(createErr, ErrEmailTaken) {
			return nil, errEmailTaken()
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(createErr)
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	return s.authResult(user, "AUTH_REGISTER_FAILED")
}

// Login verifies credentials and returns a fresh session token.
// Unknown emails and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (_ *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)

	user, lookupErr := s.users.GetByEmail(ctx, email)

	var targetHash string
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, errInvalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		return nil, errInvalidCredentials()
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		span.SetAttributes(attribute.Bool("auth.hash_upgraded", true))
		s.upgradeHash(ctx, user, password)
	}

	return s.authResult(user, "AUTH_LOGIN_FAILED")
}

// upgradeHash re-hashes a legacy password hash. Failures are logged and
// do not affect the login.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			"user_id", user.ID.String(), "operation", "hash", "error", err)
		return
	}
	upgraded := *user
	upgraded.PasswordHash = newHash
	upgraded.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, &upgraded); err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			"user_id", user.ID.String(), "operation", "update", "error", err)
		return
	}
	*user = upgraded
}

// GetProfile returns the profile for the authenticated user.
func (s *Service) GetProfile(ctx context.Context, userID ulid.ULID) (*Profile, error) {
	user, err := s.getUser(ctx, userID, "AUTH_GET_PROFILE_FAILED")
	if err != nil {
		return nil, err
	}
	p := user.Profile()
	return &p, nil
}

// UpdateProfile applies a partial update. Only supplied fields change; a
// supplied password is re-hashed and a supplied email is re-checked for
// uniqueness against every other account.
func (s *Service) UpdateProfile(ctx context.Context, userID ulid.ULID, update ProfileUpdate) (_ *Profile, err error) {
	ctx, span := tracer.Start(ctx, "auth.update_profile",
		trace.WithAttributes(
			attribute.String("user.id", userID.String()),
			attribute.Bool("update.name", update.Name != nil),
			attribute.Bool("update.email", update.Email != nil),
			attribute.Bool("update.password", update.Password != nil),
		),
	)
	defer func() { endSpan(span, err) }()

	user, err := s.getUser(ctx, userID, "AUTH_UPDATE_PROFILE_FAILED")
	if err != nil {
		return nil, err
	}

	changed := *user
	dirty := false

	if update.Name != nil {
		name := NormalizeName(*update.Name)
		if err := ValidateName(name); err != nil {
			return nil, err
		}
		if name != changed.Name {
			changed.Name = name
			dirty = true
		}
	}

	if update.Email != nil {
		email := NormalizeEmail(*update.Email)
		if err := ValidateEmail(email); err != nil {
			return nil, err
		}
		if email != changed.Email {
			owner, err := s.users.GetByEmail(ctx, email)
			switch {
			case err == nil && owner.ID != userID:
				return nil, errEmailTaken()
			case err != nil && !errors.Is(err, ErrNotFound):
				return nil, oops.Code("AUTH_UPDATE_PROFILE_FAILED").
					With("operation", "check email").
					With("user_id", userID.String()).
					Wrap(err)
			}
			changed.Email = email
			dirty = true
		}
	}

	if update.Password != nil {
		if err := ValidatePassword(*update.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, oops.Code("AUTH_UPDATE_PROFILE_FAILED").
				With("operation", "hash password").
				With("user_id", userID.String()).
				Wrap(err)
		}
		changed.PasswordHash = hash
		dirty = true
	}

	if !dirty {
		p := user.Profile()
		return &p, nil
	}

	changed.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, &changed); err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			return nil, errEmailTaken()
		case errors.Is(err, ErrNotFound):
			return nil, errUserNotFound(userID)
		}
		return nil, oops.Code("AUTH_UPDATE_PROFILE_FAILED").
			With("operation", "update user").
			With("user_id", userID.String()).
			Wrap(err)
	}

	p := changed.Profile()
	return &p, nil
}

// ListUsers returns every registered user's public profile.
func (s *Service) ListUsers(ctx context.Context) ([]Profile, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code("AUTH_LIST_USERS_FAILED").
			With("operation", "list users").
			Wrap(err)
	}
	profiles := make([]Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return profiles, nil
}

func (s *Service) getUser(ctx context.Context, userID ulid.ULID, failCode string) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, errUserNotFound(userID)
	}
	if err != nil {
		return nil, oops.Code(failCode).
			With("operation", "get user by id").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, nil
}

func (s *Service) authResult(user *User, failCode string) (*AuthResult, error) {
	issued, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, oops.Code(failCode).
			With("operation", "issue token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return &AuthResult{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		User:      user.Profile(),
	}, nil
}
