package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/YiberMelo/ChronosSuite/internal/model"
	"github.com/YiberMelo/ChronosSuite/internal/store"

	"go.uber.org/zap"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

// Authenticator registers users and decides logins. Session issuance is
// left to the caller.
type Authenticator struct {
	users store.UserStore
	log   *zap.Logger
}

func NewAuthenticator(users store.UserStore, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{users: users, log: log}
}

func validatePassword(pw string) string {
	if len(pw) < 6 {
		return "password must be at least 6 characters"
	}
	hasUpper := false
	hasSpecial := false
	for _, r := range pw {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			hasSpecial = true
		}
	}
	if !hasUpper {
		return "password must contain at least one uppercase letter"
	}
	if !hasSpecial {
		return "password must contain at least one special character"
	}
	return ""
}

func (a *Authenticator) Register(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if !usernameRegex.MatchString(username) {
		return model.User{}, newError(KindInvalidFormat, "username must be 3-30 characters (letters, numbers, _, -)")
	}
	if msg := validatePassword(password); msg != "" {
		return model.User{}, newError(KindInvalidFormat, msg)
	}

	var cred Credential
	if err := cred.SetPassword(password); err != nil {
		return model.User{}, err
	}

	created, err := a.users.CreateUser(ctx, model.User{
		Username:     username,
		PasswordHash: cred.Hash,
		PasswordSalt: cred.Salt,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.User{}, newError(KindAlreadyExists, "username already exists")
		}
		a.log.Error("create user failed", zap.Error(err))
		return model.User{}, storageFailure(err)
	}

	a.log.Info("user registered", zap.String("user_id", created.ID))
	return created, nil
}

type LoginRequest struct {
	Username string
	Password string
	// SkipTwoFactor is for callers that have already checked the second
	// factor themselves.
	SkipTwoFactor bool
}

type LoginResult struct {
	User model.User
	// TwoFactorRequired means the password matched but a code must be
	// verified before a session is issued.
	TwoFactorRequired bool
}

func (a *Authenticator) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	u, err := a.users.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		a.log.Error("user lookup failed", zap.Error(err))
		return LoginResult{}, storageFailure(err)
	}

	cred := Credential{Hash: u.PasswordHash, Salt: u.PasswordSalt}
	if !cred.VerifyPassword(req.Password) {
		a.log.Info("login rejected", zap.String("user_id", u.ID))
		return LoginResult{}, ErrInvalidCredentials
	}

	if u.TwoFactorEnabled && !req.SkipTwoFactor {
		return LoginResult{User: *u, TwoFactorRequired: true}, nil
	}
	return LoginResult{User: *u}, nil
}

// User resolves a username for callers that hold a verified session or
// challenge.
func (a *Authenticator) User(ctx context.Context, username string) (model.User, error) {
	u, err := a.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, storageFailure(err)
	}
	return *u, nil
}
