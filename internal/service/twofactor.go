package service

import (
	"bytes"
	"context"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/YiberMelo/ChronosSuite/internal/store"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const (
	totpSecretSize = 20
	totpPeriod     = 30
	// totpSkew accepts the previous and next step to absorb clock drift.
	totpSkew    = 1
	qrImageSize = 256
)

// CodeGenerator produces secrets and time-based one-time codes.
type CodeGenerator interface {
	// NewSecret returns a fresh base32 secret and its provisioning URI.
	NewSecret(issuer, account string) (secret, uri string, err error)
	Code(secret string, t time.Time) (string, error)
	Verify(secret, code string, t time.Time, skew uint) bool
}

// CodeRenderer turns a provisioning URI into a scannable PNG image.
type CodeRenderer interface {
	Render(uri string) ([]byte, error)
}

// TOTP implements CodeGenerator and CodeRenderer with RFC 6238 defaults:
// SHA1, six digits, 30 second steps.
type TOTP struct{}

func (TOTP) NewSecret(issuer, account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func (TOTP) Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, validateOpts(0))
}

func (TOTP) Verify(secret, code string, t time.Time, skew uint) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, t, validateOpts(skew))
	return err == nil && ok
}

func (TOTP) Render(uri string) ([]byte, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse provisioning uri: %w", err)
	}
	img, err := key.Image(qrImageSize, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func validateOpts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

type SecretSetup struct {
	QRCodeImage string `json:"qr_code_image"` // data URI, PNG
	ManualCode  string `json:"manual_code"`
	URI         string `json:"uri"`
}

// TwoFactorManager handles enrollment and verification of time-based codes
// bound to a user account.
type TwoFactorManager struct {
	users    store.UserStore
	codes    CodeGenerator
	renderer CodeRenderer
	issuer   string
	now      Clock
	log      *zap.Logger
}

type TwoFactorOptions struct {
	Issuer   string
	Codes    CodeGenerator
	Renderer CodeRenderer
	Now      Clock
}

func NewTwoFactorManager(users store.UserStore, opts TwoFactorOptions, log *zap.Logger) *TwoFactorManager {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Issuer == "" {
		opts.Issuer = "ChronosSuite"
	}
	if opts.Codes == nil {
		opts.Codes = TOTP{}
	}
	if opts.Renderer == nil {
		opts.Renderer = TOTP{}
	}
	return &TwoFactorManager{
		users:    users,
		codes:    opts.Codes,
		renderer: opts.Renderer,
		issuer:   opts.Issuer,
		now:      opts.Now,
		log:      log,
	}
}

// GenerateSecret creates a new secret for username without persisting it.
func (m *TwoFactorManager) GenerateSecret(username string) (SecretSetup, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return SecretSetup{}, newError(KindInvalidFormat, "username is required")
	}

	secret, uri, err := m.codes.NewSecret(m.issuer, username)
	if err != nil {
		return SecretSetup{}, &Error{Kind: KindInternal, Message: "could not generate secret", Err: err}
	}
	img, err := m.renderer.Render(uri)
	if err != nil {
		return SecretSetup{}, &Error{Kind: KindInternal, Message: "could not render qr code", Err: err}
	}

	return SecretSetup{
		QRCodeImage: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
		ManualCode:  secret,
		URI:         uri,
	}, nil
}

// VerifyCode checks code against the user's stored secret.
func (m *TwoFactorManager) VerifyCode(ctx context.Context, username, code string) error {
	u, err := m.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		m.log.Error("user lookup failed", zap.Error(err))
		return storageFailure(err)
	}
	if !u.TwoFactorEnabled || u.TwoFactorSecret == "" {
		return ErrNotEnrolled
	}
	if !m.codes.Verify(u.TwoFactorSecret, code, m.now.utc(), totpSkew) {
		m.log.Info("two-factor code rejected", zap.String("user_id", u.ID))
		return ErrInvalidCode
	}
	return nil
}

// AssignSecret persists secret for username and enables two-factor. There
// is no re-enrollment: an enrolled user is rejected.
func (m *TwoFactorManager) AssignSecret(ctx context.Context, username, secret string) error {
	u, err := m.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		m.log.Error("user lookup failed", zap.Error(err))
		return storageFailure(err)
	}
	if u.TwoFactorEnabled {
		return ErrAlreadyEnrolled
	}

	secret = normalizeSecret(secret)
	if secret == "" {
		return ErrMissingSecret
	}
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret); err != nil {
		return newError(KindInvalidFormat, "secret is not valid base32")
	}

	if err := m.users.EnableTwoFactor(ctx, u.ID, secret); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return ErrAlreadyEnrolled
		case errors.Is(err, store.ErrNotFound):
			return ErrUserNotFound
		}
		m.log.Error("enable two-factor failed", zap.String("user_id", u.ID), zap.Error(err))
		return storageFailure(err)
	}

	m.log.Info("two-factor enabled", zap.String("user_id", u.ID))
	return nil
}

// VerifyTempCode checks code against a secret that has not been saved yet.
func (m *TwoFactorManager) VerifyTempCode(code, secret string) error {
	secret = normalizeSecret(secret)
	if secret == "" {
		return ErrMissingSecret
	}
	if !m.codes.Verify(secret, code, m.now.utc(), totpSkew) {
		return ErrInvalidCode
	}
	return nil
}

func normalizeSecret(s string) string {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	return strings.TrimRight(s, "=")
}
