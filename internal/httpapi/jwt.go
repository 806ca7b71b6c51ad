package httpapi

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	challengeTokenExpiry = 5 * time.Minute

	purposeSession   = "session"
	purposeChallenge = "2fa"
)

var errWrongPurpose = errors.New("token purpose mismatch")

// tokenIssuer signs HS256 session and two-factor challenge tokens.
type tokenIssuer struct {
	key    []byte
	expiry time.Duration
	now    func() time.Time
}

// newTokenIssuer uses secret as the signing key, or a random key when it
// is empty. Tokens signed with a random key do not survive a restart.
func newTokenIssuer(secret string, expiry time.Duration) (*tokenIssuer, error) {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate jwt key: %w", err)
		}
	}
	if expiry <= 0 {
		expiry = 2 * time.Hour
	}
	return &tokenIssuer{key: key, expiry: expiry, now: time.Now}, nil
}

type tokenClaims struct {
	UserID   string
	Username string
}

func (t *tokenIssuer) sign(userID, username, purpose string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"purpose":  purpose,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

func (t *tokenIssuer) Session(userID, username string) (string, error) {
	return t.sign(userID, username, purposeSession, t.expiry)
}

// Challenge issues a short-lived token proving the password step of a
// two-factor login. It is not accepted as a session.
func (t *tokenIssuer) Challenge(userID, username string) (string, error) {
	return t.sign(userID, username, purposeChallenge, challengeTokenExpiry)
}

func (t *tokenIssuer) ParseSession(tokenStr string) (tokenClaims, error) {
	return t.parse(tokenStr, purposeSession)
}

func (t *tokenIssuer) ParseChallenge(tokenStr string) (tokenClaims, error) {
	return t.parse(tokenStr, purposeChallenge)
}

func (t *tokenIssuer) parse(tokenStr, purpose string) (tokenClaims, error) {
	token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.key, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return tokenClaims{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return tokenClaims{}, jwt.ErrSignatureInvalid
	}
	if p, _ := claims["purpose"].(string); p != purpose {
		return tokenClaims{}, errWrongPurpose
	}
	sub, _ := claims["sub"].(string)
	uname, _ := claims["username"].(string)
	return tokenClaims{UserID: sub, Username: uname}, nil
}
