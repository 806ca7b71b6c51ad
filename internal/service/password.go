package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordSaltSize   = 16
	passwordKeySize    = 32
	passwordIterations = 100_000
)

// Credential is a salted PBKDF2-SHA256 password hash, both parts base64
// encoded for storage.
type Credential struct {
	Hash string
	Salt string
}

// SetPassword replaces the credential with a fresh salt and derived key.
func (c *Credential) SetPassword(plaintext string) error {
	if plaintext == "" {
		return newError(KindInvalidFormat, "password is required")
	}

	salt := make([]byte, passwordSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(plaintext), salt, passwordIterations, passwordKeySize, sha256.New)
	c.Hash = base64.StdEncoding.EncodeToString(key)
	c.Salt = base64.StdEncoding.EncodeToString(salt)
	return nil
}

// VerifyPassword reports whether plaintext matches. It fails closed: a
// missing or undecodable salt or hash is a mismatch.
func (c Credential) VerifyPassword(plaintext string) bool {
	if plaintext == "" || c.Salt == "" || c.Hash == "" {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(c.Salt)
	if err != nil {
		return false
	}

	key := pbkdf2.Key([]byte(plaintext), salt, passwordIterations, passwordKeySize, sha256.New)
	encoded := base64.StdEncoding.EncodeToString(key)
	return subtle.ConstantTimeCompare([]byte(encoded), []byte(c.Hash)) == 1
}
