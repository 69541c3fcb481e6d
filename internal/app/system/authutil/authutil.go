// Package authutil holds the password policy and credential helpers used by
// the accounts service.
package authutil

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt ignores bytes past 72

	MinBcryptCost     = 10
	DefaultBcryptCost = 12

	// VerifyTokenBytes is the entropy of an email verification token (hex encoded).
	VerifyTokenBytes = 32
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrPasswordCommon   = errors.New("password is too common")
)

var commonPasswords = map[string]bool{
	"password": true, "12345678": true, "123456789": true, "qwertyui": true,
	"iloveyou": true, "football": true, "password1": true, "sunshine": true,
	"letmein1": true, "baseball": true, "trustno1": true, "welcome1": true,
}

// ValidatePassword enforces the password policy. Errors match one of the
// ErrPassword* sentinels.
func ValidatePassword(pw string) error {
	if len([]rune(pw)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(pw) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if commonPasswords[strings.ToLower(pw)] {
		return ErrPasswordCommon
	}
	return nil
}

// Hasher hashes and checks passwords with a fixed bcrypt cost.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher. Costs below MinBcryptCost are raised to it.
func NewHasher(cost int) *Hasher {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the bcrypt cost in use.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns the bcrypt hash of pw.
func (h *Hasher) Hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Check reports whether pw matches hash.
func (h *Hasher) Check(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// CheckMissing burns the same work as a real Check. Call it when the account
// lookup missed so response timing does not reveal which identifiers exist.
func (h *Hasher) CheckMissing(pw string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("globaltrotter-dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(pw))
}

// NewVerifyToken returns a random hex token for email verification links.
func NewVerifyToken() (string, error) {
	b := make([]byte, VerifyTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
