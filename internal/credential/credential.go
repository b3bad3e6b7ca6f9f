// Package credential hashes and checks account passwords.
package credential

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinLength = 6
	MaxLength = 100

	DefaultTemporaryLength = 10
)

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes, the bcrypt input limit")

// Hasher is the password hashing contract used by the login flow.
type Hasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implements Hasher with x/crypto/bcrypt.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether pw matches hash. A malformed hash never matches.
func (b BcryptHasher) Verify(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash reports whether hash was produced with a different cost.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return c != b.cost()
}

// ValidateStrength checks length and character classes and returns a
// readable reason when the password is rejected.
func ValidateStrength(pw string) (bool, string) {
	n := utf8.RuneCountInString(pw)
	if n < MinLength {
		return false, fmt.Sprintf("password must be at least %d characters", MinLength)
	}
	if n > MaxLength {
		return false, fmt.Sprintf("password must not exceed %d characters", MaxLength)
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return false, "password must contain letters and digits"
	}
	return true, "password is valid"
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateTemporary returns a random alphanumeric password of the given
// length (DefaultTemporaryLength when length <= 0). Results of length two or
// more always hold a letter and a digit so they pass ValidateStrength when
// long enough.
func GenerateTemporary(length int) (string, error) {
	if length <= 0 {
		length = DefaultTemporaryLength
	}
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for {
		var letter, digit bool
		for i := range buf {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("generate password: %w", err)
			}
			c := alphabet[n.Int64()]
			buf[i] = c
			if c >= '0' && c <= '9' {
				digit = true
			} else {
				letter = true
			}
		}
		if length < 2 || (letter && digit) {
			return string(buf), nil
		}
	}
}
