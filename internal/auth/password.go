package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// saltSize is the number of random bytes per account salt.
const saltSize = 32

// WorkFactor is the bcrypt cost (2^12 = 4096 rounds).
const WorkFactor = 12

var (
	ErrEmptyPassword = errors.New("password must not be empty")
	ErrEmptySalt     = errors.New("salt must not be empty")
)

// GenerateSalt produces 32 bytes from the OS CSPRNG, base64-encoded. A
// failure to obtain secure randomness is returned as an error; there is no
// fallback to a weak source.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// HashPassword derives an irreversible digest from password+salt using bcrypt
// at the configured cost. bcrypt generates its own internal salt on top of
// the caller-supplied one: even if the internal salt were predictable, the
// account salt still defeats precomputed dictionary attacks.
func HashPassword(password, salt string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if salt == "" {
		return "", ErrEmptySalt
	}
	if cost <= 0 {
		cost = WorkFactor
	}
	digest, err := bcrypt.GenerateFromPassword(saltedInput(password, salt), cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// saltedInput concatenates password and salt. bcrypt only accepts 72 bytes
// of input, so longer combinations are compressed through SHA-256 first;
// verification applies the same rule, keeping the full password and salt
// contributing to the digest either way.
func saltedInput(password, salt string) []byte {
	combined := []byte(password + salt)
	if len(combined) <= 72 {
		return combined
	}
	sum := sha256.Sum256(combined)
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// VerifyPassword reconstructs the salted input and checks it against the
// stored digest in constant time. Any malformed digest or internal error
// yields false, never an error that could leak structure up the stack.
func VerifyPassword(password, salt, digest string) bool {
	if password == "" || salt == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), saltedInput(password, salt)) == nil
}
