package otp

import (
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// ErrCodeLength is returned by GenerateCode for a non-positive length.
var ErrCodeLength = errors.New("otp: code length must be positive")

var ten = big.NewInt(10)

// GenerateCode returns a numeric code of the given length drawn uniformly from crypto/rand.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", ErrCodeLength
	}
	s := make([]byte, length)
	for i := range s {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		s[i] = '0' + byte(d.Int64())
	}
	return string(s), nil
}

// codeHashCost keeps a verify (current code plus up to MaxSuperseded old ones) in the low milliseconds.
const codeHashCost = 6

// HashCode returns a salted bcrypt hash of the code. Only hashes are stored.
func HashCode(code string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(code), codeHashCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CodeEqual reports whether code matches storedHash. Malformed hashes never match.
func CodeEqual(code, storedHash string) bool {
	if code == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(code)) == nil
}
