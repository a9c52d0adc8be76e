package lobby

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes locked-session passwords and checks join attempts against them
type Hasher interface {
	Hash(password string) (string, error)
	Matches(hash, password string) bool
}

// BcryptHasher hashes a sha256 digest of the password with bcrypt.
// The digest keeps bcrypt's input under its 72 byte limit for any password.
type BcryptHasher struct {
	Cost int
}

var _ Hasher = BcryptHasher{}

func (h BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(passwordKey(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash session password: %w", err)
	}
	return string(hash), nil
}

func (h BcryptHasher) Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), passwordKey(password)) == nil
}

// passwordKey is base64 so the bcrypt input never contains a NUL byte
func passwordKey(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// passwordCheck is the outcome of checking a join password against one hash
type passwordCheck struct {
	hash string
	ok   bool
}

// verify reports whether password opens a session whose hash is hash.
// A check made against the same hash is reused, otherwise the hasher runs again.
func (p passwordCheck) verify(h Hasher, hash, password string) bool {
	if p.hash != "" && p.hash == hash {
		return p.ok
	}
	return h.Matches(hash, password)
}
