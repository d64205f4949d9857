package auth

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// localIdentityPrefix namespaces accounts created through the username-only
// register form, so they can never collide with a Google subject.
const localIdentityPrefix = "local:"

// IdentityHasher turns an identity provider subject into the value stored in
// users.hashedGoogleId.
//
// WHY A KEYED HASH AND NOT BCRYPT?
// Login looks the user up BY this value, so the hash must be deterministic:
// the same Google subject always maps to the same string. bcrypt salts every
// call and can only be verified against a known row. A keyed BLAKE2b gives a
// stable lookup key while keeping the raw Google id out of the database; the
// key is derived from the session secret, so a leaked database alone can't be
// matched against known Google ids.
type IdentityHasher struct {
	key []byte
}

// NewIdentityHasher derives a 32-byte BLAKE2b key from secret.
func NewIdentityHasher(secret string) (*IdentityHasher, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: identity secret must be at least 16 characters")
	}
	key := blake2b.Sum256([]byte(secret))
	return &IdentityHasher{key: key[:]}, nil
}

// Hash returns the hex-encoded keyed BLAKE2b-256 digest of subject.
func (h *IdentityHasher) Hash(subject string) string {
	// New256 only fails for keys longer than 64 bytes; ours is always 32.
	d, err := blake2b.New256(h.key)
	if err != nil {
		panic("auth: blake2b key: " + err.Error())
	}
	d.Write([]byte(subject))
	return hex.EncodeToString(d.Sum(nil))
}

// HashLocal returns the synthetic identity for an account registered with a
// bare username.
func (h *IdentityHasher) HashLocal(username string) string {
	return h.Hash(localIdentityPrefix + username)
}
