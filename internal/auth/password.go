package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argonSaltLen = 16

// ArgonParams are the Argon2id cost parameters.
type ArgonParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultArgonParams follow the OWASP Argon2id recommendation.
var DefaultArgonParams = ArgonParams{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32}

var errMalformedHash = errors.New("malformed password hash")

// Hasher hashes and verifies passwords with Argon2id. Hashes are encoded in
// PHC format: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
type Hasher struct {
	params ArgonParams
}

// NewHasher returns a Hasher using p for new hashes. Verification always uses
// the parameters encoded in the stored hash.
func NewHasher(p ArgonParams) *Hasher {
	return &Hasher{params: p}
}

// Hash derives a PHC string for password with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	salt, key, p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(key))) //nolint:gosec // G115: key length fits uint32
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func decodePHC(encoded string) (salt, key []byte, p ArgonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" { //nolint:mnd // PHC has six $-separated fields
		return nil, nil, p, errMalformedHash
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, p, fmt.Errorf("%w: version", errMalformedHash)
	}
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return nil, nil, p, fmt.Errorf("%w: parameters", errMalformedHash)
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, p, fmt.Errorf("%w: salt", errMalformedHash)
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, p, fmt.Errorf("%w: key", errMalformedHash)
	}
	return salt, key, p, nil
}
