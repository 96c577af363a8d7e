package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnknownHasher = errors.New("unknown password hasher")
	ErrInvalidDigest = errors.New("invalid password digest")
)

// Hasher turns plaintext passwords into salted, irreversible digests.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(digest, plaintext string) bool
}

func NewHasher(name string, bcryptCost int) (Hasher, error) {
	switch name {
	case "bcrypt":
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, errors.Errorf("bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		return Bcrypt{Cost: bcryptCost}, nil
	case "argon2id":
		return DefaultArgon2id(), nil
	}
	return nil, errors.Wrap(ErrUnknownHasher, name)
}

// Verify checks plaintext against a digest produced by any supported hasher.
func Verify(digest, plaintext string) bool {
	if strings.HasPrefix(digest, argon2idPrefix) {
		return Argon2id{}.Verify(digest, plaintext)
	}
	return Bcrypt{}.Verify(digest, plaintext)
}

type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(plaintext string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.Cost)
	return string(bytes), err
}

func (Bcrypt) Verify(digest, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

const argon2idPrefix = "$argon2id$"

type Argon2id struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

func DefaultArgon2id() Argon2id {
	// 1 pass, 64MB memory, 4 threads, 32 bytes key
	return Argon2id{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}
}

// Hash returns a PHC formatted string: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
func (a Argon2id) Hash(plaintext string) (string, error) {
	salt, err := GenerateSalt(16)
	if err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, a.Time, a.Memory, a.Threads, a.KeyLen)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix, argon2.Version, a.Memory, a.Time, a.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify reads the parameters from the digest, so the receiver's own settings are ignored.
func (Argon2id) Verify(digest, plaintext string) bool {
	params, salt, key, err := decodeArgon2id(digest)
	if err != nil {
		return false
	}
	other := argon2.IDKey([]byte(plaintext), salt, params.Time, params.Memory, params.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1
}

func decodeArgon2id(digest string) (Argon2id, []byte, []byte, error) {
	var params Argon2id
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, ErrInvalidDigest
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &params.Threads); err != nil {
		return params, nil, nil, ErrInvalidDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrInvalidDigest
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, ErrInvalidDigest
	}
	params.KeyLen = uint32(len(key))
	return params, salt, key, nil
}

func GenerateSalt(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
