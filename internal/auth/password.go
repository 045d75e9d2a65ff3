// internal/auth/password.go
package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// ErrInvalidHash indicates that the stored password hash is in an invalid format.
var ErrInvalidHash = errors.New("the encoded hash is not in the correct format")

// ErrIncompatibleVersion indicates that the Argon2 version is incompatible.
var ErrIncompatibleVersion = errors.New("incompatible version of argon2")

// ErrUnsupportedHash is returned for hashes produced by an algorithm we cannot verify.
var ErrUnsupportedHash = errors.New("unsupported password hash algorithm")

// Params holds Argon2id hashing parameters.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams is used for every new hash.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: parallelism(),
	SaltLength:  16,
	KeyLength:   32,
}

func parallelism() uint8 {
	n := runtime.NumCPU() / 2
	if n < 1 {
		return 1
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}

// Hasher creates Argon2id hashes and verifies hashes in any supported format.
type Hasher struct {
	Params Params
}

func NewHasher(p Params) *Hasher {
	return &Hasher{Params: p}
}

// Hash returns an encoded Argon2id hash:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
func (h *Hasher) Hash(password string) (string, error) {
	p := h.Params
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify reports whether password matches encoded. Besides Argon2id it accepts
// bcrypt hashes and werkzeug "pbkdf2:" / "scrypt:" hashes carried over from
// accounts created by the earlier Node and Flask backends. A mismatch returns
// false with a nil error; a malformed hash returns an error.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	case strings.HasPrefix(encoded, "pbkdf2:"), strings.HasPrefix(encoded, "scrypt:"):
		return verifyWerkzeug(password, encoded)
	}
	return false, ErrUnsupportedHash
}

func verifyArgon2(password, encoded string) (bool, error) {
	p, salt, key, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	other := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

// decodeArgon2 parses an Argon2id encoded hash and returns its parameters, salt, and key.
func decodeArgon2(encoded string) (Params, []byte, []byte, error) {
	vals := strings.Split(encoded, "$")
	if len(vals) != 6 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(vals[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return Params{}, nil, nil, ErrIncompatibleVersion
	}

	var p Params
	if _, err := fmt.Sscanf(vals[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(vals[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	p.SaltLength = uint32(len(salt))

	key, err := base64.RawStdEncoding.Strict().DecodeString(vals[5])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}

// verifyWerkzeug checks "method$salt$hexkey" hashes where method is
// "pbkdf2:<digest>:<iterations>" or "scrypt:<n>:<r>:<p>".
func verifyWerkzeug(password, encoded string) (bool, error) {
	parts := strings.SplitN(encoded, "$", 3)
	if len(parts) != 3 {
		return false, ErrInvalidHash
	}
	method, salt := parts[0], []byte(parts[1])
	want, err := hex.DecodeString(parts[2])
	if err != nil {
		return false, ErrInvalidHash
	}

	args := strings.Split(method, ":")
	var got []byte
	switch args[0] {
	case "pbkdf2":
		digest, iterations := "sha256", 600000
		if len(args) > 1 {
			digest = args[1]
		}
		if len(args) > 2 {
			if iterations, err = strconv.Atoi(args[2]); err != nil {
				return false, ErrInvalidHash
			}
		}
		fn, size, err := digestFunc(digest)
		if err != nil {
			return false, err
		}
		got = pbkdf2.Key([]byte(password), salt, iterations, size, fn)
	case "scrypt":
		n, r, p := 32768, 8, 1
		if len(args) == 4 {
			vals := make([]int, 3)
			for i, a := range args[1:] {
				if vals[i], err = strconv.Atoi(a); err != nil {
					return false, ErrInvalidHash
				}
			}
			n, r, p = vals[0], vals[1], vals[2]
		}
		got, err = scrypt.Key([]byte(password), salt, n, r, p, 64)
		if err != nil {
			return false, fmt.Errorf("scrypt: %w", err)
		}
	default:
		return false, ErrUnsupportedHash
	}
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func digestFunc(name string) (func() hash.Hash, int, error) {
	switch name {
	case "sha1":
		return sha1.New, sha1.Size, nil
	case "sha256":
		return sha256.New, sha256.Size, nil
	case "sha512":
		return sha512.New, sha512.Size, nil
	}
	return nil, 0, ErrUnsupportedHash
}
