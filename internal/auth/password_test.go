package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// cheap parameters keep the suite fast
var testParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(testParams)

	encoded, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify("hunter2", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("hunter3", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(testParams)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyMalformedArgon2(t *testing.T) {
	h := NewHasher(testParams)
	_, err := h.Verify("pw", "$argon2id$v=19$broken")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = h.Verify("pw", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$a2V5")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestVerifyBcrypt(t *testing.T) {
	h := NewHasher(testParams)
	encoded, err := bcrypt.GenerateFromPassword([]byte("legacy"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Verify("legacy", string(encoded))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", string(encoded))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyWerkzeugPBKDF2(t *testing.T) {
	h := NewHasher(testParams)
	salt := "a1b2c3d4e5f6g7h8"
	key := pbkdf2.Key([]byte("flask"), []byte(salt), 1000, sha256.Size, sha256.New)
	encoded := "pbkdf2:sha256:1000$" + salt + "$" + hex.EncodeToString(key)

	ok, err := h.Verify("flask", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("django", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyWerkzeugScrypt(t *testing.T) {
	h := NewHasher(testParams)
	salt := "saltsaltsaltsalt"
	key, err := scrypt.Key([]byte("flask"), []byte(salt), 1024, 8, 1, 64)
	require.NoError(t, err)
	encoded := "scrypt:1024:8:1$" + salt + "$" + hex.EncodeToString(key)

	ok, err := h.Verify("flask", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyUnsupported(t *testing.T) {
	h := NewHasher(testParams)
	_, err := h.Verify("pw", "plaintext-password")
	assert.ErrorIs(t, err, ErrUnsupportedHash)

	_, err = h.Verify("pw", "pbkdf2:md5:10$salt$abcd")
	assert.ErrorIs(t, err, ErrUnsupportedHash)
}
