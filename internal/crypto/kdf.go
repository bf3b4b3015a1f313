package crypto

import (
	"crypto/hmac"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/sha3"
)

// argon2id parameters for the access password.
const (
	passwordPasses  = 3
	passwordMemory  = 64 * 1024
	passwordLanes   = 4
	passwordKeySize = 32
	passwordSalt    = 16
)

func passwordKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, passwordPasses, passwordMemory, passwordLanes, passwordKeySize)
}

// HashPassword returns a fresh salt followed by the argon2id key of password.
func HashPassword(password string) []byte {
	salt := RandomBytes(passwordSalt)
	return append(salt, passwordKey(password, salt)...)
}

// VerifyPassword checks password against the output of HashPassword.
func VerifyPassword(password string, stored []byte) bool {
	if len(stored) != passwordSalt+passwordKeySize {
		return false
	}
	salt, want := stored[:passwordSalt], stored[passwordSalt:]
	return hmac.Equal(want, passwordKey(password, salt))
}

// Fingerprint is a fast keyed digest used to remember credentials that
// already passed VerifyPassword.
func Fingerprint(secret []byte, value string) []byte {
	mac := hmac.New(sha3.New256, secret)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}
