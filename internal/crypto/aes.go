package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	aesNonceLen = 12
	aesTagLen   = 12 // 96-bit GCM tag

	// Overhead is the number of bytes Encrypt adds to a plaintext.
	Overhead = aesNonceLen + aesTagLen
)

var (
	ErrDecrypt  = errors.New("decrypt failed")
	ErrOversize = errors.New("payload exceeds size limit")
)

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, aesTagLen)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return b
}

// Encrypt seals plaintext with a random nonce and returns nonce||ciphertext||tag.
// The key length selects AES-128, AES-192 or AES-256.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	return EncryptWithIV(plaintext, key, RandomBytes(aesNonceLen))
}

// EncryptWithIV is Encrypt with a caller supplied 12-byte nonce.
func EncryptWithIV(plaintext, key, iv []byte) ([]byte, error) {
	if len(iv) != aesNonceLen {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", aesNonceLen, len(iv))
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, aesNonceLen, aesNonceLen+len(plaintext)+aesTagLen)
	copy(out, iv)
	return gcm.Seal(out, iv, plaintext, nil), nil
}

// Decrypt opens a nonce||ciphertext||tag blob produced by Encrypt.
func Decrypt(data, key []byte) ([]byte, error) {
	if len(data) <= aesNonceLen {
		return nil, fmt.Errorf("%w: input too short (%d bytes)", ErrDecrypt, len(data))
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	plaintext, err := gcm.Open(nil, data[:aesNonceLen], data[aesNonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// DecryptReader reads a nonce followed by ciphertext from r and opens it.
// At most limit plaintext bytes are accepted; a longer stream fails with
// ErrOversize before the whole body is buffered.
func DecryptReader(r io.Reader, key []byte, limit int64) ([]byte, error) {
	iv := make([]byte, aesNonceLen)
	if _, err := io.ReadFull(r, iv); err != nil {
		return nil, fmt.Errorf("%w: read nonce: %v", ErrDecrypt, err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	max := limit + aesTagLen
	var sealed []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		sealed = append(sealed, buf[:n]...)
		if int64(len(sealed)) > max {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrOversize, limit)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	plaintext, err := gcm.Open(sealed[:0], iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}
