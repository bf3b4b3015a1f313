package crypto

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func SHA256Hex(data []byte) string {
	return hex.EncodeToString(SHA256(data))
}

func MD5(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

// MD5String hashes the UTF-8 bytes of s.
func MD5String(s string) []byte {
	return MD5([]byte(s))
}
