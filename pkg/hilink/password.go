package hilink

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// PasswordTypeSHA256 is the login scheme EncodePassword implements
const PasswordTypeSHA256 = "4"

// EncodePassword produces the Password field of a login request for password_type 4.
// Both rounds base64-encode the hex text of the digest, not the raw digest bytes.
func EncodePassword(username, password, token string) string {
	inner := base64.StdEncoding.EncodeToString([]byte(sha256Hex(password)))
	return base64.StdEncoding.EncodeToString([]byte(sha256Hex(username + inner + token)))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
