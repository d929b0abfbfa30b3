// internal/session/crypto.go
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedPrefix = "v1:"
	saltSize     = 16
	nonceSize    = 24
)

// deriveKey stretches the passphrase with Argon2id.
var deriveKey = argon2Key

func argon2Key(passphrase, salt []byte) *[32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32))
	return &key
}

// sealToken encrypts token as "v1:" + base64(salt | nonce | box).
func sealToken(passphrase []byte, token string) (string, error) {
	buf := make([]byte, saltSize+nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token salt: %w", err)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], buf[saltSize:])

	sealed := secretbox.Seal(buf, []byte(token), &nonce, deriveKey(passphrase, buf[:saltSize]))
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func openToken(passphrase []byte, sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrTokenCorrupt
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil || len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return "", ErrTokenCorrupt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])

	plain, ok := secretbox.Open(nil, raw[saltSize+nonceSize:], &nonce, deriveKey(passphrase, raw[:saltSize]))
	if !ok {
		return "", ErrTokenCorrupt
	}
	return string(plain), nil
}
