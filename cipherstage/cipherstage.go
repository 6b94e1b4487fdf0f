// Package cipherstage implements the symmetric encrypt/decrypt step of the
// secure channel: AES-256 in CTR mode, keyed by deriving a key and IV from
// the session password the same way the source's createCipher("aes-256-ctr",
// password) call does. This carries forward two known weaknesses of that
// scheme: CTR mode has no authentication tag, and the key derivation is the
// legacy, salt-less EVP_BytesToKey scheme (see package legacykdf).
package cipherstage

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/corewire/secchan/legacykdf"
)

const (
	keyLen = 32 // AES-256
	ivLen  = aes.BlockSize
)

// Seal encrypts plaintext (flag byte ‖ payload) under password, returning a
// ciphertext of identical length. AES-CTR is a stream cipher: no padding,
// no authentication tag is appended.
func Seal(password, plaintext []byte) ([]byte, error) {
	stream, err := newCTRStream(password)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plaintext))
	stream.XORKeyStream(out, plaintext)
	return out, nil
}

// Open decrypts ciphertext under password. Decryption never fails on
// tampered input — CTR mode has no integrity check, so a wrong password or
// modified ciphertext silently yields garbage plaintext.
func Open(password, ciphertext []byte) ([]byte, error) {
	stream, err := newCTRStream(password)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	stream.XORKeyStream(out, ciphertext)
	return out, nil
}

func newCTRStream(password []byte) (cipher.Stream, error) {
	key, iv := legacykdf.BytesToKey(password, keyLen, ivLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}
