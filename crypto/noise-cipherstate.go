package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherState is an AEAD cipher plus a counter nonce. It starts unkeyed:
// until the first InitializeKey, Encrypt and Decrypt pass bytes through
// unchanged. That is how Noise sends early handshake material in the clear,
// not an oversight.
type CipherState struct {
	key   Key
	nonce uint64
	keyed bool
}

// InitializeKey installs key and resets the nonce to 0. This is the only
// way the key ever changes.
func (c *CipherState) InitializeKey(key Key) {
	c.key = key
	c.nonce = 0
	c.keyed = true
}

// HasKey reports whether the cipher has left the pass-through state.
func (c *CipherState) HasKey() bool {
	return c.keyed
}

// Nonce returns the counter that the next operation will use.
func (c *CipherState) Nonce() uint64 {
	return c.nonce
}

// SetNonce overrides the counter, for transport messages that carry it
// explicitly.
func (c *CipherState) SetNonce(nonce uint64) {
	c.nonce = nonce
}

// nonceBytes encodes the counter into the 12-byte AEAD nonce: first 4 bytes
// zero, low 8 bytes little-endian.
func nonceBytes(counter uint64) []byte {
	var n [chacha20poly1305.NonceSize]byte
	binary.LittleEndian.PutUint64(n[4:], counter)
	return n[:]
}

// EncryptWithAd seals plaintext bound to ad and advances the counter.
func (c *CipherState) EncryptWithAd(ad, plaintext []byte) ([]byte, error) {
	if !c.keyed {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonceBytes(c.nonce), plaintext, ad)
	c.nonce++
	return ciphertext, nil
}

// DecryptWithAd opens ciphertext bound to ad and advances the counter.
// Too-short input and a bad tag fail identically with ErrInvalidCiphertext;
// the counter does not advance on failure.
func (c *CipherState) DecryptWithAd(ad, ciphertext []byte) ([]byte, error) {
	if !c.keyed {
		return ciphertext, nil
	}
	if len(ciphertext) < TagSize {
		return nil, ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonceBytes(c.nonce), ciphertext, ad)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	c.nonce++
	return plaintext, nil
}
