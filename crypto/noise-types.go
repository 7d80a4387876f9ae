// Package crypto implements the Noise XX handshake that secures SkyBridge
// peer links, from the raw primitives up to the post-handshake session
// ciphers. The handshake is transport-agnostic: callers inject a Transport
// and get back a Session holding one cipher per direction plus the final
// transcript hash for channel binding.
package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// protocolName seeds the initial transcript hash. Both peers must use
	// the identical string or every decryption downstream fails.
	protocolName = "Noise_XX_25519_ChaChaPoly_SHA256"

	// KeySize is the size of X25519 scalars and points, and of all derived
	// symmetric keys.
	KeySize = 32
	// HashSize is the size of the transcript hash and chaining key.
	HashSize = 32
	// TagSize is the Poly1305 authentication tag appended to every sealed
	// message.
	TagSize = chacha20poly1305.Overhead

	// Wire sizes of the three handshake messages: e, e || enc(s), enc(s).
	msg1Size = KeySize
	msg2Size = KeySize + KeySize + TagSize
	msg3Size = KeySize + TagSize
)

// Key is a 32-byte X25519 scalar or point. Symmetric keys reuse the type
// since every derived key is also 32 bytes.
type Key [KeySize]byte

// KeyPair is an X25519 key pair. Static pairs are the caller's long-term
// identity; ephemeral pairs live for a single handshake run.
type KeyPair struct {
	Private Key
	Public  Key
}

var (
	// ErrInvalidPublicKey means a peer-supplied point was the wrong length
	// or not a usable curve point.
	ErrInvalidPublicKey = errors.New("skybridge/crypto: invalid public key")

	// ErrInvalidCiphertext covers both too-short ciphertexts and
	// authentication failures. The two cases are deliberately not
	// distinguished.
	ErrInvalidCiphertext = errors.New("skybridge/crypto: invalid ciphertext")

	// ErrReplayedMessage means a transport frame authenticated but its
	// counter was already seen.
	ErrReplayedMessage = errors.New("skybridge/crypto: replayed transport message")
)

// HandshakeError aborts a handshake run at the protocol level, before or
// instead of a cryptographic failure. Runs are never resumed after one.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("skybridge/crypto: handshake failed: %s", e.Reason)
}

func handshakeFailed(reason string) error {
	return &HandshakeError{Reason: reason}
}
