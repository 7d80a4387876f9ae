package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// clamp per RFC 7748 so the scalar is always a valid curve25519 key.
func (k *Key) clamp() {
	k[0] &= 248
	k[31] = (k[31] & 127) | 64
}

// GenerateKeyPair creates a fresh X25519 key pair from crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	var priv Key
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return nil, err
	}
	priv.clamp()
	return FromPrivateKey(priv)
}

// FromPrivateKey derives the public point for an existing private scalar,
// for callers that persist their static identity key.
func FromPrivateKey(priv Key) (*KeyPair, error) {
	priv.clamp()
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	kp := &KeyPair{Private: priv}
	copy(kp.Public[:], pub)
	return kp, nil
}

// Agree computes the X25519 shared secret between our private scalar and a
// peer-supplied point. The point comes straight off the wire, so length and
// validity are checked here rather than trusted.
func Agree(priv Key, peerPublic []byte) (Key, error) {
	if len(peerPublic) != KeySize {
		return Key{}, ErrInvalidPublicKey
	}
	shared, err := curve25519.X25519(priv[:], peerPublic)
	if err != nil {
		return Key{}, ErrInvalidPublicKey
	}
	var out Key
	copy(out[:], shared)
	return out, nil
}

// hashBytes is the protocol hash: SHA-256 over the concatenated inputs.
func hashBytes(data ...[]byte) [HashSize]byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var out [HashSize]byte
	h.Sum(out[:0])
	return out
}

// deriveKeys is the Noise HKDF: HMAC-extract keyed by the chaining key over
// the input key material, then two 32-byte expand outputs. The byte-counter
// iteration lives inside x/crypto/hkdf and must stay bit-identical across
// peers, so nothing here may change without breaking interoperability.
func deriveKeys(chainingKey Key, inputKeyMaterial []byte) (k1, k2 Key, err error) {
	r := hkdf.New(sha256.New, inputKeyMaterial, chainingKey[:], nil)
	if _, err = io.ReadFull(r, k1[:]); err != nil {
		return
	}
	_, err = io.ReadFull(r, k2[:])
	return
}
