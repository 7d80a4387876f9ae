package crypto

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeShortNameIsPadded(t *testing.T) {
	name := []byte("Noise_XX_test")

	var s SymmetricState
	s.Initialize(name, nil)

	var padded [HashSize]byte
	copy(padded[:], name)
	want := sha256.Sum256(padded[:]) // the empty prologue mix
	assert.Equal(t, want[:], s.Hash())
	assert.Equal(t, Key(padded), s.chainingKey)
}

func TestInitializeLongNameIsHashed(t *testing.T) {
	name := bytes.Repeat([]byte("x"), 48)

	var s SymmetricState
	s.Initialize(name, nil)

	seed := sha256.Sum256(name)
	want := sha256.Sum256(seed[:])
	assert.Equal(t, want[:], s.Hash())
	assert.Equal(t, Key(seed), s.chainingKey)
}

func TestMixHashIsAppendThenHash(t *testing.T) {
	var s SymmetricState
	s.Initialize([]byte(protocolName), nil)

	before := s.Hash()
	data := []byte("transcript material")
	s.MixHash(data)

	want := sha256.Sum256(append(before, data...))
	assert.Equal(t, want[:], s.Hash())
}

func TestDeriveKeysDeterministic(t *testing.T) {
	ck := randomKey(t)
	ikm := []byte("dh output stand-in, 32 bytes....")

	a1, a2, err := deriveKeys(ck, ikm)
	require.NoError(t, err)
	b1, b2, err := deriveKeys(ck, ikm)
	require.NoError(t, err)

	assert.Equal(t, a1, b1)
	assert.Equal(t, a2, b2)
	assert.NotEqual(t, a1, a2, "the two outputs must be independent")
}

func TestMixKeyRekeysAndResetsNonce(t *testing.T) {
	var s SymmetricState
	s.Initialize([]byte(protocolName), nil)
	require.False(t, s.cipher.HasKey())

	ckBefore := s.chainingKey
	require.NoError(t, s.MixKey([]byte("first dh result")))
	assert.True(t, s.cipher.HasKey())
	assert.NotEqual(t, ckBefore, s.chainingKey)

	// burn a nonce, then check MixKey resets it
	_, err := s.cipher.EncryptWithAd(nil, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.cipher.Nonce())

	require.NoError(t, s.MixKey([]byte("second dh result")))
	assert.Equal(t, uint64(0), s.cipher.Nonce())
}

func TestEncryptAndHashRoundTrip(t *testing.T) {
	var a, b SymmetricState
	a.Initialize([]byte(protocolName), nil)
	b.Initialize([]byte(protocolName), nil)
	require.NoError(t, a.MixKey([]byte("shared")))
	require.NoError(t, b.MixKey([]byte("shared")))

	plaintext := []byte("responder static key stand-in...")
	ct, err := a.EncryptAndHash(plaintext)
	require.NoError(t, err)
	require.Len(t, ct, len(plaintext)+TagSize)

	pt, err := b.DecryptAndHash(ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
	assert.Equal(t, a.Hash(), b.Hash(), "transcripts must stay in lockstep")
}

func TestDecryptAndHashLeavesTranscriptOnFailure(t *testing.T) {
	var a, b SymmetricState
	a.Initialize([]byte(protocolName), nil)
	b.Initialize([]byte(protocolName), nil)
	require.NoError(t, a.MixKey([]byte("shared")))
	require.NoError(t, b.MixKey([]byte("shared")))

	ct, err := a.EncryptAndHash([]byte("payload"))
	require.NoError(t, err)

	before := b.Hash()
	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0xff
	_, err = b.DecryptAndHash(tampered)
	require.ErrorIs(t, err, ErrInvalidCiphertext)
	assert.Equal(t, before, b.Hash(), "a failed decrypt must not mix anything")
}

func TestSplitDirections(t *testing.T) {
	var a, b SymmetricState
	a.Initialize([]byte(protocolName), nil)
	b.Initialize([]byte(protocolName), nil)
	require.NoError(t, a.MixKey([]byte("shared")))
	require.NoError(t, b.MixKey([]byte("shared")))

	a1, a2, err := a.Split()
	require.NoError(t, err)
	b1, b2, err := b.Split()
	require.NoError(t, err)

	ct, err := a1.EncryptWithAd(nil, []byte("i2r"))
	require.NoError(t, err)
	pt, err := b1.DecryptWithAd(nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("i2r"), pt)

	ct, err = b2.EncryptWithAd(nil, []byte("r2i"))
	require.NoError(t, err)
	pt, err = a2.DecryptWithAd(nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("r2i"), pt)
}
