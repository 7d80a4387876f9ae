package crypto

// SymmetricState owns the chaining key and the transcript hash, and drives
// the one CipherState used during the handshake. The transcript hash is
// only ever updated append-then-hash; it is never reset mid-run.
type SymmetricState struct {
	cipher      CipherState
	chainingKey Key
	hash        [HashSize]byte
}

// Initialize seeds the transcript from the protocol name: names up to 32
// bytes are zero-padded, longer ones are hashed down. The prologue is mixed
// immediately after, matching the standard Noise construction.
func (s *SymmetricState) Initialize(protocol, prologue []byte) {
	if len(protocol) <= HashSize {
		s.hash = [HashSize]byte{}
		copy(s.hash[:], protocol)
	} else {
		s.hash = hashBytes(protocol)
	}
	s.chainingKey = Key(s.hash)
	s.MixHash(prologue)
}

// MixHash appends data to the transcript.
func (s *SymmetricState) MixHash(data []byte) {
	s.hash = hashBytes(s.hash[:], data)
}

// MixKey folds DH output into the chaining key and rekeys the cipher,
// which also resets its nonce to 0.
func (s *SymmetricState) MixKey(inputKeyMaterial []byte) error {
	chainingKey, tempKey, err := deriveKeys(s.chainingKey, inputKeyMaterial)
	if err != nil {
		return err
	}
	s.chainingKey = chainingKey
	s.cipher.InitializeKey(tempKey)
	return nil
}

// EncryptAndHash seals plaintext with the current transcript hash as the
// associated data, then mixes the ciphertext into the transcript.
func (s *SymmetricState) EncryptAndHash(plaintext []byte) ([]byte, error) {
	ciphertext, err := s.cipher.EncryptWithAd(s.hash[:], plaintext)
	if err != nil {
		return nil, err
	}
	s.MixHash(ciphertext)
	return ciphertext, nil
}

// DecryptAndHash opens ciphertext with the pre-update transcript hash as
// the associated data, then mixes the still-encrypted bytes in. Decrypt
// before mix, ciphertext not plaintext: both orderings are load-bearing.
func (s *SymmetricState) DecryptAndHash(ciphertext []byte) ([]byte, error) {
	plaintext, err := s.cipher.DecryptWithAd(s.hash[:], ciphertext)
	if err != nil {
		return nil, err
	}
	s.MixHash(ciphertext)
	return plaintext, nil
}

// Split derives the two directional transport ciphers from the final
// chaining key. The first keys the initiator-to-responder direction.
func (s *SymmetricState) Split() (c1, c2 CipherState, err error) {
	k1, k2, err := deriveKeys(s.chainingKey, nil)
	if err != nil {
		return
	}
	c1.InitializeKey(k1)
	c2.InitializeKey(k2)
	return
}

// Hash returns a copy of the current transcript hash.
func (s *SymmetricState) Hash() []byte {
	out := make([]byte, HashSize)
	copy(out, s.hash[:])
	return out
}
