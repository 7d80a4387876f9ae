package crypto

import (
	"encoding/binary"

	"github.com/billlza/Skybridge-Compass-sub018/antireplay"
)

// counterSize prefixes every transport frame with the sender's nonce.
const counterSize = 8

// Session is an established secure channel: one cipher per direction, the
// authenticated peer static key, and the final transcript hash that a trust
// layer can use for channel binding. Sessions are not safe for concurrent
// use; callers serialize access per direction.
type Session struct {
	send CipherState
	recv CipherState

	replay antireplay.Window

	handshakeHash [HashSize]byte
	remoteStatic  Key
	initiator     bool
}

// PeerStatic returns the peer's long-term public key, proven during the
// handshake. Whether to trust it is the caller's decision.
func (s *Session) PeerStatic() Key {
	return s.remoteStatic
}

// HandshakeHash returns the final transcript hash.
func (s *Session) HandshakeHash() []byte {
	out := make([]byte, HashSize)
	copy(out, s.handshakeHash[:])
	return out
}

// Initiator reports which role this side played in the handshake.
func (s *Session) Initiator() bool {
	return s.initiator
}

// Encrypt seals plaintext into a transport frame: the send counter in
// big-endian followed by the ciphertext. The counter rides along in the
// clear so the receiver can decrypt out-of-order frames.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	frame := make([]byte, counterSize, counterSize+len(plaintext)+TagSize)
	binary.BigEndian.PutUint64(frame, s.send.Nonce())
	ciphertext, err := s.send.EncryptWithAd(nil, plaintext)
	if err != nil {
		return nil, err
	}
	return append(frame, ciphertext...), nil
}

// Decrypt opens a transport frame. The replay window is consulted only
// after the frame authenticates, so an attacker cannot poison it; a counter
// already seen or older than the window fails with ErrReplayedMessage.
func (s *Session) Decrypt(frame []byte) ([]byte, error) {
	if len(frame) < counterSize+TagSize {
		return nil, ErrInvalidCiphertext
	}
	counter := binary.BigEndian.Uint64(frame[:counterSize])
	s.recv.SetNonce(counter)
	plaintext, err := s.recv.DecryptWithAd(nil, frame[counterSize:])
	if err != nil {
		return nil, err
	}
	if !s.replay.Check(counter) {
		return nil, ErrReplayedMessage
	}
	return plaintext, nil
}
