package crypto

import (
	"context"

	"github.com/sirupsen/logrus"
)

// HandshakeState drives one XX run for a single role. It is single-use:
// any failure abandons the run wholesale, including all key material, and
// the caller starts over with fresh ephemerals if it wants to retry.
//
// Message flow, with the DH mixes each side performs:
//
//	initiator                      responder
//	-> e                 (32)
//	<- e, ee, es, enc(s) (80)
//	-> enc(s), se        (48)
//
// Both sides end on the same chaining key; Split turns it into the two
// directional transport ciphers.
type HandshakeState struct {
	sym          SymmetricState
	static       *KeyPair
	ephem        KeyPair
	remoteEphem  Key
	remoteStatic Key
	initiator    bool
}

// Initiate runs the initiator side of the XX handshake over t using the
// caller's long-term identity key.
func Initiate(ctx context.Context, t Transport, static *KeyPair) (*Session, error) {
	return newHandshakeState(static, true).run(ctx, t)
}

// Respond runs the responder side of the XX handshake over t.
func Respond(ctx context.Context, t Transport, static *KeyPair) (*Session, error) {
	return newHandshakeState(static, false).run(ctx, t)
}

func newHandshakeState(static *KeyPair, initiator bool) *HandshakeState {
	h := &HandshakeState{static: static, initiator: initiator}
	h.sym.Initialize([]byte(protocolName), nil)
	return h
}

func (h *HandshakeState) log() *logrus.Entry {
	role := "responder"
	if h.initiator {
		role = "initiator"
	}
	return logrus.WithFields(logrus.Fields{
		"package": "crypto",
		"role":    role,
	})
}

func (h *HandshakeState) run(ctx context.Context, t Transport) (*Session, error) {
	defer h.wipe()

	var err error
	if h.initiator {
		err = h.runInitiator(ctx, t)
	} else {
		err = h.runResponder(ctx, t)
	}
	if err != nil {
		h.log().WithError(err).Debug("handshake aborted")
		return nil, err
	}

	sess, err := h.split()
	if err != nil {
		return nil, err
	}
	h.log().Debug("handshake complete")
	return sess, nil
}

func (h *HandshakeState) generateEphemeral() error {
	kp, err := GenerateKeyPair()
	if err != nil {
		return err
	}
	h.ephem = *kp
	return nil
}

func (h *HandshakeState) runInitiator(ctx context.Context, t Transport) error {
	// message 1: send our ephemeral in the clear, transcript-only.
	if err := h.generateEphemeral(); err != nil {
		return err
	}
	h.sym.MixHash(h.ephem.Public[:])
	if err := t.Send(ctx, h.ephem.Public[:]); err != nil {
		return err
	}
	h.log().WithField("step", 1).Debug("handshake message sent")

	// message 2: responder ephemeral, then their encrypted static.
	msg2, err := t.Receive(ctx)
	if err != nil {
		return err
	}
	if len(msg2) < KeySize {
		return handshakeFailed("message2 too short")
	}
	copy(h.remoteEphem[:], msg2[:KeySize])
	h.sym.MixHash(h.remoteEphem[:])

	ee, err := Agree(h.ephem.Private, msg2[:KeySize])
	if err != nil {
		return err
	}
	if err := h.sym.MixKey(ee[:]); err != nil {
		return err
	}

	remoteStatic, err := h.sym.DecryptAndHash(msg2[KeySize:])
	if err != nil {
		return err
	}
	if len(remoteStatic) != KeySize {
		return handshakeFailed("message2 static key invalid length")
	}
	copy(h.remoteStatic[:], remoteStatic)

	es, err := Agree(h.ephem.Private, remoteStatic)
	if err != nil {
		return err
	}
	if err := h.sym.MixKey(es[:]); err != nil {
		return err
	}
	h.log().WithField("step", 2).Debug("handshake message received")

	// message 3: prove our identity by sending the static encrypted, then
	// close the loop with the se mix.
	encStatic, err := h.sym.EncryptAndHash(h.static.Public[:])
	if err != nil {
		return err
	}
	if err := t.Send(ctx, encStatic); err != nil {
		return err
	}
	se, err := Agree(h.static.Private, h.remoteEphem[:])
	if err != nil {
		return err
	}
	if err := h.sym.MixKey(se[:]); err != nil {
		return err
	}
	h.log().WithField("step", 3).Debug("handshake message sent")
	return nil
}

func (h *HandshakeState) runResponder(ctx context.Context, t Transport) error {
	// message 1: the initiator's ephemeral, validated before any crypto.
	msg1, err := t.Receive(ctx)
	if err != nil {
		return err
	}
	if len(msg1) != msg1Size {
		return handshakeFailed("message1 invalid length")
	}
	copy(h.remoteEphem[:], msg1)
	h.sym.MixHash(h.remoteEphem[:])
	h.log().WithField("step", 1).Debug("handshake message received")

	// message 2: our ephemeral in the clear, then our static sealed under
	// the ee-derived key, then the es mix.
	if err := h.generateEphemeral(); err != nil {
		return err
	}
	h.sym.MixHash(h.ephem.Public[:])

	ee, err := Agree(h.ephem.Private, h.remoteEphem[:])
	if err != nil {
		return err
	}
	if err := h.sym.MixKey(ee[:]); err != nil {
		return err
	}

	encStatic, err := h.sym.EncryptAndHash(h.static.Public[:])
	if err != nil {
		return err
	}
	es, err := Agree(h.static.Private, h.remoteEphem[:])
	if err != nil {
		return err
	}
	if err := h.sym.MixKey(es[:]); err != nil {
		return err
	}

	msg2 := make([]byte, 0, msg2Size)
	msg2 = append(msg2, h.ephem.Public[:]...)
	msg2 = append(msg2, encStatic...)
	if err := t.Send(ctx, msg2); err != nil {
		return err
	}
	h.log().WithField("step", 2).Debug("handshake message sent")

	// message 3: recover the initiator's static and do the final se mix.
	msg3, err := t.Receive(ctx)
	if err != nil {
		return err
	}
	if len(msg3) != msg3Size {
		return handshakeFailed("message3 invalid length")
	}
	remoteStatic, err := h.sym.DecryptAndHash(msg3)
	if err != nil {
		return err
	}
	copy(h.remoteStatic[:], remoteStatic)

	se, err := Agree(h.ephem.Private, remoteStatic)
	if err != nil {
		return err
	}
	if err := h.sym.MixKey(se[:]); err != nil {
		return err
	}
	h.log().WithField("step", 3).Debug("handshake message received")
	return nil
}

// split derives the directional transport ciphers and packages the result.
// Output 1 of the final HKDF always keys initiator-to-responder, so the
// roles assign send/recv mirrored.
func (h *HandshakeState) split() (*Session, error) {
	c1, c2, err := h.sym.Split()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		remoteStatic: h.remoteStatic,
		initiator:    h.initiator,
	}
	copy(sess.handshakeHash[:], h.sym.Hash())
	if h.initiator {
		sess.send, sess.recv = c1, c2
	} else {
		sess.send, sess.recv = c2, c1
	}
	return sess, nil
}

// wipe drops the ephemeral private key and intermediate symmetric state.
// Forward secrecy depends on the ephemeral not outliving the run.
func (h *HandshakeState) wipe() {
	h.ephem = KeyPair{}
	h.sym.chainingKey = Key{}
	h.sym.cipher = CipherState{}
}
