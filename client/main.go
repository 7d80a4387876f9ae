// The client binary dials a responder, runs the initiator side of the
// handshake, and round-trips an encrypted message. It prints the peer's
// static key and the channel-binding hash so an operator can verify the
// link out of band.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/ogier/pflag"
	"github.com/sirupsen/logrus"

	"github.com/billlza/Skybridge-Compass-sub018/crypto"
	"github.com/billlza/Skybridge-Compass-sub018/network"
	"github.com/billlza/Skybridge-Compass-sub018/session"
)

func main() {
	addr := pflag.StringP("connect", "c", "127.0.0.1:4545", "responder address")
	keyB64 := pflag.StringP("key", "k", "", "base64 static private key (random if omitted)")
	message := pflag.StringP("message", "m", "hello over the secure channel", "message to send")
	timeout := pflag.DurationP("timeout", "t", 10*time.Second, "overall timeout")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	static, err := loadOrGenerateKey(*keyB64)
	if err != nil {
		logrus.WithError(err).Fatal("bad static key")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	t, err := network.Dial(ctx, *addr)
	if err != nil {
		logrus.WithError(err).Fatal("dial failed")
	}
	defer t.Close()

	mgr := session.NewManager(static, session.Config{ClientID: "client"})
	defer mgr.Terminate()

	if err := mgr.Establish(ctx, t, true); err != nil {
		logrus.WithError(err).Fatal("handshake failed")
	}

	sess, err := mgr.Session()
	if err != nil {
		logrus.WithError(err).Fatal("no session after establish")
	}
	peer := sess.PeerStatic()
	logrus.WithFields(logrus.Fields{
		"peer":         base64.StdEncoding.EncodeToString(peer[:]),
		"binding_hash": base64.StdEncoding.EncodeToString(sess.HandshakeHash()),
	}).Info("secure channel established")

	frame, err := mgr.Encrypt([]byte(*message))
	if err != nil {
		logrus.WithError(err).Fatal("encrypt failed")
	}
	if err := t.Send(ctx, frame); err != nil {
		logrus.WithError(err).Fatal("send failed")
	}

	reply, err := t.Receive(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("receive failed")
	}
	plaintext, err := mgr.Decrypt(reply)
	if err != nil {
		logrus.WithError(err).Fatal("decrypt failed")
	}
	logrus.WithField("echo", string(plaintext)).Info("round trip complete")
}

func loadOrGenerateKey(b64 string) (*crypto.KeyPair, error) {
	if b64 == "" {
		return crypto.GenerateKeyPair()
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(raw) != crypto.KeySize {
		return nil, errors.New("static key must be 32 bytes")
	}
	var priv crypto.Key
	copy(priv[:], raw)
	return crypto.FromPrivateKey(priv)
}
