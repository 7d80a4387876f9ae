// The server binary answers handshakes as the responder and echoes every
// decrypted message back over the secure channel. It exists to exercise
// the crypto, session, and network packages end to end.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"net"

	"github.com/ogier/pflag"
	"github.com/sirupsen/logrus"

	"github.com/billlza/Skybridge-Compass-sub018/crypto"
	"github.com/billlza/Skybridge-Compass-sub018/network"
	"github.com/billlza/Skybridge-Compass-sub018/session"
)

func main() {
	listen := pflag.StringP("listen", "l", ":4545", "address to listen on")
	keyB64 := pflag.StringP("key", "k", "", "base64 static private key (random if omitted)")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	static, err := loadOrGenerateKey(*keyB64)
	if err != nil {
		logrus.WithError(err).Fatal("bad static key")
	}
	logrus.WithField("public_key", base64.StdEncoding.EncodeToString(static.Public[:])).
		Info("responder identity")

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		logrus.WithError(err).Fatal("listen failed")
	}
	logrus.WithField("addr", ln.Addr().String()).Info("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			logrus.WithError(err).Error("accept failed")
			continue
		}
		go serve(conn, static)
	}
}

func serve(c net.Conn, static *crypto.KeyPair) {
	defer c.Close()
	log := logrus.WithField("remote", c.RemoteAddr().String())

	t := network.NewConn(c)
	mgr := session.NewManager(static, session.Config{ClientID: c.RemoteAddr().String()})
	defer mgr.Terminate()

	ctx := context.Background()
	if err := mgr.Establish(ctx, t, false); err != nil {
		log.WithError(err).Warn("handshake failed")
		return
	}

	sess, err := mgr.Session()
	if err != nil {
		log.WithError(err).Error("no session after establish")
		return
	}
	peer := sess.PeerStatic()
	log.WithField("peer", base64.StdEncoding.EncodeToString(peer[:])).Info("peer connected")

	// echo loop: decrypt, log, send it back encrypted
	for {
		frame, err := t.Receive(ctx)
		if err != nil {
			log.WithError(err).Debug("connection closed")
			return
		}
		plaintext, err := mgr.Decrypt(frame)
		if err != nil {
			log.WithError(err).Warn("dropping bad frame")
			continue
		}
		log.WithField("bytes", len(plaintext)).Debug("echoing message")
		reply, err := mgr.Encrypt(plaintext)
		if err != nil {
			log.WithError(err).Error("encrypt failed")
			return
		}
		if err := t.Send(ctx, reply); err != nil {
			log.WithError(err).Debug("connection closed")
			return
		}
	}
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
