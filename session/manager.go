package session

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/billlza/Skybridge-Compass-sub018/crypto"
)

// defaultHeartbeatInterval applies when the config leaves it zero.
const defaultHeartbeatInterval = 15 * time.Second

// Config carries the per-connection settings a Manager needs.
type Config struct {
	ClientID          string
	HeartbeatInterval time.Duration
}

// Manager owns the static identity and at most one live secure channel.
// All methods are safe for concurrent use; independent managers share no
// state, so concurrent connections to different peers get fully separate
// key material.
type Manager struct {
	mu     sync.Mutex
	static *crypto.KeyPair
	cfg    Config
	sess   *crypto.Session

	state         machine
	lastHeartbeat time.Time
	log           *logrus.Entry
}

// NewManager creates a manager around the caller's long-term identity key.
func NewManager(static *crypto.KeyPair, cfg Config) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	return &Manager{
		static: static,
		cfg:    cfg,
		log: logrus.WithFields(logrus.Fields{
			"package":   "session",
			"client_id": cfg.ClientID,
		}),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	return m.state.Current()
}

// Establish runs one handshake over t and installs the resulting session.
// On any failure the manager returns to Disconnected and every piece of
// key material from the attempt is discarded; the caller decides whether
// to retry.
func (m *Manager) Establish(ctx context.Context, t crypto.Transport, initiator bool) error {
	if st := m.state.Current(); st != Disconnected {
		return ErrAlreadyEstablished
	}
	if err := m.state.transition(Connecting); err != nil {
		return ErrAlreadyEstablished
	}
	return m.handshake(ctx, t, initiator)
}

// Reconnect tears down the current session and negotiates a fresh one over
// t. Only legal while Connected; failure lands in Disconnected, never in a
// half-keyed state.
func (m *Manager) Reconnect(ctx context.Context, t crypto.Transport, initiator bool) error {
	if st := m.state.Current(); st != Connected {
		return &InvalidStateError{Expected: Connected, Actual: st}
	}
	if err := m.state.transition(Reconnecting); err != nil {
		return err
	}
	m.mu.Lock()
	m.sess = nil
	m.mu.Unlock()
	return m.handshake(ctx, t, initiator)
}

func (m *Manager) handshake(ctx context.Context, t crypto.Transport, initiator bool) error {
	var (
		sess *crypto.Session
		err  error
	)
	if initiator {
		sess, err = crypto.Initiate(ctx, t, m.static)
	} else {
		sess, err = crypto.Respond(ctx, t, m.static)
	}
	if err != nil {
		m.mu.Lock()
		m.sess = nil
		m.mu.Unlock()
		_ = m.state.transition(Disconnected)
		m.log.WithError(err).Warn("handshake failed")
		return err
	}

	m.mu.Lock()
	m.sess = sess
	m.lastHeartbeat = time.Time{}
	m.mu.Unlock()
	if err := m.state.transition(Connected); err != nil {
		return err
	}

	peer := sess.PeerStatic()
	m.log.WithFields(logrus.Fields{
		"initiator": initiator,
		"peer":      base64.StdEncoding.EncodeToString(peer[:]),
	}).Info("secure channel established")
	return nil
}

// Session exposes the live secure channel for callers that need the peer
// static key or the channel-binding hash.
func (m *Manager) Session() (*crypto.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, ErrNoSession
	}
	return m.sess, nil
}

// Encrypt seals an application message. Only legal while Connected.
func (m *Manager) Encrypt(plaintext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st := m.state.Current(); st != Connected {
		return nil, &InvalidStateError{Expected: Connected, Actual: st}
	}
	return m.sess.Encrypt(plaintext)
}

// Decrypt opens an application frame. Only legal while Connected.
func (m *Manager) Decrypt(frame []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st := m.state.Current(); st != Connected {
		return nil, &InvalidStateError{Expected: Connected, Actual: st}
	}
	return m.sess.Decrypt(frame)
}

// Heartbeat records a liveness beat, enforcing the configured minimum
// interval between beats.
func (m *Manager) Heartbeat() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st := m.state.Current(); st != Connected {
		return &InvalidStateError{Expected: Connected, Actual: st}
	}
	now := time.Now()
	if !m.lastHeartbeat.IsZero() {
		if elapsed := now.Sub(m.lastHeartbeat); elapsed < m.cfg.HeartbeatInterval {
			return &RateLimitedError{RetryIn: m.cfg.HeartbeatInterval - elapsed}
		}
	}
	m.lastHeartbeat = now
	return nil
}

// Terminate tears the connection down from any state and drops the session
// keys. Safe to call repeatedly.
func (m *Manager) Terminate() {
	_ = m.state.transition(ShuttingDown)
	m.mu.Lock()
	m.sess = nil
	m.lastHeartbeat = time.Time{}
	m.mu.Unlock()
	_ = m.state.transition(Disconnected)
	m.log.Debug("session terminated")
}
