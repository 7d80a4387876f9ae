package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billlza/Skybridge-Compass-sub018/crypto"
)

func newManagerPair(t *testing.T, cfg Config) (*Manager, *Manager) {
	t.Helper()
	staticA, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	staticB, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return NewManager(staticA, cfg), NewManager(staticB, cfg)
}

func establishPair(t *testing.T, a, b *Manager) {
	t.Helper()
	ta, tb := crypto.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- b.Establish(context.Background(), tb, false)
	}()
	require.NoError(t, a.Establish(context.Background(), ta, true))
	require.NoError(t, <-done)
}

func TestManagerEstablishConnectsBothSides(t *testing.T) {
	a, b := newManagerPair(t, Config{ClientID: "test"})
	establishPair(t, a, b)

	assert.Equal(t, Connected, a.State())
	assert.Equal(t, Connected, b.State())

	frame, err := a.Encrypt([]byte("through the managers"))
	require.NoError(t, err)
	pt, err := b.Decrypt(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte("through the managers"), pt)

	sessA, err := a.Session()
	require.NoError(t, err)
	sessB, err := b.Session()
	require.NoError(t, err)
	assert.Equal(t, sessA.HandshakeHash(), sessB.HandshakeHash())
}

func TestManagerRejectsDoubleEstablish(t *testing.T) {
	a, b := newManagerPair(t, Config{})
	establishPair(t, a, b)

	ta, _ := crypto.Pipe()
	err := a.Establish(context.Background(), ta, true)
	assert.ErrorIs(t, err, ErrAlreadyEstablished)
}

// failingTransport errors on every operation.
type failingTransport struct{}

func (failingTransport) Send(ctx context.Context, msg []byte) error {
	return errors.New("transport down")
}

func (failingTransport) Receive(ctx context.Context) ([]byte, error) {
	return nil, errors.New("transport down")
}

func TestManagerRollsBackOnHandshakeFailure(t *testing.T) {
	static, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	m := NewManager(static, Config{})

	err = m.Establish(context.Background(), failingTransport{}, true)
	require.Error(t, err)
	assert.Equal(t, Disconnected, m.State())

	_, err = m.Session()
	assert.ErrorIs(t, err, ErrNoSession)

	// a failed attempt must not poison the next one
	a, b := m, NewManager(static2(t), Config{})
	establishPair(t, a, b)
	assert.Equal(t, Connected, a.State())
}

func static2(t *testing.T) *crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func TestManagerGatesOnState(t *testing.T) {
	static, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	m := NewManager(static, Config{})

	var stErr *InvalidStateError
	_, err = m.Encrypt([]byte("too early"))
	require.ErrorAs(t, err, &stErr)
	assert.Equal(t, Connected, stErr.Expected)
	assert.Equal(t, Disconnected, stErr.Actual)

	_, err = m.Decrypt([]byte("too early"))
	assert.ErrorAs(t, err, &stErr)

	err = m.Heartbeat()
	assert.ErrorAs(t, err, &stErr)
}

func TestManagerHeartbeatRateLimit(t *testing.T) {
	cfg := Config{HeartbeatInterval: 50 * time.Millisecond}
	a, b := newManagerPair(t, cfg)
	establishPair(t, a, b)

	require.NoError(t, a.Heartbeat())

	err := a.Heartbeat()
	var rlErr *RateLimitedError
	require.ErrorAs(t, err, &rlErr)
	assert.Greater(t, rlErr.RetryIn, time.Duration(0))

	time.Sleep(60 * time.Millisecond)
	assert.NoError(t, a.Heartbeat())
}

func TestManagerTerminateDropsSession(t *testing.T) {
	a, b := newManagerPair(t, Config{})
	establishPair(t, a, b)

	a.Terminate()
	assert.Equal(t, Disconnected, a.State())

	_, err := a.Session()
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = a.Encrypt([]byte("gone"))
	var stErr *InvalidStateError
	assert.ErrorAs(t, err, &stErr)

	// terminate is idempotent
	a.Terminate()
	assert.Equal(t, Disconnected, a.State())
}

func TestManagerReconnect(t *testing.T) {
	a, b := newManagerPair(t, Config{})
	establishPair(t, a, b)

	sessBefore, err := a.Session()
	require.NoError(t, err)
	hashBefore := sessBefore.HandshakeHash()

	// the peer side runs a bare responder handshake for the rekey
	ta, tb := crypto.Pipe()
	staticB, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		_, err := crypto.Respond(context.Background(), tb, staticB)
		done <- err
	}()

	require.NoError(t, a.Reconnect(context.Background(), ta, true))
	require.NoError(t, <-done)
	assert.Equal(t, Connected, a.State())

	sessAfter, err := a.Session()
	require.NoError(t, err)
	assert.NotEqual(t, hashBefore, sessAfter.HandshakeHash(), "reconnect must negotiate fresh keys")
}

func TestManagerReconnectRequiresConnected(t *testing.T) {
	static, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	m := NewManager(static, Config{})

	ta, _ := crypto.Pipe()
	err = m.Reconnect(context.Background(), ta, true)
	var stErr *InvalidStateError
	require.ErrorAs(t, err, &stErr)
	assert.Equal(t, Connected, stErr.Expected)
}
