// Package network adapts stream connections to the transport capability
// the handshake and session layers are written against. Frames are
// length-prefixed so message boundaries survive the stream.
package network

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"
)

const (
	prefixSize = 2

	// MaxFrameSize bounds a single frame; the prefix is a uint16.
	MaxFrameSize = 1<<16 - 1
)

// ErrFrameTooLarge means a caller tried to send more than one frame can
// carry. The session layer chunks above this package, so hitting it is a
// programming error.
var ErrFrameTooLarge = errors.New("skybridge/network: frame exceeds maximum size")

// Conn frames messages over a net.Conn with a 2-byte big-endian length
// prefix. It implements the crypto package's Transport. Deadlines are
// taken from the context on every call.
type Conn struct {
	conn net.Conn
}

// NewConn wraps an established connection.
func NewConn(c net.Conn) *Conn {
	return &Conn{conn: c}
}

// Dial connects to addr over TCP and wraps the result.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

func (c *Conn) applyDeadline(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(deadline)
	}
	return c.conn.SetDeadline(time.Time{})
}

// watch expires the connection deadline the moment ctx is cancelled, so a
// blocked Read or Write unblocks instead of waiting out the call. The
// returned stop must run before the next call touches the deadline; it
// waits for the watcher to finish so a late expiry cannot leak into a
// later call.
func (c *Conn) watch(ctx context.Context) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			c.conn.SetDeadline(time.Now())
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

// ctxErr prefers the context's error once it is cancelled, so callers see
// context.Canceled rather than the i/o timeout the watcher provoked.
func ctxErr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Send writes one frame.
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	if len(msg) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.applyDeadline(ctx); err != nil {
		return err
	}
	stop := c.watch(ctx)
	defer stop()
	frame := make([]byte, prefixSize+len(msg))
	binary.BigEndian.PutUint16(frame, uint16(len(msg)))
	copy(frame[prefixSize:], msg)
	_, err := c.conn.Write(frame)
	return ctxErr(ctx, err)
}

// Receive reads one frame.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}
	stop := c.watch(ctx)
	defer stop()
	var prefix [prefixSize]byte
	if _, err := io.ReadFull(c.conn, prefix[:]); err != nil {
		return nil, ctxErr(ctx, err)
	}
	body := make([]byte, binary.BigEndian.Uint16(prefix[:]))
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, ctxErr(ctx, err)
	}
	return body, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
