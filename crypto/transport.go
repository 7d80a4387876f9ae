package crypto

import (
	"context"
	"io"
)

// Transport is the injected byte channel a handshake runs over. Both
// operations must honor context cancellation; timeouts are the transport's
// responsibility and surface as ordinary errors.
type Transport interface {
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// Pipe returns two in-memory transport ends wired back to back. Messages
// sent on one end are received on the other, preserving boundaries. It
// exists for tests and for running both roles in-process.
func Pipe() (Transport, Transport) {
	ab := make(chan []byte, 1)
	ba := make(chan []byte, 1)
	return &pipeEnd{send: ab, recv: ba}, &pipeEnd{send: ba, recv: ab}
}

type pipeEnd struct {
	send chan []byte
	recv chan []byte
}

func (p *pipeEnd) Send(ctx context.Context, msg []byte) error {
	buf := make([]byte, len(msg))
	copy(buf, msg)
	select {
	case p.send <- buf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-p.recv:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
