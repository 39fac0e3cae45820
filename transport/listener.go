package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrListenerClosed is returned by Receive after Close.
var ErrListenerClosed = errors.New("listener is closed")

// receiveBufferSize is larger than MaxDatagramSize so that oversized
// datagrams from IPv6 peers are seen whole and rejected by the decoder.
const receiveBufferSize = 65535

// Listener is the receiving half: one datagram is one envelope.
type Listener struct {
	conn *net.UDPConn
}

// Listen binds a UDP socket to addr.
func Listen(addr string) (*Listener, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{conn: conn}, nil
}

// Receive blocks until a datagram arrives or ctx is done.
func (l *Listener) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	deadline, _ := ctx.Deadline()
	if err := l.conn.SetReadDeadline(deadline); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, nil, ErrListenerClosed
		}
		return nil, nil, err
	}

	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.conn.SetReadDeadline(time.Now())
		case <-readDone:
		}
	}()

	buf := make([]byte, receiveBufferSize)
	n, from, err := l.conn.ReadFromUDP(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, nil, ErrListenerClosed
		}
		return nil, nil, err
	}

	return buf[:n], from, nil
}

// LocalAddr returns the bound address.
func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// Close releases the socket and unblocks pending Receive calls.
func (l *Listener) Close() error {
	return l.conn.Close()
}
