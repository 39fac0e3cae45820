package interfaces

import "context"

// DatagramSession sends envelopes to one collector for one cycle.
type DatagramSession interface {
	// Send writes one envelope as one datagram.
	Send(envelope []byte) error
	// Close releases the session. Idempotent.
	Close() error
}

// SessionDialer opens datagram sessions.
type SessionDialer interface {
	Dial(ctx context.Context, host string, port int) (DatagramSession, error)
}
