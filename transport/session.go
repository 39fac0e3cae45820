package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/ruteri/telemetry-envelope/interfaces"
)

// MaxDatagramSize is the largest UDP payload over IPv4.
const MaxDatagramSize = 65507

type options struct {
	resolver        Resolver
	maxDatagramSize int
}

// Option configures Open.
type Option func(*options)

// WithResolver replaces the system resolver.
func WithResolver(resolver Resolver) Option {
	return func(o *options) {
		o.resolver = resolver
	}
}

// WithMaxDatagramSize lowers the datagram size limit, for paths where
// fragmented datagrams get dropped.
func WithMaxDatagramSize(size int) Option {
	return func(o *options) {
		o.maxDatagramSize = size
	}
}

// Session is a connected UDP socket bound to one collector for the
// duration of a reporting cycle.
type Session struct {
	conn    *net.UDPConn
	maxSize int

	mu     sync.Mutex
	closed bool
}

// Open resolves host and connects a UDP socket to host:port. Resolution
// and socket errors wrap interfaces.ErrConnection.
func Open(ctx context.Context, host string, port int, opts ...Option) (*Session, error) {
	o := options{
		resolver:        SystemResolver{},
		maxDatagramSize: MaxDatagramSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.maxDatagramSize <= 0 || o.maxDatagramSize > MaxDatagramSize {
		return nil, fmt.Errorf("%w: max datagram size %d outside [1, %d]", interfaces.ErrConfig, o.maxDatagramSize, MaxDatagramSize)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", interfaces.ErrConfig, port)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := o.resolver.Resolve(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve %s: %v", interfaces.ErrConnection, host, err)
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("%w: no addresses for %s", interfaces.ErrConnection, host)
		}
		ip = ips[0]
	}

	raddr := &net.UDPAddr{IP: ip, Port: port}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", interfaces.ErrConnection, net.JoinHostPort(host, strconv.Itoa(port)), err)
	}

	return &Session{conn: conn, maxSize: o.maxDatagramSize}, nil
}

// Send writes envelope as exactly one datagram. Oversized envelopes are
// rejected, never truncated.
func (s *Session) Send(envelope []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %w", interfaces.ErrSend, interfaces.ErrSessionClosed)
	}
	if len(envelope) > s.maxSize {
		return fmt.Errorf("%w: %w (%d > %d)", interfaces.ErrSend, interfaces.ErrDatagramTooLarge, len(envelope), s.maxSize)
	}

	n, err := s.conn.Write(envelope)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrSend, err)
	}
	if n != len(envelope) {
		return fmt.Errorf("%w: short write %d of %d bytes", interfaces.ErrSend, n, len(envelope))
	}
	return nil
}

// Close releases the socket. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// RemoteAddr returns the collector address the session is connected to.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Dialer opens sessions with a fixed set of options.
type Dialer struct {
	Options []Option
}

// Dial implements interfaces.SessionDialer.
func (d Dialer) Dial(ctx context.Context, host string, port int) (interfaces.DatagramSession, error) {
	session, err := Open(ctx, host, port, d.Options...)
	if err != nil {
		return nil, err
	}
	return session, nil
}
