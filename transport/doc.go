// Package transport carries envelopes over UDP.
//
// A Session is a connected socket scoped to one reporting cycle: Open
// resolves the collector and connects, Send writes one datagram per
// envelope, Close releases the socket. There is no fragmentation,
// retransmission or acknowledgement. Envelopes larger than the session's
// datagram limit fail with interfaces.ErrDatagramTooLarge.
//
// Host names go through a Resolver. SystemResolver uses the host
// configuration; DNSResolver asks a fixed nameserver.
//
// Listener is the receiving half used by the collector.
package transport
