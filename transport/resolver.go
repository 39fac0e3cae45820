package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Resolver maps a collector host name to its addresses.
type Resolver interface {
	Resolve(ctx context.Context, host string) ([]net.IP, error)
}

// SystemResolver uses the operating system resolver.
type SystemResolver struct{}

func (SystemResolver) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ips = append(ips, addr.IP)
	}
	return ips, nil
}

// DefaultDNSTimeout bounds a single query of DNSResolver.
const DefaultDNSTimeout = 5 * time.Second

// DNSResolver queries a fixed nameserver directly for A and AAAA records,
// bypassing the host's resolver configuration.
type DNSResolver struct {
	// Nameserver is a host:port, for example "1.1.1.1:53".
	Nameserver string
	// Timeout bounds each query. Zero means DefaultDNSTimeout.
	Timeout time.Duration
}

// NewDNSResolver returns a resolver querying nameserver. A nameserver
// without a port gets port 53.
func NewDNSResolver(nameserver string) *DNSResolver {
	if _, _, err := net.SplitHostPort(nameserver); err != nil {
		nameserver = net.JoinHostPort(nameserver, "53")
	}
	return &DNSResolver{Nameserver: nameserver}
}

// Resolve returns IPv4 addresses first, then IPv6.
func (r *DNSResolver) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultDNSTimeout
	}
	client := &dns.Client{Net: "udp", Timeout: timeout}

	var ips []net.IP
	var errs []error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		msg.RecursionDesired = true

		in, _, err := client.ExchangeContext(ctx, msg, r.Nameserver)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			errs = append(errs, fmt.Errorf("%s query for %s: %s", dns.TypeToString[qtype], host, dns.RcodeToString[in.Rcode]))
			continue
		}

		for _, answer := range in.Answer {
			switch rr := answer.(type) {
			case *dns.A:
				ips = append(ips, rr.A)
			case *dns.AAAA:
				ips = append(ips, rr.AAAA)
			}
		}
	}

	if len(ips) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, fmt.Errorf("no addresses found for %s", host)
	}
	return ips, nil
}
