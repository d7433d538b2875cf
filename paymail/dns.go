package paymail

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ServiceName is the SRV service of a paymail host: _bsvalias._tcp.{domain}.
const ServiceName = "bsvalias"

// DefaultPort is used when a domain publishes no SRV record.
const DefaultPort = 443

// DNSResolver looks up SRV records.
type DNSResolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) ([]*net.SRV, error)
}

// SystemResolver uses the operating system resolver.
type SystemResolver struct{}

// LookupSRV implements DNSResolver.
func (SystemResolver) LookupSRV(ctx context.Context, service, proto, name string) ([]*net.SRV, error) {
	_, addrs, err := net.DefaultResolver.LookupSRV(ctx, service, proto, name)
	if err != nil {
		return nil, fmt.Errorf("%w: _%s._%s.%s: %w", ErrDNSLookupFailed, service, proto, name, err)
	}
	return addrs, nil
}

const (
	defaultUpstream = "8.8.8.8:53"
	dnssecTimeout   = 10 * time.Second
	edns0BufSize    = 4096
)

// DNSSECResolver queries a validating recursive resolver and accepts only
// answers with the AD flag set.
type DNSSECResolver struct {
	Upstream string
	client   *dns.Client
}

// NewDNSSECResolver returns a resolver using upstream, or 8.8.8.8:53 when
// upstream is empty.
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = defaultUpstream
	}
	return &DNSSECResolver{Upstream: upstream, client: &dns.Client{Timeout: dnssecTimeout}}
}

// LookupSRV implements DNSResolver.
func (r *DNSSECResolver) LookupSRV(ctx context.Context, service, proto, name string) ([]*net.SRV, error) {
	qname := dns.Fqdn(fmt.Sprintf("_%s._%s.%s", service, proto, name))

	msg := new(dns.Msg)
	msg.SetQuestion(qname, dns.TypeSRV)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0BufSize, true)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.Upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", ErrDNSLookupFailed, qname, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: query %s: rcode %s", ErrDNSLookupFailed, qname, dns.RcodeToString[resp.Rcode])
	}
	if !resp.AuthenticatedData {
		return nil, fmt.Errorf("%w: %s", ErrDNSSECValidationFailed, qname)
	}

	var srvs []*net.SRV
	for _, rr := range resp.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			srvs = append(srvs, &net.SRV{
				Target:   srv.Target,
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	if len(srvs) == 0 {
		return nil, fmt.Errorf("%w: no SRV records for %s", ErrDNSLookupFailed, qname)
	}
	return srvs, nil
}

// endpoint picks the lowest priority, highest weight SRV target.
func endpoint(addrs []*net.SRV) (string, bool) {
	if len(addrs) == 0 {
		return "", false
	}
	sorted := append([]*net.SRV(nil), addrs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Weight > sorted[j].Weight
	})
	host := strings.TrimSuffix(sorted[0].Target, ".")
	if host == "" {
		return "", false
	}
	return net.JoinHostPort(host, fmt.Sprint(sorted[0].Port)), true
}
