// Package paymail resolves alias@domain handles to P2PKH addresses through
// the paymail PKI capability.
package paymail

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
)

// MaxResponseSize bounds every paymail HTTP response body.
const MaxResponseSize = 64 << 10

// pki capability keys: the short name and the BRFC id.
var pkiKeys = []string{"pki", "0c4339ef99c2"}

// ParseHandle splits alias@domain. Both parts must be non-empty and the
// domain must not contain a path or port.
func ParseHandle(s string) (alias, domain string, err error) {
	alias, domain, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok || alias == "" || domain == "" || strings.ContainsAny(domain, "/:@ ") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	return strings.ToLower(alias), strings.ToLower(domain), nil
}

// IsHandle reports whether s parses as a handle.
func IsHandle(s string) bool {
	_, _, err := ParseHandle(s)
	return err == nil
}

// Capabilities is the capability map of a paymail host.
type Capabilities struct {
	BSVAlias     string         `json:"bsvalias"`
	Capabilities map[string]any `json:"capabilities"`
}

// URL returns the first string capability among keys.
func (c *Capabilities) URL(keys ...string) string {
	for _, k := range keys {
		if v, ok := c.Capabilities[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

type pkiResponse struct {
	BSVAlias string `json:"bsvalias"`
	Handle   string `json:"handle"`
	PubKey   string `json:"pubkey"`
}

// Resolver resolves handles. The zero value is not usable; use NewResolver.
type Resolver struct {
	HTTP    *http.Client
	DNS     DNSResolver
	Scheme  string // https unless overridden
	Mainnet bool
}

// NewResolver returns a Resolver using dnsr for host discovery. A nil dnsr
// uses the system resolver.
func NewResolver(dnsr DNSResolver, mainnet bool) *Resolver {
	if dnsr == nil {
		dnsr = SystemResolver{}
	}
	return &Resolver{
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		DNS:     dnsr,
		Scheme:  "https",
		Mainnet: mainnet,
	}
}

// Host returns the paymail host for domain from its SRV record, falling
// back to domain:443.
func (r *Resolver) Host(ctx context.Context, domain string) string {
	if addrs, err := r.DNS.LookupSRV(ctx, ServiceName, "tcp", domain); err == nil {
		if host, ok := endpoint(addrs); ok {
			return host
		}
	}
	return net.JoinHostPort(domain, strconv.Itoa(DefaultPort))
}

// Discover fetches the capability document of domain.
func (r *Resolver) Discover(ctx context.Context, domain string) (*Capabilities, error) {
	u := r.Scheme + "://" + r.Host(ctx, domain) + "/.well-known/bsvalias"
	body, err := r.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	var caps Capabilities
	if err := json.Unmarshal(body, &caps); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrDiscovery, u, err)
	}
	return &caps, nil
}

// PublicKey resolves the identity key of alias@domain.
func (r *Resolver) PublicKey(ctx context.Context, alias, domain string) (*ec.PublicKey, error) {
	caps, err := r.Discover(ctx, domain)
	if err != nil {
		return nil, err
	}
	tmpl := caps.URL(pkiKeys...)
	if tmpl == "" {
		return nil, fmt.Errorf("%w: %s has no pki capability", ErrResolution, domain)
	}
	u := strings.ReplaceAll(tmpl, "{alias}", url.PathEscape(alias))
	u = strings.ReplaceAll(u, "{domain.tld}", url.PathEscape(domain))

	body, err := r.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	var resp pkiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse pki response: %w", ErrResolution, err)
	}
	raw, err := hex.DecodeString(resp.PubKey)
	if err != nil || len(raw) != 33 || (raw[0] != 0x02 && raw[0] != 0x03) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPubKey, resp.PubKey)
	}
	pub, err := ec.PublicKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}
	return pub, nil
}

// Resolve returns the P2PKH address of a handle. Any other destination is
// returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, dest string) (string, error) {
	if !strings.Contains(dest, "@") {
		return dest, nil
	}
	alias, domain, err := ParseHandle(dest)
	if err != nil {
		return "", err
	}
	pub, err := r.PublicKey(ctx, alias, domain)
	if err != nil {
		return "", err
	}
	addr, err := script.NewAddressFromPublicKey(pub, r.Mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: address: %w", ErrResolution, err)
	}
	return addr.AddressString, nil
}

func (r *Resolver) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", u, err)
	}
	return body, nil
}
