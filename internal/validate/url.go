package validate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"syscall"
)

// URL validation errors
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrDisallowedDomain = errors.New("URL domain not allowed")
	ErrSSRFRisk         = errors.New("URL poses SSRF risk")
)

// URLConstraints defines validation constraints for URLs.
type URLConstraints struct {
	AllowedSchemes []string // e.g., []string{"https", "http"}
	AllowedDomains []string // If non-empty, only these domains (and subdomains) are allowed
	BlockPrivate   bool     // Reject hosts that resolve to private or local addresses
	MaxLength      int      // 0 = no limit
}

// PreviewURLConstraints apply to URLs fetched on behalf of link previews.
var PreviewURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// URL validates a URL against the given constraints using the default
// resolver.
func URL(urlStr string, constraints URLConstraints) (*url.URL, error) {
	return URLContext(context.Background(), net.DefaultResolver, urlStr, constraints)
}

// URLContext validates a URL against the given constraints. Hostnames are
// resolved with r when BlockPrivate is set.
func URLContext(ctx context.Context, r Resolver, urlStr string, constraints URLConstraints) (*url.URL, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return nil, ErrEmpty
	}
	if constraints.MaxLength > 0 && len(urlStr) > constraints.MaxLength {
		return nil, fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, constraints.MaxLength)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)

	if len(constraints.AllowedSchemes) > 0 && !slices.Contains(constraints.AllowedSchemes, u.Scheme) {
		return nil, fmt.Errorf("%w: got %q, allowed: %v", ErrDisallowedScheme, u.Scheme, constraints.AllowedSchemes)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials in URL", ErrInvalidURL)
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	if len(constraints.AllowedDomains) > 0 {
		allowed := slices.ContainsFunc(constraints.AllowedDomains, func(domain string) bool {
			return hostname == domain || strings.HasSuffix(hostname, "."+domain)
		})
		if !allowed {
			return nil, fmt.Errorf("%w: %q not in allowlist", ErrDisallowedDomain, hostname)
		}
	}

	if constraints.BlockPrivate {
		if err := checkSSRF(ctx, r, hostname); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// checkSSRF rejects localhost names and hosts that resolve to non-public
// addresses. Unresolvable hosts pass; the fetch fails on its own and the
// dialer guard still applies.
func checkSSRF(ctx context.Context, r Resolver, hostname string) error {
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") || hostname == "localhost.localdomain" {
		return fmt.Errorf("%w: localhost not allowed", ErrSSRFRisk)
	}

	if addr, err := netip.ParseAddr(hostname); err == nil {
		if !IsPublicAddr(addr) {
			return fmt.Errorf("%w: private IP address %s", ErrSSRFRisk, addr)
		}
		return nil
	}

	addrs, err := r.LookupNetIP(ctx, "ip", hostname)
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		if !IsPublicAddr(addr) {
			return fmt.Errorf("%w: %s resolves to private IP address %s", ErrSSRFRisk, hostname, addr)
		}
	}
	return nil
}

// IsPublicAddr reports whether addr is a globally routable unicast address.
func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast():
		return false
	}
	// 100.64.0.0/10 carrier-grade NAT
	if addr.Is4() {
		b := addr.As4()
		if b[0] == 100 && b[1]&0xc0 == 64 {
			return false
		}
	}
	return true
}

// DialControl is a net.Dialer Control hook that refuses connections to
// non-public addresses. It closes the gap between validation and connect
// when DNS answers change.
func DialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSSRFRisk, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSSRFRisk, err)
	}
	if !IsPublicAddr(addr) {
		return fmt.Errorf("%w: refusing to dial %s", ErrSSRFRisk, addr)
	}
	return nil
}
