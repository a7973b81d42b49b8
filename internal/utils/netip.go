package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ipv6VisitorBits is the prefix one IPv6 client is bucketed under. Hosts
// usually own a whole /64, so per-address buckets would be trivial to dodge.
const ipv6VisitorBits = 64

// ParseHostNoPort returns the host part (no port) from strings like "ip:port", "[v6]:port", or "ip".
func ParseHostNoPort(s string) string {
	if s == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

func parseAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.Trim(ParseHostNoPort(strings.TrimSpace(s)), "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// ClientAddr resolves the real client address.
// With trustProxy it tries CF-Connecting-IP, the left-most X-Forwarded-For
// entry and X-Real-IP in that order, skipping values that are not addresses.
// RemoteAddr is the fallback and the only source without trustProxy.
func ClientAddr(r *http.Request, trustProxy bool) (netip.Addr, bool) {
	if trustProxy {
		xff, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		for _, v := range []string{r.Header.Get("CF-Connecting-IP"), xff, r.Header.Get("X-Real-IP")} {
			if addr, ok := parseAddr(v); ok {
				return addr, true
			}
		}
	}
	return parseAddr(r.RemoteAddr)
}

// ClientIP is ClientAddr as a string, or the raw RemoteAddr host when it does
// not parse (tests and unix sockets).
func ClientIP(r *http.Request, trustProxy bool) string {
	if addr, ok := ClientAddr(r, trustProxy); ok {
		return addr.String()
	}
	return ParseHostNoPort(r.RemoteAddr)
}

// VisitorKey is the key per-client rate limits bucket on: the IPv4 address,
// or the IPv6 /64 the address belongs to.
func VisitorKey(r *http.Request, trustProxy bool) string {
	addr, ok := ClientAddr(r, trustProxy)
	if !ok {
		return ParseHostNoPort(r.RemoteAddr)
	}
	if addr.Is6() {
		if p, err := addr.Prefix(ipv6VisitorBits); err == nil {
			return p.String()
		}
	}
	return addr.String()
}

// IPMatcher matches client addresses against single IPs and CIDRs.
type IPMatcher struct {
	prefixes []netip.Prefix
}

// NewIPMatcher parses list, ignoring blank and malformed entries. A bare IP
// is treated as a host prefix (/32 or /128).
func NewIPMatcher(list []string) *IPMatcher {
	m := &IPMatcher{}
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(s); err == nil {
			addr = addr.Unmap()
			m.prefixes = append(m.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return m
}

func (m *IPMatcher) IsEmpty() bool {
	return len(m.prefixes) == 0
}

// Len returns the number of usable rules.
func (m *IPMatcher) Len() int { return len(m.prefixes) }

func (m *IPMatcher) Allow(ipStr string) bool {
	addr, ok := parseAddr(ipStr)
	if !ok {
		return false
	}
	for _, p := range m.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
