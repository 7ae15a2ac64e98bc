package interceptors

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// ClientIP returns the IP the request claims: the first x-forwarded-for hop, then x-real-ip, then
// the peer address. Returns "unknown" when none is available. Headers are client-controlled, so
// this is for logs only; limits and audit go through TrustedProxies.ClientIP.
func ClientIP(ctx context.Context) string {
	if ip := forwardedIP(ctx); ip != "" {
		return ip
	}
	return PeerIP(ctx)
}

// PeerIP returns the transport peer address without port, or "unknown".
func PeerIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

func forwardedIP(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
		if s := strings.TrimSpace(vals[0]); s != "" {
			if i := strings.Index(s, ","); i > 0 {
				s = strings.TrimSpace(s[:i])
			}
			return s
		}
	}
	if vals := md.Get("x-real-ip"); len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

// TrustedProxies lists the load balancers whose forwarding headers are believed.
// A nil *TrustedProxies trusts nobody.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies accepts addresses and CIDR ranges ("10.0.0.0/8", "192.168.1.4").
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	tp := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			tp.prefixes = append(tp.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		tp.prefixes = append(tp.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return tp, nil
}

func (tp *TrustedProxies) trusts(ip string) bool {
	if tp == nil {
		return false
	}
	a, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address unless the peer is a trusted proxy. Behind a trusted proxy it
// walks x-forwarded-for from the right and returns the first hop that is not itself trusted,
// falling back to x-real-ip and then the peer.
func (tp *TrustedProxies) ClientIP(ctx context.Context) string {
	peerIP := PeerIP(ctx)
	if !tp.trusts(peerIP) {
		return peerIP
	}
	md, _ := metadata.FromIncomingContext(ctx)
	if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
		hops := strings.Split(strings.Join(vals, ","), ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			client = hop
			if !tp.trusts(hop) {
				break
			}
		}
		if client != "" {
			return client
		}
	}
	if vals := md.Get("x-real-ip"); len(vals) > 0 {
		if s := strings.TrimSpace(vals[0]); s != "" {
			return s
		}
	}
	return peerIP
}
