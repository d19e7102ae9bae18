package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// TrustedRealIP resolves the client IP from X-Real-IP or X-Forwarded-For,
// but only when the connection comes from a trusted proxy CIDR. The
// resolved IP replaces RemoteAddr and the X-Real-IP header; for untrusted
// sources both headers are dropped so downstream consumers (rate limiter,
// request log) never act on spoofed values.
func TrustedRealIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	// Parse trusted CIDRs once at startup.
	var trustedNets []*net.IPNet
	for _, cidr := range trustedCIDRs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}

		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			// Accept a bare IP as its /32 or /128.
			if ip := net.ParseIP(cidr); ip != nil {
				mask := net.CIDRMask(128, 128)
				if ip.To4() != nil {
					mask = net.CIDRMask(32, 32)
				}
				trustedNets = append(trustedNets, &net.IPNet{IP: ip, Mask: mask})
			} else {
				slog.Warn("realip: invalid trusted proxy CIDR, skipping",
					"cidr", cidr,
					"error", err,
				)
			}
			continue
		}
		trustedNets = append(trustedNets, network)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remoteIP := extractIP(r.RemoteAddr)

			if !isTrusted(remoteIP, trustedNets) {
				r.Header.Del("X-Real-IP")
				r.Header.Del("X-Forwarded-For")
				next.ServeHTTP(w, r)
				return
			}

			// Downstream consumers see a validated X-Real-IP or none.
			if client := clientIP(r); client != nil {
				r.RemoteAddr = client.String()
				r.Header.Set("X-Real-IP", client.String())
			} else {
				r.Header.Del("X-Real-IP")
				r.Header.Del("X-Forwarded-For")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP picks the forwarded client address: X-Real-IP wins, otherwise
// the first entry of the X-Forwarded-For chain. Invalid values yield nil.
func clientIP(r *http.Request) net.IP {
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return net.ParseIP(strings.TrimSpace(rip))
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return nil
	}
	candidate := xff
	if idx := strings.Index(xff, ","); idx > 0 {
		candidate = xff[:idx]
	}
	return net.ParseIP(strings.TrimSpace(candidate))
}

// extractIP parses an IP address from a host:port string or plain IP.
func extractIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

// isTrusted checks if an IP is within any of the trusted networks.
func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
