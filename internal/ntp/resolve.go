// ABOUTME: DNS resolution of the NTP server table
// ABOUTME: Doubles as the internet-reachability probe: a resolved name proves working access
package ntp

import (
	"context"
	"log"
	"net"
	"time"
)

const (
	resolveTimeout  = 5 * time.Second
	resolveRetryGap = 500 * time.Millisecond
	ntpPort         = "123"
)

// Resolver resolves hostnames; satisfied by *net.Resolver and by test fakes.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// ResolveServers resolves every hostname to an "ip:123" address, repeating up
// to repeats passes. In non-blocking mode it returns as soon as one address
// is known. A nil resolver uses the system resolver. An empty map means no
// server could be resolved.
func ResolveServers(ctx context.Context, r Resolver, hosts []string, repeats int, blocking bool, feed func(string)) map[string]string {
	if r == nil {
		r = net.DefaultResolver
	}
	if repeats < 1 {
		repeats = 1
	}
	if feed == nil {
		feed = func(string) {}
	}

	resolved := make(map[string]string)

	for pass := 0; pass < repeats; pass++ {
		feed("dns-pass")

		for _, host := range hosts {
			if _, done := resolved[host]; done {
				continue
			}
			// Literal "ip:port" endpoints (locally discovered servers)
			// are already addresses.
			if h, _, err := net.SplitHostPort(host); err == nil && net.ParseIP(h) != nil {
				resolved[host] = host
				if !blocking {
					return resolved
				}
				continue
			}
			feed("dns-lookup")

			lookupCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
			addrs, err := r.LookupHost(lookupCtx, host)
			cancel()
			if err != nil || len(addrs) == 0 {
				log.Printf("[DNS] %s: resolution failed: %v", host, err)
				continue
			}

			resolved[host] = net.JoinHostPort(addrs[0], ntpPort)
			if !blocking {
				return resolved
			}
		}

		if len(resolved) == len(hosts) {
			return resolved
		}
		if !blocking && len(resolved) > 0 {
			return resolved
		}

		select {
		case <-ctx.Done():
			return resolved
		case <-time.After(resolveRetryGap):
		}
	}

	return resolved
}

// CheckInternet treats a successful DNS resolution of any NTP hostname as
// proof of working internet access, independent of link association.
func CheckInternet(ctx context.Context, r Resolver, hosts []string, attempts int, feed func(string)) bool {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		got := ResolveServers(ctx, r, hosts, 1, false, feed)
		if len(got) > 0 {
			log.Printf("[INTERNET] connectivity confirmed: %d NTP server(s) resolved", len(got))
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	log.Printf("[INTERNET] no connectivity detected")
	return false
}
