package check

import (
	"context"
	"net"
	"slices"
	"strings"
	"time"
)

// DefaultBlocklistZone is the DNS blocklist queried for domain reputation.
const DefaultBlocklistZone = "dbl.spamhaus.org"

// ReputationProbe checks a domain against a DNS-based blocklist.
type ReputationProbe struct {
	zone     string
	timeout  time.Duration
	resolver Resolver
}

// NewReputationProbe creates a probe for zone over r. Empty zone uses
// DefaultBlocklistZone; a nil r uses the system resolver.
func NewReputationProbe(zone string, timeout time.Duration, r Resolver) *ReputationProbe {
	if zone == "" {
		zone = DefaultBlocklistZone
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if r == nil {
		r = &net.Resolver{}
	}
	return &ReputationProbe{zone: strings.Trim(zone, "."), timeout: timeout, resolver: r}
}

// LookupName builds the query name: the domain's labels reversed, then zone.
// "mail.example.com" in "dbl.example" becomes "com.example.mail.dbl.example".
func LookupName(domain, zone string) string {
	labels := strings.Split(strings.Trim(domain, "."), ".")
	slices.Reverse(labels)
	return strings.Join(labels, ".") + "." + zone
}

// IsBlacklisted reports whether the blocklist has any A record for the
// domain. NXDOMAIN and every lookup failure count as not listed.
func (p *ReputationProbe) IsBlacklisted(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addrs, err := p.resolver.LookupHost(ctx, LookupName(domain, p.zone))
	return err == nil && len(addrs) > 0
}
