package check

import (
	"context"
	"net"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/optimode/mailverify/types"
)

// Resolver is the DNS capability the probes need. *net.Resolver,
// dnscache.Cache and dnsclient.Resolver all satisfy it.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DefaultDKIMSelectors are the well-known selectors tried in order.
var DefaultDKIMSelectors = []string{"default", "selector1", "google", "mail", "smtp", "k1", "dkim", "key1"}

// DNSConfig is the DNS probe configuration.
type DNSConfig struct {
	Timeout       time.Duration // per lookup
	DKIMSelectors []string
	// OrgDMARC enables the RFC 7489 fallback to _dmarc.<organizational domain>.
	OrgDMARC bool
}

// DNSProbe resolves MX and policy records. All lookups are read-only,
// bounded by Timeout, and fail open to "empty"/"absent".
type DNSProbe struct {
	cfg      DNSConfig
	resolver Resolver
}

// NewDNSProbe creates a probe over r. A nil r uses the system resolver.
func NewDNSProbe(cfg DNSConfig, r Resolver) *DNSProbe {
	if r == nil {
		r = &net.Resolver{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.DKIMSelectors == nil {
		cfg.DKIMSelectors = DefaultDKIMSelectors
	}
	return &DNSProbe{cfg: cfg, resolver: r}
}

// ResolveMX returns mail exchanger hostnames, lowest preference first, ties
// in resolver order. Any failure yields an empty list.
func (p *DNSProbe) ResolveMX(ctx context.Context, domain string) []string {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	records, err := p.resolver.LookupMX(ctx, domain)
	if err != nil || len(records) == 0 {
		return nil
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Pref < records[j].Pref
	})

	hosts := make([]string, 0, len(records))
	for _, mx := range records {
		host := strings.TrimSuffix(mx.Host, ".")
		// RFC 7505 null MX: the domain accepts no mail
		if host == "" {
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts
}

// ResolveSPF returns the first TXT record at domain starting with v=spf1.
func (p *DNSProbe) ResolveSPF(ctx context.Context, domain string) string {
	return p.firstTXT(ctx, domain, "v=spf1")
}

// ResolveDMARC returns the DMARC policy at _dmarc.<domain>, falling back to
// the organizational domain when OrgDMARC is set.
func (p *DNSProbe) ResolveDMARC(ctx context.Context, domain string) string {
	if rec := p.firstTXT(ctx, "_dmarc."+domain, "v=dmarc1"); rec != "" || !p.cfg.OrgDMARC {
		return rec
	}
	org, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil || org == domain {
		return ""
	}
	return p.firstTXT(ctx, "_dmarc."+org, "v=dmarc1")
}

// ResolveDKIM probes the configured selectors in order and returns the
// first v=DKIM1 record. Absence is inconclusive: selectors are not
// discoverable.
func (p *DNSProbe) ResolveDKIM(ctx context.Context, domain string) string {
	for _, sel := range p.cfg.DKIMSelectors {
		if ctx.Err() != nil {
			return ""
		}
		if rec := p.firstTXT(ctx, sel+"._domainkey."+domain, "v=dkim1"); rec != "" {
			return rec
		}
	}
	return ""
}

// Facts resolves everything except the blacklist flag. Policy records are
// skipped for a domain without MX hosts.
func (p *DNSProbe) Facts(ctx context.Context, domain string) types.DomainFacts {
	facts := types.DomainFacts{MXHosts: p.ResolveMX(ctx, domain)}
	if len(facts.MXHosts) == 0 {
		return facts
	}
	facts.SPF = p.ResolveSPF(ctx, domain)
	facts.DMARC = p.ResolveDMARC(ctx, domain)
	facts.DKIM = p.ResolveDKIM(ctx, domain)
	return facts
}

func (p *DNSProbe) firstTXT(ctx context.Context, name, prefix string) string {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	records, err := p.resolver.LookupTXT(ctx, name)
	if err != nil {
		return ""
	}
	for _, r := range records {
		r = strings.Trim(strings.TrimSpace(r), `"`)
		if strings.HasPrefix(strings.ToLower(r), prefix) {
			return r
		}
	}
	return ""
}
