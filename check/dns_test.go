package check_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/optimode/mailverify/check"
)

func newDNSProbe(r check.Resolver) *check.DNSProbe {
	return check.NewDNSProbe(check.DNSConfig{Timeout: 2 * time.Second, OrgDMARC: true}, r)
}

func TestDNSProbe_ResolveMX_SortsByPreference(t *testing.T) {
	r := &fakeResolver{mx: map[string][]*net.MX{
		"example.com": {
			{Host: "mx3.example.com.", Pref: 20},
			{Host: "mx1.example.com.", Pref: 10},
			{Host: "mx2.example.com.", Pref: 10},
		},
	}}
	hosts := newDNSProbe(r).ResolveMX(context.Background(), "example.com")
	assert.Equal(t, []string{"mx1.example.com", "mx2.example.com", "mx3.example.com"}, hosts)
}

func TestDNSProbe_ResolveMX_FailsOpen(t *testing.T) {
	tests := []struct {
		name string
		r    *fakeResolver
	}{
		{"nxdomain", &fakeResolver{}},
		{"timeout", &fakeResolver{err: &net.DNSError{Err: "i/o timeout", IsTimeout: true}}},
		{"no records", &fakeResolver{mx: map[string][]*net.MX{"example.com": {}}}},
		{"null MX", &fakeResolver{mx: map[string][]*net.MX{"example.com": {{Host: ".", Pref: 0}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, newDNSProbe(tt.r).ResolveMX(context.Background(), "example.com"))
		})
	}
}

func TestDNSProbe_PolicyRecords(t *testing.T) {
	r := &fakeResolver{txt: map[string][]string{
		"example.com": {
			"google-site-verification=abc",
			"V=SPF1 include:_spf.example.com ~all",
		},
		"_dmarc.example.com":               {"v=DMARC1; p=reject"},
		"default._domainkey.example.com":   {"not a key"},
		"selector1._domainkey.example.com": {"v=DKIM1; k=rsa; p=MIGf"},
		"google._domainkey.example.com":    {"v=DKIM1; k=rsa; p=other"},
	}}
	p := newDNSProbe(r)
	ctx := context.Background()

	assert.Equal(t, "V=SPF1 include:_spf.example.com ~all", p.ResolveSPF(ctx, "example.com"))
	assert.Equal(t, "v=DMARC1; p=reject", p.ResolveDMARC(ctx, "example.com"))
	assert.Equal(t, "v=DKIM1; k=rsa; p=MIGf", p.ResolveDKIM(ctx, "example.com"))
	assert.NotContains(t, r.queried, "google._domainkey.example.com", "DKIM stops at first hit")
}

func TestDNSProbe_AbsentRecords(t *testing.T) {
	p := newDNSProbe(&fakeResolver{err: errors.New("servfail")})
	ctx := context.Background()

	assert.Empty(t, p.ResolveSPF(ctx, "example.com"))
	assert.Empty(t, p.ResolveDMARC(ctx, "example.com"))
	assert.Empty(t, p.ResolveDKIM(ctx, "example.com"))
}

func TestDNSProbe_DMARCOrganizationalFallback(t *testing.T) {
	r := &fakeResolver{txt: map[string][]string{
		"_dmarc.example.co.uk": {"v=DMARC1; p=quarantine"},
	}}
	ctx := context.Background()

	assert.Equal(t, "v=DMARC1; p=quarantine", newDNSProbe(r).ResolveDMARC(ctx, "mail.example.co.uk"))

	strict := check.NewDNSProbe(check.DNSConfig{Timeout: time.Second}, r)
	assert.Empty(t, strict.ResolveDMARC(ctx, "mail.example.co.uk"))
}

func TestDNSProbe_CustomSelectors(t *testing.T) {
	r := &fakeResolver{txt: map[string][]string{
		"s2024._domainkey.example.com": {"v=DKIM1; p=abc"},
	}}
	p := check.NewDNSProbe(check.DNSConfig{DKIMSelectors: []string{"s2024"}}, r)
	assert.Equal(t, "v=DKIM1; p=abc", p.ResolveDKIM(context.Background(), "example.com"))
}

func TestDNSProbe_FactsIdempotent(t *testing.T) {
	r := &fakeResolver{
		mx:  map[string][]*net.MX{"example.com": {{Host: "mx.example.com.", Pref: 10}}},
		txt: map[string][]string{"example.com": {"v=spf1 -all"}, "_dmarc.example.com": {"v=DMARC1; p=none"}},
	}
	p := newDNSProbe(r)

	first := p.Facts(context.Background(), "example.com")
	second := p.Facts(context.Background(), "example.com")
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"mx.example.com"}, first.MXHosts)
	assert.Equal(t, 2, first.PolicyRecords())
}

func TestDNSProbe_FactsWithoutMXSkipsPolicy(t *testing.T) {
	r := &fakeResolver{
		txt: map[string][]string{"example.com": {"v=spf1 -all"}},
	}
	facts := newDNSProbe(r).Facts(context.Background(), "example.com")

	assert.Empty(t, facts.MXHosts)
	assert.Empty(t, facts.SPF)
	assert.Equal(t, int64(1), r.calls.Load())
}
