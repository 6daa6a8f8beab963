package check

import (
	"strings"

	"github.com/optimode/mailverify/internal/levenshtein"
	"github.com/optimode/mailverify/internal/wordlist"
)

// DomainConfig holds the static lists used for domain classification.
// A nil list means "use the embedded default"; an empty non-nil list
// disables that classification.
type DomainConfig struct {
	DisposableDomains []string
	FreeProviders     []string
	RolePrefixes      []string
	// TypoThreshold is the max edit distance for a typo suggestion. 0 disables suggestions.
	TypoThreshold int
}

// DomainIntel classifies domains and local parts against static sets.
// It performs no I/O.
type DomainIntel struct {
	disposable wordlist.Set
	free       wordlist.Set
	roles      wordlist.Set
	providers  []string // free providers, in list order, for typo suggestions
	typoMax    int
}

func NewDomainIntel(cfg DomainConfig) *DomainIntel {
	if cfg.DisposableDomains == nil {
		cfg.DisposableDomains = wordlist.Disposable()
	}
	if cfg.FreeProviders == nil {
		cfg.FreeProviders = wordlist.FreeProviders()
	}
	if cfg.RolePrefixes == nil {
		cfg.RolePrefixes = wordlist.RolePrefixes()
	}

	providers := make([]string, 0, len(cfg.FreeProviders))
	for _, p := range cfg.FreeProviders {
		providers = append(providers, strings.ToLower(strings.TrimSpace(p)))
	}

	return &DomainIntel{
		disposable: wordlist.NewSet(cfg.DisposableDomains),
		free:       wordlist.NewSet(cfg.FreeProviders),
		roles:      wordlist.NewSet(cfg.RolePrefixes),
		providers:  providers,
		typoMax:    cfg.TypoThreshold,
	}
}

func (d *DomainIntel) IsDisposable(domain string) bool {
	return d.disposable.Has(domain)
}

func (d *DomainIntel) IsFreeProvider(domain string) bool {
	return d.free.Has(domain)
}

// IsRoleBased matches the whole local part, so "support" is a role
// account but "support.team" is not.
func (d *DomainIntel) IsRoleBased(local string) bool {
	return d.roles.Has(local)
}

// Suggest returns the closest free provider within the typo threshold,
// or "" if domain is itself a provider or nothing is close enough.
func (d *DomainIntel) Suggest(domain string) string {
	if d.typoMax <= 0 {
		return ""
	}
	domain = strings.ToLower(domain)
	if d.free.Has(domain) {
		return ""
	}

	best, bestDist := "", d.typoMax+1
	for _, p := range d.providers {
		if !levenshtein.Within(domain, p, d.typoMax) {
			continue
		}
		if dist := levenshtein.Distance(domain, p); dist < bestDist {
			best, bestDist = p, dist
		}
	}
	return best
}
