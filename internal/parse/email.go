package parse

import (
	"strings"

	"golang.org/x/net/idna"
)

// Email is an address split into its parts.
// The check/ packages and the verifier receive this as parameter.
type Email struct {
	Raw           string // the input exactly as given
	Local         string // the part before @
	Domain        string // the part after @, lower-case ASCII/Punycode form (for DNS/SMTP)
	DomainUnicode string // the part after @, Unicode form (for display/typo detection)
	Valid         bool   // false unless there is exactly one @ with non-empty parts around it
}

// Address returns local@domain with the ASCII domain, the form sent in RCPT TO.
func (e Email) Address() string {
	if !e.Valid {
		return e.Raw
	}
	return e.Local + "@" + e.Domain
}

// NewEmail splits raw into local part and domain.
// If the split fails, Valid=false but Raw is always populated.
// Internationalized domain names are converted to Punycode (IDNA2008).
func NewEmail(raw string) Email {
	addr := strings.TrimSpace(raw)

	if strings.Count(addr, "@") != 1 {
		return Email{Raw: raw}
	}
	atIdx := strings.IndexByte(addr, '@')
	local, domain := addr[:atIdx], addr[atIdx+1:]
	if local == "" || domain == "" {
		return Email{Raw: raw}
	}

	asciiDomain, unicodeDomain, ok := convertDomain(strings.ToLower(domain))
	if !ok {
		return Email{Raw: raw}
	}

	return Email{
		Raw:           raw,
		Local:         local,
		Domain:        asciiDomain,
		DomainUnicode: unicodeDomain,
		Valid:         true,
	}
}

// convertDomain converts a domain to both ASCII/Punycode and Unicode forms.
// ok is false if the domain contains non-ASCII characters that fail
// IDNA2008 validation.
func convertDomain(domain string) (ascii, unicode string, ok bool) {
	hasNonASCII := false
	for _, r := range domain {
		if r > 127 {
			hasNonASCII = true
			break
		}
	}

	if hasNonASCII {
		a, err := idna.Lookup.ToASCII(domain)
		if err != nil {
			return "", "", false
		}
		return a, domain, true
	}

	// xn--mnchen-3ya.de -> münchen.de
	u, err := idna.Display.ToUnicode(domain)
	if err != nil {
		u = domain
	}
	return domain, u, true
}
