package check

import (
	"fmt"
	"regexp"

	"github.com/optimode/mailverify/internal/parse"
)

// addrPattern is local@domain: letters, digits and _ . % + - before the @,
// dot-separated labels of letters, digits and - after it, at least one dot.
var addrPattern = regexp.MustCompile(`^[a-zA-Z0-9_.%+-]+@[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)+$`)

// SyntaxChecker rejects structurally invalid addresses before any network I/O.
type SyntaxChecker struct{}

func NewSyntaxChecker() *SyntaxChecker {
	return &SyntaxChecker{}
}

// Check returns nil if the address is well formed, or an error wrapping
// ErrSyntax that says why not.
func (c *SyntaxChecker) Check(email parse.Email) error {
	if email.Raw == "" {
		return fmt.Errorf("%w: empty address", ErrSyntax)
	}
	if !email.Valid {
		return fmt.Errorf("%w: expected exactly one @ between non-empty parts", ErrSyntax)
	}

	// RFC 5321 length limits
	if len(email.Local) > 64 {
		return fmt.Errorf("%w: local part exceeds 64 characters", ErrSyntax)
	}
	// The pattern applies to the input as given: no trimming, no IDNA.
	addr := email.Raw
	if len(addr) > 254 {
		return fmt.Errorf("%w: address exceeds 254 characters", ErrSyntax)
	}

	if !addrPattern.MatchString(addr) {
		return fmt.Errorf("%w: %q does not match local@domain.tld", ErrSyntax, addr)
	}
	return nil
}
