package check

import "errors"

var (
	// ErrSyntax is returned by SyntaxChecker for malformed addresses.
	ErrSyntax = errors.New("invalid syntax")

	// ErrNoRoute marks a domain without usable MX records.
	ErrNoRoute = errors.New("no MX records found")
)
