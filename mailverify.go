// Package mailverify checks whether an email address can plausibly receive
// mail without sending any: syntax, DNS, domain reputation and an SMTP
// dialogue that stops at RCPT TO, combined into a status and a score.
//
// Basic usage:
//
//	cfg := mailverify.DefaultConfig()
//	cfg.SMTP.HeloDomain = "myapp.com"
//	cfg.SMTP.MailFrom = "verify@myapp.com"
//
//	v := mailverify.New(cfg)
//	defer v.Close()
//	result, err := v.Verify(ctx, "user@example.com")
package mailverify

import "github.com/optimode/mailverify/types"

// Status is a re-export from the types package so that consumers
// don't need to import the types package directly.
type Status = types.Status

// ProbeOutcome is a re-export.
type ProbeOutcome = types.ProbeOutcome

// Status constants re-exported.
const (
	StatusValid    = types.StatusValid
	StatusInvalid  = types.StatusInvalid
	StatusCatchAll = types.StatusCatchAll
	StatusUnknown  = types.StatusUnknown
	StatusError    = types.StatusError
)
