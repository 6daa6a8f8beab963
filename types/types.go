// Package types contains the value types shared by every mailverify package.
// It imports nothing from the rest of the module so that check/, internal/
// and the root package can all depend on it without cycles.
package types

import "time"

// Status is the final verdict for an address.
type Status string

const (
	StatusValid    Status = "valid"
	StatusInvalid  Status = "invalid"
	StatusCatchAll Status = "catch-all"
	StatusUnknown  Status = "unknown"
	StatusError    Status = "error"
)

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusCatchAll, StatusUnknown, StatusError:
		return true
	}
	return false
}

// Outcome classifies a single SMTP dialogue.
type Outcome string

const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeTempFailure    Outcome = "temporary-failure"
	OutcomePermFailure    Outcome = "permanent-failure"
	OutcomeTransportError Outcome = "transport-error"
)

// DomainFacts are the DNS-derived facts about a domain, resolved once per
// verification. Empty strings mean the record is absent.
type DomainFacts struct {
	MXHosts     []string `json:"mxHosts"`
	SPF         string   `json:"spf,omitempty"`
	DMARC       string   `json:"dmarc,omitempty"`
	DKIM        string   `json:"dkim,omitempty"`
	Blacklisted bool     `json:"blacklisted"`
}

// PolicyRecords counts how many of SPF, DKIM and DMARC are present.
func (f DomainFacts) PolicyRecords() int {
	n := 0
	for _, r := range []string{f.SPF, f.DKIM, f.DMARC} {
		if r != "" {
			n++
		}
	}
	return n
}

// ProbeOutcome is the result of one SMTP dialogue against one (host, port).
type ProbeOutcome struct {
	Host       string        `json:"host"`
	Port       string        `json:"port"`
	Outcome    Outcome       `json:"outcome"`
	Code       int           `json:"code,omitempty"`
	Response   string        `json:"response,omitempty"`
	Diagnostic string        `json:"diagnostic"` // e.g. "Port 25 blocked", "SMTP rejected: 550"
	Err        error         `json:"-"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Accepted reports whether the recipient was accepted (250/251).
func (o ProbeOutcome) Accepted() bool {
	return o.Outcome == OutcomeAccepted
}

// CatchAllVerdict is the result of probing a domain with synthetic recipients.
type CatchAllVerdict struct {
	CatchAll bool `json:"catchAll"`
	Accepted int  `json:"accepted"`
	Tried    int  `json:"tried"`
}
