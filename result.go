package mailverify

// Result is the outcome of verifying one address. It is built once by the
// Verifier and not modified afterwards.
type Result struct {
	Email  string  `json:"email"`
	Domain string  `json:"domain"`
	Status Status  `json:"status"`
	Reason string  `json:"reason"`
	Score  float64 `json:"score"`

	SMTPValid      bool `json:"smtp_valid"`
	IsCatchAll     bool `json:"is_catch_all"`
	IsDisposable   bool `json:"is_disposable"`
	IsFreeProvider bool `json:"is_free_provider"`
	IsRoleBased    bool `json:"is_role_based"`
	IsBlacklisted  bool `json:"is_blacklisted"`

	SPF   string `json:"spf,omitempty"`
	DMARC string `json:"dmarc,omitempty"`
	DKIM  string `json:"dkim,omitempty"`

	// MXHost and Port identify the pair that produced the verdict, if any.
	MXHost string `json:"mx_host,omitempty"`
	Port   string `json:"port,omitempty"`

	// Suggestion is a likely intended domain when this one looks like a typo.
	Suggestion string `json:"suggestion,omitempty"`

	// Probes lists every SMTP dialogue with the real recipient, in order.
	Probes []ProbeOutcome `json:"probes,omitempty"`
}

// Deliverable reports whether mail to the address is expected to be
// accepted: the status is valid or catch-all.
func (r Result) Deliverable() bool {
	return r.Status == StatusValid || r.Status == StatusCatchAll
}

// LastProbe returns the final SMTP dialogue, if any ran.
func (r Result) LastProbe() (ProbeOutcome, bool) {
	if len(r.Probes) == 0 {
		return ProbeOutcome{}, false
	}
	return r.Probes[len(r.Probes)-1], true
}
