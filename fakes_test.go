package mailverify_test

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/optimode/mailverify"
	"github.com/optimode/mailverify/check"
	"github.com/optimode/mailverify/types"
)

// fakeResolver answers from static maps and counts every query.
type fakeResolver struct {
	mx    map[string][]*net.MX
	txt   map[string][]string
	hosts map[string][]string
	calls atomic.Int64
}

func notFound(name string) error {
	return &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	f.calls.Add(1)
	recs, ok := f.mx[name]
	if !ok {
		return nil, notFound(name)
	}
	out := make([]*net.MX, len(recs))
	for i, r := range recs {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	f.calls.Add(1)
	if txt, ok := f.txt[name]; ok {
		return txt, nil
	}
	return nil, notFound(name)
}

func (f *fakeResolver) LookupHost(_ context.Context, name string) ([]string, error) {
	f.calls.Add(1)
	if addrs, ok := f.hosts[name]; ok {
		return addrs, nil
	}
	return nil, notFound(name)
}

// withMX adds a single MX host for each domain.
func (f *fakeResolver) withMX(domains ...string) *fakeResolver {
	if f.mx == nil {
		f.mx = map[string][]*net.MX{}
	}
	for _, d := range domains {
		f.mx[d] = []*net.MX{{Host: "mx." + d + ".", Pref: 10}}
	}
	return f
}

type probeCall struct {
	host, port, recipient string
}

// fakeProber answers every dialogue with answer(host, port, recipient) and
// fills in the diagnostic the real engine would produce.
type fakeProber struct {
	answer func(host, port, recipient string) types.Outcome

	mu    sync.Mutex
	calls []probeCall
}

func (f *fakeProber) Probe(_ context.Context, host, port, recipient string) types.ProbeOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, probeCall{host, port, recipient})
	f.mu.Unlock()

	o := types.ProbeOutcome{Host: host, Port: port, Outcome: f.answer(host, port, recipient)}
	switch o.Outcome {
	case types.OutcomeAccepted:
		o.Code, o.Diagnostic = 250, "Email accepted"
	case types.OutcomeTempFailure:
		o.Code, o.Diagnostic = 450, "Temporary failure: 450"
	case types.OutcomePermFailure:
		o.Code, o.Diagnostic = 550, "SMTP rejected: 550"
	default:
		o.Diagnostic = fmt.Sprintf("Port %s blocked", port)
	}
	return o
}

func (f *fakeProber) Calls() []probeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]probeCall(nil), f.calls...)
}

// always answers every dialogue the same way.
func always(o types.Outcome) *fakeProber {
	return &fakeProber{answer: func(string, string, string) types.Outcome { return o }}
}

// onlyRecipient accepts real and answers other for every other recipient.
func onlyRecipient(real string, other types.Outcome) *fakeProber {
	return &fakeProber{answer: func(_, _, rcpt string) types.Outcome {
		if strings.EqualFold(rcpt, real) {
			return types.OutcomeAccepted
		}
		return other
	}}
}

// panicProber simulates an internal fault in the pipeline.
type panicProber struct{}

func (panicProber) Probe(context.Context, string, string, string) types.ProbeOutcome {
	panic("probe exploded")
}

var _ check.Prober = (*fakeProber)(nil)

func testConfig() mailverify.Config {
	cfg := mailverify.DefaultConfig()
	cfg.SMTP.HeloDomain = "verifier.test"
	cfg.SMTP.MailFrom = "probe@verifier.test"
	return cfg
}

func newVerifier(r *fakeResolver, p check.Prober) *mailverify.Verifier {
	return mailverify.New(testConfig()).WithResolver(r).WithProber(p)
}

// funcProber builds every outcome itself, including Err.
type funcProber func(host, port, recipient string) types.ProbeOutcome

func (f funcProber) Probe(_ context.Context, host, port, recipient string) types.ProbeOutcome {
	return f(host, port, recipient)
}
