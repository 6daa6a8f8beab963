package check_test

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/optimode/mailverify/types"
)

// fakeResolver answers from static maps and counts every query.
// Names missing from a map return a not-found DNSError.
type fakeResolver struct {
	mx    map[string][]*net.MX
	txt   map[string][]string
	hosts map[string][]string
	err   error // returned for every query when set
	calls atomic.Int64

	mu      sync.Mutex
	queried []string
}

func (f *fakeResolver) record(name string) {
	f.calls.Add(1)
	f.mu.Lock()
	f.queried = append(f.queried, name)
	f.mu.Unlock()
}

func notFound(name string) error {
	return &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	f.record(name)
	if f.err != nil {
		return nil, f.err
	}
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
	f.record(name)
	if f.err != nil {
		return nil, f.err
	}
	txt, ok := f.txt[name]
	if !ok {
		return nil, notFound(name)
	}
	return txt, nil
}

func (f *fakeResolver) LookupHost(_ context.Context, name string) ([]string, error) {
	f.record(name)
	if f.err != nil {
		return nil, f.err
	}
	addrs, ok := f.hosts[name]
	if !ok {
		return nil, notFound(name)
	}
	return addrs, nil
}

// fakeProber accepts recipients for which accept returns true.
type fakeProber struct {
	accept func(recipient string) types.Outcome
	calls  atomic.Int64
}

func (f *fakeProber) Probe(_ context.Context, host, port, recipient string) types.ProbeOutcome {
	f.calls.Add(1)
	return types.ProbeOutcome{Host: host, Port: port, Outcome: f.accept(recipient)}
}
