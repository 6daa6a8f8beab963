package mailverify

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// BatchOptions configures VerifyMany.
type BatchOptions struct {
	// Workers is the number of concurrent goroutines. Default: 5
	Workers int
	// OnResult, when set, is called once per address as soon as it is
	// verified, from the worker goroutines. It must be safe for concurrent use.
	OnResult func(index int, r Result)
}

// VerifyMany verifies multiple emails concurrently.
// The result order matches the input slice order.
// Emails are scheduled sorted by domain so that lookups for one domain
// hit the DNS cache and per-host rate limits spread evenly.
func (v *Verifier) VerifyMany(ctx context.Context, emails []string, opts ...BatchOptions) ([]Result, error) {
	if v.err != nil {
		return nil, v.err
	}

	var o BatchOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	workers := 5
	if o.Workers > 0 {
		workers = o.Workers
	}

	results := make([]Result, len(emails))
	type job struct {
		idx    int
		email  string
		domain string
	}

	jobSlice := make([]job, len(emails))
	for i, e := range emails {
		domain := ""
		if atIdx := strings.LastIndex(e, "@"); atIdx >= 0 {
			domain = strings.ToLower(e[atIdx+1:])
		}
		jobSlice[i] = job{idx: i, email: e, domain: domain}
	}
	sort.SliceStable(jobSlice, func(i, j int) bool {
		return jobSlice[i].domain < jobSlice[j].domain
	})

	bufSize := min(len(emails), 1000)
	jobs := make(chan job, bufSize)
	go func() {
		defer close(jobs)
		for _, j := range jobSlice {
			jobs <- j
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				// Verify only fails on configuration, checked above.
				res, _ := v.Verify(ctx, j.email)
				results[j.idx] = res
				if o.OnResult != nil {
					o.OnResult(j.idx, res)
				}
			}
		}()
	}

	wg.Wait()
	return results, nil
}
