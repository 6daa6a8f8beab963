package check

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/optimode/mailverify/types"
)

// Prober runs one SMTP dialogue up to RCPT TO. smtpprobe.Engine implements it.
type Prober interface {
	Probe(ctx context.Context, host, port, recipient string) types.ProbeOutcome
}

// CatchAllConfig is the catch-all prober configuration.
type CatchAllConfig struct {
	Probes    int // synthetic recipients per check (default and minimum: 3)
	Threshold int // acceptances needed to declare catch-all (default: 2)
}

// CatchAllProber estimates whether a server accepts any recipient by
// probing addresses that almost certainly do not exist.
type CatchAllProber struct {
	cfg    CatchAllConfig
	prober Prober
	// localParts is injectable for testing.
	localParts func(n int) []string
}

func NewCatchAllProber(cfg CatchAllConfig, p Prober) *CatchAllProber {
	if cfg.Probes < 3 {
		cfg.Probes = 3
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 2
	}
	return &CatchAllProber{cfg: cfg, prober: p, localParts: SyntheticLocalParts}
}

// Probe sends one dialogue per synthetic recipient at host:port and counts
// acceptances. Errors are skipped, not fatal. Probing stops early once the
// threshold is reached or ctx is done.
func (c *CatchAllProber) Probe(ctx context.Context, host, port, domain string) types.CatchAllVerdict {
	var v types.CatchAllVerdict
	for _, local := range c.localParts(c.cfg.Probes) {
		if ctx.Err() != nil {
			break
		}
		v.Tried++
		if c.prober.Probe(ctx, host, port, local+"@"+domain).Accepted() {
			v.Accepted++
		}
		if v.Accepted >= c.cfg.Threshold {
			break
		}
	}
	v.CatchAll = v.Accepted >= c.cfg.Threshold
	return v
}

const lower = "abcdefghijklmnopqrstuvwxyz"
const alnum = lower + "0123456789"

// SyntheticLocalParts returns n local parts that are valid syntax but
// vanishingly unlikely to be real mailboxes.
func SyntheticLocalParts(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		switch i % 3 {
		case 0:
			out = append(out, randString(lower, 15)+"9999")
		case 1:
			out = append(out, fmt.Sprintf("definitely-not-real-%d", 100000+rand.Intn(900000)))
		default:
			out = append(out, "test-nonexistent-"+randString(alnum, 10))
		}
	}
	return out
}

func randString(alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}
