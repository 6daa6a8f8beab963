package check

import "math"

// Signals are the facts the score is computed from.
type Signals struct {
	SMTPValid   bool
	CatchAll    bool
	Disposable  bool
	Blacklisted bool
	RoleBased   bool
	SPF         bool
	DKIM        bool
	DMARC       bool
}

// Score combines signals into a confidence in [0, 1], rounded to two
// decimals. Penalties stack; the SMTP penalty is waived for catch-all
// domains; each DNS policy record present adds 0.1.
func Score(s Signals) float64 {
	score := 1.0
	if s.CatchAll {
		score -= 0.3
	}
	if s.Disposable {
		score -= 0.4
	}
	if s.Blacklisted {
		score -= 0.4
	}
	if s.RoleBased {
		score -= 0.2
	}
	if !s.SMTPValid && !s.CatchAll {
		score -= 0.6
	}
	for _, present := range []bool{s.SPF, s.DKIM, s.DMARC} {
		if present {
			score += 0.1
		}
	}
	return Clamp(score)
}

// Clamp bounds score to [0, 1] and rounds it to two decimals.
func Clamp(score float64) float64 {
	score = math.Max(0, math.Min(1, score))
	return math.Round(score*100) / 100
}
