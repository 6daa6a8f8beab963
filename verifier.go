package mailverify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/optimode/mailverify/check"
	"github.com/optimode/mailverify/internal/dnscache"
	"github.com/optimode/mailverify/internal/dnsclient"
	"github.com/optimode/mailverify/internal/factstore"
	"github.com/optimode/mailverify/internal/metrics"
	"github.com/optimode/mailverify/internal/parse"
	"github.com/optimode/mailverify/internal/smtpprobe"
	"github.com/optimode/mailverify/types"
)

// Resolver is the DNS capability used for MX, TXT and blocklist lookups.
// *net.Resolver satisfies it.
type Resolver = check.Resolver

// Prober runs one SMTP dialogue up to RCPT TO.
type Prober = check.Prober

// FactsStore caches DomainFacts between verifications, typically shared
// by several processes. Errors are logged and otherwise ignored.
type FactsStore interface {
	Get(ctx context.Context, domain string) (types.DomainFacts, bool, error)
	Put(ctx context.Context, domain string, facts types.DomainFacts) error
}

// Verifier sequences the checks for one address and turns their signals
// into a Result. Instantiate with New; the With* methods replace
// collaborators and are meant to be called before the first Verify.
// It is safe for concurrent use once configured.
type Verifier struct {
	cfg Config
	err error // configuration error, returned on Verify()
	log logrus.FieldLogger

	resolver Resolver // as supplied, before caching
	prober   Prober   // as supplied; nil builds an smtpprobe.Engine
	store    FactsStore
	metrics  *metrics.Metrics
	closers  []io.Closer

	syntax   *check.SyntaxChecker
	intel    *check.DomainIntel
	dns      *check.DNSProbe
	rep      *check.ReputationProbe
	smtp     Prober
	catchAll *check.CatchAllProber
}

// New creates a Verifier from cfg. An invalid cfg is reported by Verify,
// not here. When cfg.Redis.Enabled, DomainFacts are cached in Redis;
// call Close when done.
func New(cfg Config) *Verifier {
	v := &Verifier{
		cfg:    cfg,
		log:    logrus.StandardLogger(),
		syntax: check.NewSyntaxChecker(),
	}
	if err := cfg.Validate(); err != nil {
		v.err = err
		return v
	}
	if cfg.Redis.Enabled {
		s := factstore.New(factstore.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		v.store = s
		v.closers = append(v.closers, s)
	}
	v.wire()
	return v
}

// WithResolver replaces the DNS resolver. Lookups through it are still
// cached when DNS.CacheTTL is positive.
func (v *Verifier) WithResolver(r Resolver) *Verifier {
	v.resolver = r
	v.wire()
	return v
}

// WithProber replaces the SMTP dialogue engine.
func (v *Verifier) WithProber(p Prober) *Verifier {
	v.prober = p
	v.wire()
	return v
}

func (v *Verifier) WithLogger(l logrus.FieldLogger) *Verifier {
	v.log = l
	v.wire()
	return v
}

// WithFactsStore replaces the DomainFacts cache. nil disables it.
func (v *Verifier) WithFactsStore(s FactsStore) *Verifier {
	v.store = s
	return v
}

// WithMetrics registers the verification collectors on reg.
func (v *Verifier) WithMetrics(reg prometheus.Registerer) *Verifier {
	v.metrics = metrics.New(reg)
	v.wire()
	return v
}

// Close releases the Redis connection, if any. Safe to call multiple times.
func (v *Verifier) Close() error {
	var errs []error
	for _, c := range v.closers {
		errs = append(errs, c.Close())
	}
	v.closers = nil
	return errors.Join(errs...)
}

// wire (re)builds the checks from cfg and the supplied collaborators.
func (v *Verifier) wire() {
	if v.err != nil {
		return
	}
	cfg := v.cfg

	r := v.resolver
	if r == nil {
		if cfg.DNS.Nameserver != "" {
			r = dnsclient.New(cfg.DNS.Nameserver, cfg.DNS.Timeout)
		} else {
			r = &net.Resolver{}
		}
	}
	if cfg.DNS.CacheTTL > 0 {
		r = dnscache.New(r, cfg.DNS.Timeout, cfg.DNS.CacheTTL)
	}

	v.intel = check.NewDomainIntel(check.DomainConfig{
		DisposableDomains: cfg.Domain.DisposableDomains,
		FreeProviders:     cfg.Domain.FreeProviders,
		RolePrefixes:      cfg.Domain.RolePrefixes,
		TypoThreshold:     cfg.Domain.TypoThreshold,
	})
	v.dns = check.NewDNSProbe(check.DNSConfig{
		Timeout:       cfg.DNS.Timeout,
		DKIMSelectors: cfg.DNS.DKIMSelectors,
		OrgDMARC:      cfg.DNS.OrgDMARC,
	}, r)
	v.rep = check.NewReputationProbe(cfg.DNS.BlocklistZone, cfg.DNS.Timeout, r)

	p := v.prober
	if p == nil {
		engine, err := smtpprobe.New(smtpprobe.Config{
			HeloDomain:     cfg.SMTP.HeloDomain,
			MailFrom:       cfg.SMTP.MailFrom,
			ConnectTimeout: cfg.SMTP.ConnectTimeout,
			Timeout:        cfg.SMTP.Timeout,
			ProxyURL:       cfg.SMTP.ProxyURL,
			RatePerHost:    cfg.SMTP.RatePerHost,
			Burst:          cfg.SMTP.Burst,
			Logger:         v.log,
		})
		if err != nil {
			v.err = fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			return
		}
		p = engine
	}
	if v.metrics != nil {
		p = observedProber{next: p, m: v.metrics}
	}
	v.smtp = p
	v.catchAll = check.NewCatchAllProber(check.CatchAllConfig{
		Probes:    cfg.CatchAll.Probes,
		Threshold: cfg.CatchAll.Threshold,
	}, p)
}

// Verify checks one address. The returned error is non-nil only for a
// configuration problem; every verification outcome, including an
// internal fault, is reported through Result.Status.
// Context can be used for timeout or cancellation: once it is done no new
// network operation starts and the address is reported as unverifiable.
func (v *Verifier) Verify(ctx context.Context, email string) (res Result, err error) {
	if v.err != nil {
		return Result{}, v.err
	}

	parsed := parse.NewEmail(email)
	log := v.log.WithFields(logrus.Fields{"email": email, "domain": parsed.Domain})

	if err := v.syntax.Check(parsed); err != nil {
		log.WithError(err).Debug("syntax check failed")
		res = Result{Email: email, Domain: parsed.Domain, Status: StatusInvalid, Reason: "Invalid syntax"}
		v.metrics.Verification(res.Status)
		return res, nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("verification aborted")
			res = Result{Email: email, Domain: parsed.Domain, Status: StatusError, Reason: fmt.Sprint(r)}
			v.metrics.Verification(res.Status)
		}
	}()

	res = v.verify(ctx, parsed, log)
	res.Email = email
	log.WithFields(logrus.Fields{"status": res.Status, "score": res.Score}).Debug("verification done")
	v.metrics.Verification(res.Status)
	return res, nil
}

type candidate struct {
	host, port string
}

func (v *Verifier) verify(ctx context.Context, email parse.Email, log logrus.FieldLogger) Result {
	domain := email.Domain
	res := Result{
		Domain:         domain,
		IsDisposable:   v.intel.IsDisposable(domain),
		IsFreeProvider: v.intel.IsFreeProvider(domain),
		IsRoleBased:    v.intel.IsRoleBased(email.Local),
		Suggestion:     v.intel.Suggest(domain),
	}

	facts := v.domainFacts(ctx, domain, log)
	res.SPF, res.DMARC, res.DKIM = facts.SPF, facts.DMARC, facts.DKIM
	res.IsBlacklisted = facts.Blacklisted
	// An aborted lookup is no evidence; fall through as unverifiable.
	if len(facts.MXHosts) == 0 && ctx.Err() == nil {
		log.WithError(check.ErrNoRoute).Debug("domain cannot receive mail")
		res.Status = StatusInvalid
		res.Reason = "No MX records found"
		return res
	}

	var (
		last     types.ProbeOutcome
		answered []candidate // pairs where the server replied to RCPT
	)
	for _, c := range v.candidates(facts.MXHosts) {
		if ctx.Err() != nil {
			break
		}
		o := v.smtp.Probe(ctx, c.host, c.port, email.Address())
		res.Probes = append(res.Probes, o)
		last = o
		log.WithFields(logrus.Fields{
			"mx_host": c.host, "port": c.port, "outcome": o.Outcome,
		}).Debug("recipient probe")

		if o.Accepted() {
			res.SMTPValid = true
			res.MXHost, res.Port = c.host, c.port
			res.IsCatchAll = v.probeCatchAll(ctx, c, domain, log)
			break
		}
		if serverAnswered(o) {
			answered = append(answered, c)
		}
	}

	// A server can refuse the real recipient yet accept anything else.
	if !res.SMTPValid {
		for _, c := range answered {
			if ctx.Err() != nil {
				break
			}
			if v.probeCatchAll(ctx, c, domain, log) {
				res.IsCatchAll = true
				res.MXHost, res.Port = c.host, c.port
				break
			}
		}
	}

	// The last dialogue decides between rejected and blocked, and its
	// diagnostic is the reason.
	rejected := last.Outcome == types.OutcomePermFailure
	v.decide(&res, facts.PolicyRecords(), rejected, last.Diagnostic)
	return res
}

// serverAnswered reports whether the SMTP server itself replied, so that a
// catch-all check against the same pair can succeed. Refused connections
// and timeouts would only fail again.
func serverAnswered(o types.ProbeOutcome) bool {
	if o.Outcome != types.OutcomeTransportError {
		return true
	}
	var te *smtpprobe.TransportError
	return errors.As(o.Err, &te) && te.Kind == smtpprobe.KindServer
}

// candidates pairs the first MaxMXHosts hosts with every port, host-major.
func (v *Verifier) candidates(hosts []string) []candidate {
	if len(hosts) > v.cfg.SMTP.MaxMXHosts {
		hosts = hosts[:v.cfg.SMTP.MaxMXHosts]
	}
	out := make([]candidate, 0, len(hosts)*len(v.cfg.SMTP.Ports))
	for _, h := range hosts {
		for _, p := range v.cfg.SMTP.Ports {
			out = append(out, candidate{host: h, port: strconv.Itoa(p)})
		}
	}
	return out
}

func (v *Verifier) probeCatchAll(ctx context.Context, c candidate, domain string, log logrus.FieldLogger) bool {
	verdict := v.catchAll.Probe(ctx, c.host, c.port, domain)
	log.WithFields(logrus.Fields{
		"mx_host": c.host, "port": c.port, "accepted": verdict.Accepted, "tried": verdict.Tried,
	}).Debug("catch-all probe")
	if verdict.CatchAll {
		v.metrics.CatchAll()
	}
	return verdict.CatchAll
}

// decide sets Status, Reason and Score from the collected signals.
func (v *Verifier) decide(res *Result, policyRecords int, rejected bool, lastDiag string) {
	score := check.Score(check.Signals{
		SMTPValid:   res.SMTPValid,
		CatchAll:    res.IsCatchAll,
		Disposable:  res.IsDisposable,
		Blacklisted: res.IsBlacklisted,
		RoleBased:   res.IsRoleBased,
		SPF:         res.SPF != "",
		DKIM:        res.DKIM != "",
		DMARC:       res.DMARC != "",
	})

	switch {
	case res.SMTPValid && res.IsCatchAll:
		res.Status, res.Reason = StatusCatchAll, "Email accepted but domain accepts all emails"
	case res.SMTPValid:
		res.Status, res.Reason = StatusValid, "SMTP verification successful"
	case res.IsCatchAll:
		res.Status, res.Reason = StatusCatchAll, "Domain accepts all emails (catch-all)"
		score = max(score, 0.5)
	case res.IsDisposable:
		res.Status, res.Reason = StatusInvalid, "Disposable email provider"
	case res.IsBlacklisted:
		res.Status, res.Reason = StatusInvalid, "Domain is blacklisted"
	case rejected:
		res.Status, res.Reason = StatusInvalid, "SMTP verification failed: "+lastDiag
	case policyRecords >= 2:
		res.Status, res.Reason = StatusUnknown, "SMTP blocked - domain appears legitimate"
		score = max(score, 0.6)
	default:
		res.Status, res.Reason = StatusUnknown, "SMTP blocked - unable to verify"
		score = max(score, 0.4)
	}
	res.Score = check.Clamp(score)
}

// domainFacts returns the DNS facts for domain, from the store when it has
// them. Policy records and the blocklist are only queried for domains with
// MX hosts, and only those results are stored.
func (v *Verifier) domainFacts(ctx context.Context, domain string, log logrus.FieldLogger) types.DomainFacts {
	if v.store != nil {
		facts, ok, err := v.store.Get(ctx, domain)
		switch {
		case err != nil:
			log.WithError(err).Warn("facts store unavailable")
		case ok:
			return facts
		}
	}

	facts := v.dns.Facts(ctx, domain)
	if len(facts.MXHosts) == 0 {
		return facts
	}
	facts.Blacklisted = v.rep.IsBlacklisted(ctx, domain)

	if v.store != nil && ctx.Err() == nil {
		if err := v.store.Put(ctx, domain, facts); err != nil {
			log.WithError(err).Warn("facts store unavailable")
		}
	}
	return facts
}

// observedProber records every dialogue, including catch-all probes.
type observedProber struct {
	next Prober
	m    *metrics.Metrics
}

func (p observedProber) Probe(ctx context.Context, host, port, recipient string) types.ProbeOutcome {
	o := p.next.Probe(ctx, host, port, recipient)
	p.m.Probe(o)
	return o
}
