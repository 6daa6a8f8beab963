// Package smtpprobe drives a single SMTP client dialogue up to RCPT TO and
// reports how the server answered. No DATA is ever sent.
package smtpprobe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"

	"github.com/optimode/mailverify/types"
)

// DialFunc opens a TCP connection. It must honour ctx.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config configures the dialogue engine.
type Config struct {
	HeloDomain     string
	MailFrom       string
	ConnectTimeout time.Duration // TCP connect bound (default: Timeout)
	Timeout        time.Duration // whole-session bound per attempt (default: 10s)
	ProxyURL       string        // optional socks5:// URL all sessions go through
	RatePerHost    float64       // dialogues per second per MX host; 0 disables limiting
	Burst          int
	Logger         logrus.FieldLogger
	// Dial is injectable for testing. Defaults to a net.Dialer, or the proxy when set.
	Dial DialFunc
}

// Engine opens one short-lived SMTP session per Probe call.
// It is safe for concurrent use.
type Engine struct {
	cfg     Config
	dial    DialFunc
	limiter *hostLimiter
	log     logrus.FieldLogger
}

// New creates an Engine. It fails only if ProxyURL cannot be used.
func New(cfg Config) (*Engine, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ConnectTimeout <= 0 || cfg.ConnectTimeout > cfg.Timeout {
		cfg.ConnectTimeout = cfg.Timeout
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	dial := cfg.Dial
	if dial == nil {
		var err error
		dial, err = defaultDialer(cfg.ProxyURL, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
	}

	return &Engine{
		cfg:     cfg,
		dial:    dial,
		limiter: newHostLimiter(cfg.RatePerHost, cfg.Burst),
		log:     log,
	}, nil
}

func defaultDialer(proxyURL string, timeout time.Duration) (DialFunc, error) {
	direct := &net.Dialer{Timeout: timeout}
	if proxyURL == "" {
		return direct.DialContext, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	d, err := proxy.FromURL(u, direct)
	if err != nil {
		return nil, fmt.Errorf("proxy dialer: %w", err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, address string) (net.Conn, error) {
		return d.Dial(network, address)
	}, nil
}

type conn struct {
	netConn net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
}

// Probe runs banner → EHLO (HELO fallback) → MAIL FROM → RCPT TO against
// host:port and closes the session before returning, whatever happens.
func (e *Engine) Probe(ctx context.Context, host, port, recipient string) types.ProbeOutcome {
	start := time.Now()
	out := types.ProbeOutcome{Host: host, Port: port}

	fail := func(err error) types.ProbeOutcome {
		te := transportErr(host, port, err)
		out.Outcome = types.OutcomeTransportError
		out.Err = te
		out.Diagnostic = te.Diagnostic()
		out.Elapsed = time.Since(start)
		e.log.WithFields(logrus.Fields{
			"mx_host": host, "port": port, "kind": te.Kind,
		}).WithError(err).Debug("smtp probe failed")
		return out
	}

	if err := e.limiter.Wait(ctx, host); err != nil {
		return fail(fmt.Errorf("rate limit wait: %w", context.DeadlineExceeded))
	}

	code, msg, err := e.session(ctx, host, port, recipient)
	if err != nil {
		return fail(err)
	}

	out.Code = code
	out.Response = msg
	out.Elapsed = time.Since(start)
	switch {
	case code == 250 || code == 251:
		out.Outcome = types.OutcomeAccepted
		out.Diagnostic = "Email accepted"
	case code >= 450 && code <= 452:
		out.Outcome = types.OutcomeTempFailure
		out.Diagnostic = fmt.Sprintf("Temporary failure: %d", code)
	case code >= 550 && code <= 554:
		out.Outcome = types.OutcomePermFailure
		out.Diagnostic = fmt.Sprintf("SMTP rejected: %d", code)
	default:
		return fail(fmt.Errorf("unexpected RCPT reply %d: %s", code, msg))
	}

	e.log.WithFields(logrus.Fields{
		"mx_host": host, "port": port, "code": code, "outcome": out.Outcome,
	}).Debug("smtp probe done")
	return out
}

func (e *Engine) session(ctx context.Context, host, port, recipient string) (int, string, error) {
	address := net.JoinHostPort(host, port)

	dctx, cancel := context.WithTimeout(ctx, e.cfg.ConnectTimeout)
	netConn, err := e.dial(dctx, "tcp", address)
	cancel()
	if err != nil {
		return 0, "", fmt.Errorf("connect to %s: %w", address, err)
	}
	defer func() { _ = netConn.Close() }()

	// Unblock any pending read or write as soon as the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = netConn.SetDeadline(time.Now()) })
	defer stop()

	deadline := time.Now().Add(e.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := netConn.SetDeadline(deadline); err != nil {
		return 0, "", fmt.Errorf("set deadline: %w", err)
	}

	c := &conn{
		netConn: netConn,
		reader:  bufio.NewReader(netConn),
		writer:  bufio.NewWriter(netConn),
	}
	defer sendQuit(c)

	code, msg, err := readResponse(c.reader)
	if err != nil {
		return 0, "", fmt.Errorf("read banner: %w", err)
	}
	if code >= 400 {
		return 0, "", fmt.Errorf("server rejected connection: %d %s", code, msg)
	}

	code, msg, err = command(c, fmt.Sprintf("EHLO %s\r\n", e.cfg.HeloDomain))
	if err != nil {
		return 0, "", fmt.Errorf("EHLO failed: %w", err)
	}
	if code >= 400 {
		// Some servers only speak RFC 821.
		code, msg, err = command(c, fmt.Sprintf("HELO %s\r\n", e.cfg.HeloDomain))
		if err != nil {
			return 0, "", fmt.Errorf("HELO failed: %w", err)
		}
		if code >= 400 {
			return 0, "", fmt.Errorf("HELO rejected: %d %s", code, msg)
		}
	}

	code, msg, err = command(c, fmt.Sprintf("MAIL FROM:<%s>\r\n", e.cfg.MailFrom))
	if err != nil {
		return 0, "", fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if code >= 400 {
		return 0, "", fmt.Errorf("MAIL FROM rejected: %d %s", code, msg)
	}

	code, msg, err = command(c, fmt.Sprintf("RCPT TO:<%s>\r\n", recipient))
	if err != nil {
		return 0, "", fmt.Errorf("RCPT TO failed: %w", err)
	}
	return code, msg, nil
}

// command sends an SMTP command and reads the response.
func command(c *conn, cmd string) (int, string, error) {
	if _, err := c.writer.WriteString(cmd); err != nil {
		return 0, "", err
	}
	if err := c.writer.Flush(); err != nil {
		return 0, "", err
	}
	return readResponse(c.reader)
}

// sendQuit sends QUIT without waiting for the reply (best-effort).
func sendQuit(c *conn) {
	_ = c.netConn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = c.writer.WriteString("QUIT\r\n")
	_ = c.writer.Flush()
}

// readResponse reads a (possibly multi-line) SMTP response.
func readResponse(r *bufio.Reader) (code int, full string, err error) {
	var lines []string
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil {
			return 0, "", fmt.Errorf("read SMTP response: %w", readErr)
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return 0, "", errors.New("SMTP response line too short")
		}
		lines = append(lines, line)
		// a '-' in the 4th column means more lines follow
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}

	lastLine := lines[len(lines)-1]
	if _, err := fmt.Sscanf(lastLine[:3], "%d", &code); err != nil {
		return 0, "", fmt.Errorf("invalid SMTP response code %q: %w", lastLine[:3], err)
	}
	return code, strings.Join(lines, " | "), nil
}
