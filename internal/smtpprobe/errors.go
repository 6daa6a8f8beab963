package smtpprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrorKind distinguishes why a dialogue failed before a RCPT verdict.
type ErrorKind string

const (
	KindBlocked ErrorKind = "blocked" // connection refused or unreachable
	KindTimeout ErrorKind = "timeout" // connect or command deadline hit
	KindServer  ErrorKind = "server"  // protocol error or unexpected reply
)

// TransportError is returned for every failure that is not a RCPT reply.
type TransportError struct {
	Kind ErrorKind
	Host string
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smtp %s:%s %s: %v", e.Host, e.Port, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Diagnostic is the short human-readable form used in verification reasons.
func (e *TransportError) Diagnostic() string {
	switch e.Kind {
	case KindBlocked:
		return fmt.Sprintf("Port %s blocked", e.Port)
	case KindTimeout:
		return fmt.Sprintf("Port %s timeout", e.Port)
	default:
		msg := e.Err.Error()
		if r := []rune(msg); len(r) > 50 {
			msg = string(r[:50])
		}
		return fmt.Sprintf("Port %s error: %s", e.Port, msg)
	}
}

func transportErr(host, port string, err error) *TransportError {
	return &TransportError{Kind: classify(err), Host: host, Port: port, Err: err}
}

func classify(err error) ErrorKind {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	case errors.As(err, &ne) && ne.Timeout():
		return KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return KindBlocked
	}
	return KindServer
}
