// Command mailverify verifies email addresses given as arguments, in a
// file, or on stdin, and prints one JSON result per line in input order.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/optimode/mailverify"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	file := flag.String("file", "", "file with one address per line (- for stdin)")
	workers := flag.Int("workers", 5, "concurrent verifications")
	quiet := flag.Bool("quiet", false, "no progress bar")
	flag.Parse()

	cfg, err := mailverify.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := setupLogger(log.StandardLogger(), cfg.Logging); err != nil {
		log.WithError(err).Fatal("invalid logging configuration")
	}

	emails, err := collectEmails(flag.Args(), *file, os.Stdin)
	if err != nil {
		log.WithError(err).Fatal("failed to read addresses")
	}
	if len(emails) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mailverify [flags] address... | -file addresses.txt")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v := mailverify.New(cfg).WithLogger(log.StandardLogger())
	defer v.Close()

	if cfg.Metrics.Listen != "" {
		v.WithMetrics(prometheus.DefaultRegisterer)
		srv := serveMetrics(cfg.Metrics.Listen)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	opts := mailverify.BatchOptions{Workers: *workers}
	if len(emails) > 1 && !*quiet {
		bar := progressbar.NewOptions(len(emails),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("verifying"),
			progressbar.OptionShowCount(),
		)
		opts.OnResult = func(int, mailverify.Result) { _ = bar.Add(1) }
		defer fmt.Fprintln(os.Stderr)
	}

	results, err := v.VerifyMany(ctx, emails, opts)
	if err != nil {
		log.WithError(err).Fatal("verification failed")
	}
	if err := writeResults(os.Stdout, results); err != nil {
		log.WithError(err).Fatal("failed to write results")
	}
}

// setupLogger applies the configured level and format to l.
func setupLogger(l *log.Logger, cfg mailverify.LoggingConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	l.SetLevel(level)
	l.SetOutput(os.Stderr)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}

// collectEmails returns the addresses from args, or from path when set
// ("-" reads stdin), or from stdin when there are no args at all and stdin
// is not a terminal.
func collectEmails(args []string, path string, stdin *os.File) ([]string, error) {
	switch {
	case path == "-":
		return readEmails(stdin)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readEmails(f)
	case len(args) > 0:
		return args, nil
	}

	if fi, err := stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		return readEmails(stdin)
	}
	return nil, nil
}

// readEmails returns the non-empty lines of r, trimmed. Lines starting
// with # are comments.
func readEmails(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func writeResults(w io.Writer, results []mailverify.Result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics listener stopped")
		}
	}()
	log.WithField("listen", addr).Info("serving metrics")
	return srv
}
