package mailverify

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/optimode/mailverify/check"
)

const envPrefix = "MAILVERIFY_"

// Config is the full verifier configuration. Zero values are not usable
// directly; start from DefaultConfig or LoadConfig.
type Config struct {
	SMTP     SMTPConfig     `yaml:"smtp"`
	DNS      DNSConfig      `yaml:"dns"`
	Domain   DomainConfig   `yaml:"domain"`
	CatchAll CatchAllConfig `yaml:"catch_all"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SMTPConfig configures the SMTP dialogues.
type SMTPConfig struct {
	// HeloDomain is sent in EHLO/HELO. Required, e.g. "myapp.com"
	HeloDomain string `yaml:"helo_domain"`
	// MailFrom is sent in MAIL FROM. Required, e.g. "verify@myapp.com"
	MailFrom string `yaml:"mail_from"`
	// Timeout bounds one whole dialogue. Default: 10s
	Timeout time.Duration `yaml:"timeout"`
	// ConnectTimeout bounds the TCP connect. Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// MaxMXHosts is how many MX hosts to try, by preference. Default: 2
	MaxMXHosts int `yaml:"max_mx_hosts"`
	// Ports are tried in order for every host. Default: 587, 25, 2587
	Ports []int `yaml:"ports"`
	// ProxyURL routes every session through a SOCKS5 proxy when set.
	ProxyURL string `yaml:"proxy_url"`
	// RatePerHost limits dialogues per second to one MX host. 0 disables.
	RatePerHost float64 `yaml:"rate_per_host"`
	Burst       int     `yaml:"burst"`
}

// DNSConfig configures DNS and blocklist lookups.
type DNSConfig struct {
	// Timeout bounds each lookup. Default: 5s
	Timeout time.Duration `yaml:"timeout"`
	// Nameserver, when set, is queried directly instead of the system resolver.
	Nameserver string `yaml:"nameserver"`
	// CacheTTL is how long lookups are cached in memory. 0 disables. Default: 5m
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	DKIMSelectors []string      `yaml:"dkim_selectors"`
	BlocklistZone string        `yaml:"blocklist_zone"`
	// OrgDMARC falls back to the organizational domain's DMARC record. Default: true
	OrgDMARC bool `yaml:"org_dmarc"`
}

// DomainConfig overrides the static classification lists. A nil list
// keeps the embedded default.
type DomainConfig struct {
	DisposableDomains []string `yaml:"disposable_domains"`
	FreeProviders     []string `yaml:"free_providers"`
	RolePrefixes      []string `yaml:"role_prefixes"`
	// TypoThreshold is the max edit distance for a suggestion. 0 disables. Default: 2
	TypoThreshold int `yaml:"typo_threshold"`
}

// CatchAllConfig tunes catch-all detection.
type CatchAllConfig struct {
	Probes    int `yaml:"probes"`    // Default: 3, minimum 3
	Threshold int `yaml:"threshold"` // Default: 2
}

// RedisConfig enables the shared DomainFacts cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // logrus level name. Default: info
	Format string `yaml:"format"` // text or json. Default: text
}

type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the defaults. HeloDomain and MailFrom have no
// default and must be set.
func DefaultConfig() Config {
	return Config{
		SMTP: SMTPConfig{
			Timeout:        10 * time.Second,
			ConnectTimeout: 5 * time.Second,
			MaxMXHosts:     2,
			Ports:          []int{587, 25, 2587},
			Burst:          1,
		},
		DNS: DNSConfig{
			Timeout:       5 * time.Second,
			CacheTTL:      5 * time.Minute,
			DKIMSelectors: slices.Clone(check.DefaultDKIMSelectors),
			BlocklistZone: check.DefaultBlocklistZone,
			OrgDMARC:      true,
		},
		Domain: DomainConfig{
			TypoThreshold: 2,
		},
		CatchAll: CatchAllConfig{
			Probes:    3,
			Threshold: 2,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			TTL:     time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds a Config from, in increasing precedence: defaults, the
// YAML file at path (skipped when path is empty), and MAILVERIFY_*
// environment variables. A .env file in the working directory is loaded
// into the environment first if present. The result is validated.
func LoadConfig(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that makes the configuration unusable.
// The returned error wraps ErrInvalidConfig.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.SMTP.HeloDomain == "" || c.SMTP.MailFrom == "":
		return invalid("smtp.helo_domain and smtp.mail_from are required")
	case !strings.Contains(c.SMTP.MailFrom, "@"):
		return invalid("smtp.mail_from %q is not an address", c.SMTP.MailFrom)
	case c.SMTP.Timeout <= 0:
		return invalid("smtp.timeout must be positive")
	case c.SMTP.ConnectTimeout < 0:
		return invalid("smtp.connect_timeout must not be negative")
	case c.SMTP.MaxMXHosts < 1:
		return invalid("smtp.max_mx_hosts must be at least 1")
	case len(c.SMTP.Ports) == 0:
		return invalid("smtp.ports must not be empty")
	case c.SMTP.RatePerHost < 0:
		return invalid("smtp.rate_per_host must not be negative")
	case c.DNS.Timeout <= 0:
		return invalid("dns.timeout must be positive")
	case c.CatchAll.Threshold < 1:
		return invalid("catch_all.threshold must be at least 1")
	case c.CatchAll.Threshold > max(c.CatchAll.Probes, 3):
		return invalid("catch_all.threshold %d exceeds probe count %d", c.CatchAll.Threshold, max(c.CatchAll.Probes, 3))
	case c.Redis.Enabled && c.Redis.Address == "":
		return invalid("redis.address is required when redis is enabled")
	}
	for _, p := range c.SMTP.Ports {
		if p < 1 || p > 65535 {
			return invalid("smtp port %d out of range", p)
		}
	}
	return nil
}

// applyEnv overrides fields from MAILVERIFY_* variables. Only non-empty
// variables override.
func (c *Config) applyEnv() error {
	var firstErr error
	setErr := func(name string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, envPrefix, name, err)
		}
	}
	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = splitList(v)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				setErr(name, err)
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				setErr(name, err)
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(envPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				setErr(name, err)
				return
			}
			*dst = b
		}
	}

	str("HELO_DOMAIN", &c.SMTP.HeloDomain)
	str("MAIL_FROM", &c.SMTP.MailFrom)
	dur("SMTP_TIMEOUT", &c.SMTP.Timeout)
	dur("SMTP_CONNECT_TIMEOUT", &c.SMTP.ConnectTimeout)
	integer("MAX_MX_HOSTS", &c.SMTP.MaxMXHosts)
	if v := os.Getenv(envPrefix + "PORTS"); v != "" {
		var ports []int
		for _, s := range splitList(v) {
			p, err := strconv.Atoi(s)
			if err != nil {
				setErr("PORTS", err)
				break
			}
			ports = append(ports, p)
		}
		if ports != nil {
			c.SMTP.Ports = ports
		}
	}
	str("PROXY_URL", &c.SMTP.ProxyURL)
	if v := os.Getenv(envPrefix + "RATE_PER_HOST"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			setErr("RATE_PER_HOST", err)
		} else {
			c.SMTP.RatePerHost = r
		}
	}

	dur("DNS_TIMEOUT", &c.DNS.Timeout)
	str("DNS_NAMESERVER", &c.DNS.Nameserver)
	dur("DNS_CACHE_TTL", &c.DNS.CacheTTL)
	list("DKIM_SELECTORS", &c.DNS.DKIMSelectors)
	str("BLOCKLIST_ZONE", &c.DNS.BlocklistZone)

	list("DISPOSABLE_DOMAINS", &c.Domain.DisposableDomains)
	list("FREE_PROVIDERS", &c.Domain.FreeProviders)
	list("ROLE_PREFIXES", &c.Domain.RolePrefixes)

	integer("CATCHALL_PROBES", &c.CatchAll.Probes)
	integer("CATCHALL_THRESHOLD", &c.CatchAll.Threshold)

	boolean("REDIS_ENABLED", &c.Redis.Enabled)
	str("REDIS_ADDRESS", &c.Redis.Address)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)

	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	str("LOG_FORMAT", &c.Logging.Format)
	str("METRICS_LISTEN", &c.Metrics.Listen)

	return firstErr
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
