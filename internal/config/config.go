package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

var DefaultTargets = []string{
	"https://www.google.com/",
	"https://www.alfa-bank.ru/",
	"https://www.rgs.ru/",
	"https://finuslugi.ru/",
	"https://www.alfastrah.ru/",
}

const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type PollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"` // per-probe; defaults to Interval
	Concurrency int           `yaml:"concurrency"`
	InsecureTLS bool          `yaml:"insecure_tls"`
	DNSOnError  bool          `yaml:"dns_on_error"`
}

type StoreConfig struct {
	Kind           string        `yaml:"kind"` // file | memory | postgres
	Path           string        `yaml:"path"`
	DatabaseURL    string        `yaml:"database_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type ReportConfig struct {
	Dir              string `yaml:"dir"`
	Format           string `yaml:"format"`   // csv | xlsx
	Schedule         string `yaml:"schedule"` // cron spec; empty disables
	Timezone         string `yaml:"timezone"` // IANA name; empty = time.Local (honours TZ)
	CountErrorAsDown bool   `yaml:"count_error_as_down"`
}

type APIConfig struct {
	Addr           string   `yaml:"addr"` // empty disables the API
	ReadKeys       []string `yaml:"read_keys"`
	WriteKeys      []string `yaml:"write_keys"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RatePerMin     int      `yaml:"rate_per_min"`
	Burst          int      `yaml:"burst"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For header
	// is believed by the rate limiter. Empty means the header is ignored.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type Config struct {
	Targets []string     `yaml:"targets"`
	Poll    PollConfig   `yaml:"poll"`
	Store   StoreConfig  `yaml:"store"`
	Report  ReportConfig `yaml:"report"`
	API     APIConfig    `yaml:"api"`

	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`
	Console  bool   `yaml:"console"` // read commands from stdin
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and fills defaults. It does not validate.
//
// DefaultTargets are used only when neither the file nor SITEWATCH_TARGETS
// names a target list; an explicit `targets: []` keeps the list empty.
func Load(path string) (Config, error) {
	var cfg Config
	targetsSet := false
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		var presence struct {
			Targets *[]string `yaml:"targets"`
		}
		if err := yaml.Unmarshal(data, &presence); err == nil && presence.Targets != nil {
			targetsSet = true
			cfg.Targets = *presence.Targets
		}
	}
	if applyEnv(&cfg) {
		targetsSet = true
	}
	if !targetsSet {
		cfg.Targets = append([]string(nil), DefaultTargets...)
	}
	setDefaults(&cfg)
	return cfg, nil
}

// applyEnv reports whether SITEWATCH_TARGETS replaced the target list.
func applyEnv(cfg *Config) (targetsSet bool) {
	if v := os.Getenv("SITEWATCH_TARGETS"); v != "" {
		cfg.Targets = splitList(v)
		targetsSet = true
	}
	if v := os.Getenv("SITEWATCH_TIMEZONE"); v != "" {
		cfg.Report.Timezone = v
	}
	if v := os.Getenv("SITEWATCH_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Poll.Interval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SITEWATCH_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Poll.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SITEWATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Poll.Concurrency = n
		}
	}
	if v := os.Getenv("SITEWATCH_STORE"); v != "" {
		cfg.Store.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("SITEWATCH_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	// DATABASE_URL alone selects postgres unless a store kind is set.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
		if cfg.Store.Kind == "" {
			cfg.Store.Kind = StorePostgres
		}
	}
	if v := os.Getenv("SITEWATCH_REPORT_DIR"); v != "" {
		cfg.Report.Dir = v
	}
	if v := os.Getenv("SITEWATCH_REPORT_FORMAT"); v != "" {
		cfg.Report.Format = strings.ToLower(v)
	}
	if v := os.Getenv("SITEWATCH_REPORT_SCHEDULE"); v != "" {
		cfg.Report.Schedule = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("API_READ_KEYS"); v != "" {
		cfg.API.ReadKeys = splitList(v)
	}
	if v := os.Getenv("API_WRITE_KEYS"); v != "" {
		cfg.API.WriteKeys = splitList(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.API.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.API.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("API_RATE_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.API.RatePerMin = n
		}
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return targetsSet
}

func setDefaults(cfg *Config) {
	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = time.Second
	}
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = StoreFile
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "monitoring.jsonl"
	}
	if cfg.Store.ConnectTimeout == 0 {
		cfg.Store.ConnectTimeout = 30 * time.Second
	}
	if cfg.Report.Dir == "" {
		cfg.Report.Dir = "."
	}
	if cfg.Report.Format == "" {
		cfg.Report.Format = "csv"
	}
	if cfg.API.RatePerMin > 0 && cfg.API.Burst == 0 {
		cfg.API.Burst = cfg.API.RatePerMin / 2
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// ProbeTimeout is Poll.Timeout, or Poll.Interval when no timeout is set.
func (c Config) ProbeTimeout() time.Duration {
	if c.Poll.Timeout > 0 {
		return c.Poll.Timeout
	}
	return c.Poll.Interval
}

// Location resolves Report.Timezone; empty means time.Local.
func (c Config) Location() (*time.Location, error) {
	if c.Report.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Report.Timezone)
}

// Validate reports every problem found, not just the first.
func (c Config) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		u, err := url.ParseRequestURI(t)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("target %q: want absolute http(s) URL", t))
			continue
		}
		if seen[t] {
			errs = append(errs, fmt.Errorf("target %q listed twice", t))
		}
		seen[t] = true
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval))
	}
	if c.Poll.Timeout < 0 {
		errs = append(errs, fmt.Errorf("poll.timeout must not be negative, got %s", c.Poll.Timeout))
	}
	if c.Poll.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("poll.concurrency must not be negative, got %d", c.Poll.Concurrency))
	}
	switch c.Store.Kind {
	case StoreFile, StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.kind=postgres needs database_url or DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.kind %q (file, memory, postgres)", c.Store.Kind))
	}
	if c.Report.Format != "csv" && c.Report.Format != "xlsx" {
		errs = append(errs, fmt.Errorf("unknown report.format %q (csv, xlsx)", c.Report.Format))
	}
	if c.Report.Schedule != "" {
		if _, err := cron.ParseStandard(c.Report.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("report.schedule: %w", err))
		}
	}
	if c.API.RatePerMin < 0 {
		errs = append(errs, fmt.Errorf("api.rate_per_min must not be negative, got %d", c.API.RatePerMin))
	}
	for _, p := range c.API.TrustedProxies {
		if _, err := ParsePrefix(p); err != nil {
			errs = append(errs, fmt.Errorf("api.trusted_proxies: %w", err))
		}
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("report.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// ParsePrefix accepts a CIDR ("10.0.0.0/8") or a bare IP, which becomes a
// single-address prefix.
func ParsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	a = a.Unmap()
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
