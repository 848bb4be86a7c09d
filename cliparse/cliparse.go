package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/taskflow/models"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	SecretKey    string
	BaseURL      string

	// AllowedHosts gates Host headers used to build absolute links when
	// BaseURL is empty. A leading dot matches subdomains; "*" matches any.
	AllowedHosts   []string
	// TrustedProxies are peers whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix

	EmailBackend     string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	DefaultFromEmail string

	ActivationTimeout time.Duration
	SessionAge        time.Duration

	LogFormat string
	LogLevel  string
}

// fileConfig is the YAML shape read from -c / CONFIG_FILE.
type fileConfig struct {
	Port         int    `yaml:"port"`
	DatabaseURL  string `yaml:"database_url"`
	DatabaseType string `yaml:"database_type"`
	SecretKey    string `yaml:"secret_key"`
	BaseURL      string `yaml:"base_url"`
	Email        struct {
		Backend  string `yaml:"backend"`
		From     string `yaml:"from"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"email"`
	AllowedHosts      []string `yaml:"allowed_hosts"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
	ActivationTimeout string   `yaml:"activation_timeout"`
	SessionAge        string   `yaml:"session_age"`
	LogFormat         string   `yaml:"log_format"`
	LogLevel          string   `yaml:"log_level"`
}

// ParseFlags reads the configuration from flags, the environment (optionally
// seeded from a .env file) and an optional YAML file, in that order of precedence.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var configFile, envFile, activation, sessionAge string
	var allowedHosts, trustedProxies string
	var err error

	flags := flag.NewFlagSet("taskflow", flag.ContinueOnError)

	flags.StringVar(&configFile, "c", "", "YAML config file")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment if present")

	// Network config (can be CLI args or env)
	flags.IntVar(&cfg.Port, "p", 0, "Server port")
	flags.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	flags.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	flags.StringVar(&cfg.BaseURL, "base-url", "", "Public base URL used in emailed links")
	flags.StringVar(&allowedHosts, "allowed-hosts", "", "Comma-separated hosts accepted when base URL is unset")
	flags.StringVar(&trustedProxies, "trusted-proxies", "", "Comma-separated proxy IPs or CIDRs whose X-Forwarded-For is trusted")

	// Secrets (prefer env variables, but allow CLI for dev)
	flags.StringVar(&cfg.SecretKey, "secret", "", "Secret key for activation tokens (prefer env)")

	flags.StringVar(&cfg.EmailBackend, "email-backend", "", "Email backend (console, smtp or memory)")
	flags.StringVar(&cfg.SMTPHost, "smtp-host", "", "SMTP host")
	flags.IntVar(&cfg.SMTPPort, "smtp-port", 0, "SMTP port")
	flags.StringVar(&cfg.DefaultFromEmail, "from", "", "Default From address")

	flags.StringVar(&activation, "activation-timeout", "", "Activation link lifetime (e.g. 72h)")
	flags.StringVar(&sessionAge, "session-age", "", "Session lifetime (e.g. 336h)")

	flags.StringVar(&cfg.LogFormat, "log-format", "", "Log format (text or json)")
	flags.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if err = flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	var file fileConfig
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Fall back to environment variables, then the config file
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else if file.Port != 0 {
			cfg.Port = file.Port
		} else {
			cfg.Port = 3318 // default
		}
	}

	cfg.DatabaseURL = firstNonEmpty(cfg.DatabaseURL, os.Getenv("DATABASE_URL"), file.DatabaseURL)
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	cfg.DatabaseType = firstNonEmpty(cfg.DatabaseType, os.Getenv("DATABASE_TYPE"), file.DatabaseType, models.DialectSQLite)
	if cfg.DatabaseType != models.DialectSQLite && cfg.DatabaseType != models.DialectPostgres {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	cfg.SecretKey = firstNonEmpty(cfg.SecretKey, os.Getenv("SECRET_KEY"), file.SecretKey)
	if cfg.SecretKey == "" {
		return Config{}, errors.New("SECRET_KEY required")
	}

	cfg.BaseURL = firstNonEmpty(cfg.BaseURL, os.Getenv("BASE_URL"), file.BaseURL)

	cfg.AllowedHosts = firstList(allowedHosts, os.Getenv("ALLOWED_HOSTS"), file.AllowedHosts, defaultAllowedHosts)

	cfg.TrustedProxies, err = parsePrefixes(firstList(trustedProxies, os.Getenv("TRUSTED_PROXIES"), file.TrustedProxies, nil))
	if err != nil {
		return Config{}, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	cfg.EmailBackend = firstNonEmpty(cfg.EmailBackend, os.Getenv("EMAIL_BACKEND"), file.Email.Backend, models.EmailBackendConsole)
	switch cfg.EmailBackend {
	case models.EmailBackendConsole, models.EmailBackendSMTP, models.EmailBackendMemory:
	default:
		return Config{}, fmt.Errorf("unsupported email backend %q", cfg.EmailBackend)
	}
	cfg.SMTPHost = firstNonEmpty(cfg.SMTPHost, os.Getenv("SMTP_HOST"), file.Email.Host)
	cfg.SMTPUsername = firstNonEmpty(os.Getenv("SMTP_USERNAME"), file.Email.Username)
	cfg.SMTPPassword = firstNonEmpty(os.Getenv("SMTP_PASSWORD"), file.Email.Password)
	if cfg.SMTPPort == 0 {
		if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid SMTP_PORT env variable")
			}
			cfg.SMTPPort = port
		} else if file.Email.Port != 0 {
			cfg.SMTPPort = file.Email.Port
		} else {
			cfg.SMTPPort = 587
		}
	}
	if cfg.EmailBackend == models.EmailBackendSMTP && cfg.SMTPHost == "" {
		return Config{}, errors.New("SMTP_HOST required for the smtp email backend")
	}
	cfg.DefaultFromEmail = firstNonEmpty(cfg.DefaultFromEmail, os.Getenv("DEFAULT_FROM_EMAIL"), file.Email.From, "webmaster@localhost")

	cfg.ActivationTimeout, err = parseDuration(firstNonEmpty(activation, os.Getenv("ACTIVATION_TIMEOUT"), file.ActivationTimeout), 72*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("invalid activation timeout: %w", err)
	}
	cfg.SessionAge, err = parseDuration(firstNonEmpty(sessionAge, os.Getenv("SESSION_AGE"), file.SessionAge), 14*24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("invalid session age: %w", err)
	}

	cfg.LogFormat = firstNonEmpty(cfg.LogFormat, os.Getenv("LOG_FORMAT"), file.LogFormat, "text")
	cfg.LogLevel = firstNonEmpty(cfg.LogLevel, os.Getenv("LOG_LEVEL"), file.LogLevel, "info")

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

// Loopback names accepted when nothing else is configured
var defaultAllowedHosts = []string{".localhost", "127.0.0.1", "[::1]"}

// firstList picks the flag, then the env value (both comma-separated), then
// the file list, then def.
func firstList(flagValue, envValue string, file, def []string) []string {
	for _, raw := range []string{flagValue, envValue} {
		if raw == "" {
			continue
		}
		var out []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	if len(file) > 0 {
		return file
	}
	return def
}

// parsePrefixes accepts bare addresses as single-host prefixes.
func parsePrefixes(items []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(items))
	for _, item := range items {
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
