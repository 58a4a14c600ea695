package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/delegate/pkg/credential"
	"github.com/aussiebroadwan/delegate/pkg/httpx"
	"github.com/aussiebroadwan/delegate/pkg/plusdomains"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable, e.g.
// DOMAINPOST_USER_EMAIL.
const EnvPrefix = "DOMAINPOST"

// DefaultMessage is what gets posted when no message is configured.
const DefaultMessage = "Happy Monday! #caseofthemondays"

type Config struct {
	ServiceAccountEmail string        `mapstructure:"service_account_email"` // Optional with a JSON key file
	KeyFile             string        `mapstructure:"key_file"`              // Required: .json, .pem or .p12
	KeyPassword         string        `mapstructure:"key_password"`          // PKCS#12 password (default: notasecret)
	UserEmail           string        `mapstructure:"user_email"`            // Required: domain user to act as
	Scopes              []string      `mapstructure:"scopes"`                // Default: plus.me, plus.stream.write
	Message             string        `mapstructure:"message"`               // Post body
	Verify              bool          `mapstructure:"verify"`                // Read the activity back after inserting
	TokenURL            string        `mapstructure:"token_url"`             // Default: key file token_uri, then Google
	APIBaseURL          string        `mapstructure:"api_base_url"`          // Default: Google+ Domains v1
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`       // Per HTTP request (default: 30s)
	RefreshMargin       time.Duration `mapstructure:"refresh_margin"`        // Default: 60s
	RateLimitRequests   int           `mapstructure:"rate_limit_requests"`   // Outgoing API requests per window (0: unlimited)
	RateLimitWindow     time.Duration `mapstructure:"rate_limit_window"`     // Default: 1s
	RateLimitBurst      int           `mapstructure:"rate_limit_burst"`
	Env                 string        `mapstructure:"env"`        // dev, staging, prod (default: dev)
	LogLevel            string        `mapstructure:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat           string        `mapstructure:"log_format"` // json, text (default: json)
}

// NewViper returns a viper instance with defaults set and environment
// variables bound.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("service_account_email", "")
	v.SetDefault("key_file", "")
	v.SetDefault("key_password", "")
	v.SetDefault("user_email", "")
	v.SetDefault("scopes", plusdomains.DefaultScopes)
	v.SetDefault("message", DefaultMessage)
	v.SetDefault("verify", false)
	v.SetDefault("token_url", "")
	v.SetDefault("api_base_url", plusdomains.DefaultBaseURL)
	v.SetDefault("request_timeout", credential.DefaultExchangeTimeout)
	v.SetDefault("refresh_margin", credential.DefaultRefreshMargin)
	v.SetDefault("rate_limit_requests", httpx.DefaultClientLimit.RequestsPerWindow)
	v.SetDefault("rate_limit_window", httpx.DefaultClientLimit.Window)
	v.SetDefault("rate_limit_burst", httpx.DefaultClientLimit.Burst)
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return v
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"service-account": "service_account_email",
	"key-file":        "key_file",
	"key-password":    "key_password",
	"user":            "user_email",
	"scopes":          "scopes",
	"message":         "message",
	"verify":          "verify",
	"token-url":       "token_url",
	"api-base-url":    "api_base_url",
	"timeout":         "request_timeout",
	"log-level":       "log_level",
	"log-format":      "log_format",
}

// RegisterFlags defines the command-line flags and binds them to v. Flags
// win over environment variables, which win over the config file.
func RegisterFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String("config", "", "Path to a YAML or JSON config file")
	fs.String("service-account", "", "Service account email (defaults to client_email of a JSON key)")
	fs.String("key-file", "", "Service account key: JSON key file, PEM or PKCS#12")
	fs.String("key-password", "", "Password for a PKCS#12 key (default notasecret)")
	fs.String("user", "", "Domain user to act on behalf of")
	fs.StringSlice("scopes", plusdomains.DefaultScopes, "OAuth scopes to request")
	fs.String("message", DefaultMessage, "Text of the domain-restricted post")
	fs.Bool("verify", false, "Fetch the activity back after inserting it")
	fs.String("token-url", "", "Token endpoint override")
	fs.String("api-base-url", plusdomains.DefaultBaseURL, "API base URL")
	fs.Duration("timeout", credential.DefaultExchangeTimeout, "Per-request timeout")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "json", "Log format: json or text")

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// LoadConfig reads the optional config file named by the "config" key and
// decodes everything into a validated Config.
func LoadConfig(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Scopes = splitScopes(cfg.Scopes)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing or out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.KeyFile == "" {
		errs = append(errs, errors.New("key_file is required"))
	}
	if c.UserEmail == "" {
		errs = append(errs, errors.New("user_email is required"))
	}
	if len(c.Scopes) == 0 {
		errs = append(errs, errors.New("at least one scope is required"))
	}
	if c.Message == "" {
		errs = append(errs, errors.New("message must not be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.RefreshMargin < 0 {
		errs = append(errs, errors.New("refresh_margin must not be negative"))
	}
	if c.RateLimitRequests < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate_limit_window must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RateLimit converts the rate settings for httpx.
func (c Config) RateLimit() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{
		RequestsPerWindow: c.RateLimitRequests,
		Window:            c.RateLimitWindow,
		Burst:             c.RateLimitBurst,
	}
}

// splitScopes accepts scopes given as one comma- or space-separated string,
// which is how they arrive from environment variables.
func splitScopes(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' '
		})...)
	}
	return out
}
