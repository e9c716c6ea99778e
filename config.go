// config.go
// ----------
// This file defines the client Config and the base URL resolution that every
// Client starts from.
//
// The API URL can be overridden through SKYKEEN_API_URL (VITE_API_URL is also
// honoured, matching the admin panel build), or an optional config file. The
// override is only used when it is an absolute http(s) URL on the expected
// registrable domain; anything else falls back to DefaultBaseURL with a logged
// diagnostic. Resolution never fails.
package adminclient

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultBaseURL        = "https://api.skykeenentreprise.com"
	DefaultExpectedDomain = "skykeenentreprise.com"

	// Registrable domains within this edit distance of the expected one are
	// reported as misspellings rather than foreign hosts.
	misspellingDistance = 3
)

// Config holds client settings loaded from the environment or a config file.
type Config struct {
	APIURL         string `mapstructure:"api_url"`
	ExpectedDomain string `mapstructure:"expected_domain"` // empty disables the domain check
	Debug          bool   `mapstructure:"debug"`
}

// LoadConfig reads Config from the environment and, when path is non-empty,
// from the given config file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("api_url", "")
	v.SetDefault("expected_domain", DefaultExpectedDomain)
	v.SetDefault("debug", false)

	if err := v.BindEnv("api_url", "SKYKEEN_API_URL", "VITE_API_URL"); err != nil {
		return nil, fmt.Errorf("bind api_url: %w", err)
	}
	if err := v.BindEnv("expected_domain", "SKYKEEN_EXPECTED_DOMAIN"); err != nil {
		return nil, fmt.Errorf("bind expected_domain: %w", err)
	}
	if err := v.BindEnv("debug", "SKYKEEN_DEBUG"); err != nil {
		return nil, fmt.Errorf("bind debug: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// BaseURL resolves the configured API URL, see ResolveBaseURL.
func (c *Config) BaseURL(logger *zap.SugaredLogger) string {
	return ResolveBaseURL(c.APIURL, ResolveOptions{
		ExpectedDomain: c.ExpectedDomain,
		Logger:         logger,
	})
}

// ResolveOptions tunes ResolveBaseURL.
type ResolveOptions struct {
	ExpectedDomain string
	Logger         *zap.SugaredLogger
}

// ResolveBaseURL returns override when it is usable and DefaultBaseURL
// otherwise. The result never has a trailing slash.
func ResolveBaseURL(override string, opts ResolveOptions) string {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	raw := strings.TrimSpace(override)
	if raw == "" {
		return DefaultBaseURL
	}

	u, err := url.Parse(raw)
	if err != nil || !isOrigin(u) {
		logger.Warnw("API URL is not an absolute http(s) URL, using default",
			"provided", override, "using", DefaultBaseURL)
		return DefaultBaseURL
	}

	if opts.ExpectedDomain != "" {
		expected := strings.ToLower(opts.ExpectedDomain)
		domain := registrableDomain(u.Hostname())
		if domain != expected {
			if levenshtein.Distance(domain, expected, nil) <= misspellingDistance {
				logger.Errorw("API URL domain is misspelled, using default",
					"provided", override, "found", domain, "expected", expected, "using", DefaultBaseURL)
			} else {
				logger.Warnw("API URL is outside the expected domain, using default",
					"provided", override, "expected", expected, "using", DefaultBaseURL)
			}
			return DefaultBaseURL
		}
	}

	return strings.TrimRight(raw, "/")
}

func isOrigin(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return u.Host != "" && u.Hostname() != "" && u.User == nil && u.RawQuery == "" && u.Fragment == ""
}

func registrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}
