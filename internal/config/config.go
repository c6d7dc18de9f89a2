package config

import (
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Host     string `mapstructure:"HOST"`
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// BaseURL is the externally visible FHIR base (e.g. behind a load
	// balancer). Empty means links derive from the incoming request.
	BaseURL string `mapstructure:"BASE_URL"`

	OpenSearchEndpoint string `mapstructure:"OPENSEARCH_ENDPOINT"`
	OpenSearchAuthMode string `mapstructure:"OPENSEARCH_AUTH_MODE"`
	OpenSearchUsername string `mapstructure:"OPENSEARCH_USERNAME"`
	OpenSearchPassword string `mapstructure:"OPENSEARCH_PASSWORD"`
	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSService         string `mapstructure:"AWS_SERVICE"`

	KeywordSubFields bool   `mapstructure:"KEYWORD_SUBFIELDS"`
	TypeMapFile      string `mapstructure:"TYPE_MAP_FILE"`

	AuthEnabled    bool     `mapstructure:"AUTH_ENABLED"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS          float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int     `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeoutSeconds int     `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OPENSEARCH_ENDPOINT", "http://localhost:9200")
	v.SetDefault("OPENSEARCH_AUTH_MODE", "") // auto-detect: "" -> inferred from credentials
	v.SetDefault("AWS_SERVICE", "es")
	v.SetDefault("KEYWORD_SUBFIELDS", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("HOST")
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("BASE_URL")
	v.BindEnv("OPENSEARCH_ENDPOINT")
	v.BindEnv("OPENSEARCH_AUTH_MODE")
	v.BindEnv("OPENSEARCH_USERNAME")
	v.BindEnv("OPENSEARCH_PASSWORD")
	v.BindEnv("AWS_REGION")
	v.BindEnv("AWS_SERVICE")
	v.BindEnv("KEYWORD_SUBFIELDS")
	v.BindEnv("TYPE_MAP_FILE")
	v.BindEnv("AUTH_ENABLED")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("REQUEST_TIMEOUT_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.IsDev() && !cfg.AuthEnabled {
		log.Println("WARNING: running in development mode without authentication.")
		log.Println("WARNING: all requests are treated as admin. Set ENV=production and AUTH_ENABLED=true before serving real data.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Address returns the host:port the HTTP server binds to.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ResolvedEngineAuthMode returns the effective engine auth mode. If
// OPENSEARCH_AUTH_MODE is explicitly set, it is returned. Otherwise the mode
// is inferred:
//   - AWS_REGION set           → "aws" (SigV4 signing)
//   - OPENSEARCH_USERNAME set  → "basic"
//   - Otherwise                → "none"
func (c *Config) ResolvedEngineAuthMode() string {
	if c.OpenSearchAuthMode != "" {
		return c.OpenSearchAuthMode
	}
	if c.AWSRegion != "" {
		return "aws"
	}
	if c.OpenSearchUsername != "" {
		return "basic"
	}
	return "none"
}

// Validate checks that the configuration is safe to run. Production refuses
// to start without authentication; the engine auth mode must have the
// credentials it needs.
func (c *Config) Validate() error {
	if c.OpenSearchEndpoint == "" {
		return fmt.Errorf("OPENSEARCH_ENDPOINT is required")
	}

	switch mode := c.ResolvedEngineAuthMode(); mode {
	case "aws":
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION must be set when OPENSEARCH_AUTH_MODE is \"aws\"")
		}
	case "basic":
		if c.OpenSearchUsername == "" || c.OpenSearchPassword == "" {
			return fmt.Errorf("OPENSEARCH_USERNAME and OPENSEARCH_PASSWORD must be set when OPENSEARCH_AUTH_MODE is \"basic\"")
		}
	case "none":
	default:
		return fmt.Errorf("OPENSEARCH_AUTH_MODE must be \"aws\", \"basic\", or \"none\", got %q", mode)
	}

	if c.AuthEnabled && c.AuthIssuer == "" && c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
		return fmt.Errorf(
			"AUTH_ENABLED requires AUTH_ISSUER, AUTH_JWKS_URL, or AUTH_SIGNING_KEY. " +
				"Refusing to start with authentication enabled but unconfigured")
	}

	if c.IsProduction() && !c.AuthEnabled {
		return fmt.Errorf(
			"AUTH_ENABLED must be true in production (ENV=%q). "+
				"Refusing to serve clinical data without authentication", c.Env)
	}

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSeconds)
	}

	return nil
}
