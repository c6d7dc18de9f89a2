package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/config"
	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/domain/search"
	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/auth"
	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/fhir"
	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/middleware"
	"github.com/ResMedOSS/fhir-works-on-aws-search-es/internal/platform/opensearch"
)

// version is stamped at release time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "search-server",
		Short: "FHIR R4 Search API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the search API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("search-server %s %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger = logger.Level(parseLogLevel(cfg.LogLevel))

	// Search engine
	ctx := context.Background()
	client, err := opensearch.NewClient(ctx, engineConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to search engine")
	}
	logger.Info().
		Str("endpoint", cfg.OpenSearchEndpoint).
		Str("auth_mode", cfg.ResolvedEngineAuthMode()).
		Msg("connected to search engine")

	// Search parameter registry and type map
	registry := fhir.NewSearchParametersRegistry(fhir.DefaultSearchParameters())

	typeMap := fhir.DefaultTypeMap()
	if cfg.TypeMapFile != "" {
		typeMap, err = fhir.LoadTypeMap(cfg.TypeMapFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.TypeMapFile).Msg("failed to load type map")
		}
		logger.Info().Str("path", cfg.TypeMapFile).Msg("loaded type map")
	}
	types := fhir.NewTypeMapService(typeMap)

	svc := search.NewService(search.NewOpenSearchRepository(client), registry, types, cfg.KeywordSubFields)

	// OAuth endpoints for the CapabilityStatement and SMART discovery come
	// from the issuer's OIDC discovery document.
	capCfg := fhir.CapabilityConfig{
		ServerName:    "fhir-works-search",
		ServerVersion: version,
		BaseURL:       cfg.BaseURL,
	}
	jwksURL := cfg.AuthJWKSURL
	if cfg.AuthIssuer != "" {
		provider, err := auth.NewOIDCProvider(cfg.AuthIssuer)
		if err != nil {
			logger.Warn().Err(err).Str("issuer", cfg.AuthIssuer).
				Msg("OIDC discovery failed, capability statement will omit OAuth endpoints")
		} else {
			capCfg.AuthorizeURL = provider.AuthorizationEndpoint
			capCfg.TokenURL = provider.TokenEndpoint
			if jwksURL == "" {
				jwksURL = provider.JWKSURI
			}
		}
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = fhirErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.AuthEnabled {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    jwksURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	} else {
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	}

	e.Use(middleware.SecurityHeaders())

	// SMART discovery document
	if capCfg.AuthorizeURL != "" && capCfg.TokenURL != "" {
		e.GET("/fhir/.well-known/smart-configuration",
			auth.SMARTConfigurationHandler(capCfg.AuthorizeURL, capCfg.TokenURL))
	}

	// Rate limits, auditing and scope enforcement apply to the FHIR API
	// group, not to the health probes.
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	handler := search.NewHandler(svc, registry, capCfg)
	handler.RegisterRoutes(e,
		middleware.RateLimit(rateLimitCfg),
		middleware.BodyLimit("64K"),
		middleware.Audit(logger),
		middleware.RequestTimeout(time.Duration(cfg.RequestTimeoutSeconds)*time.Second),
		auth.SearchScopeMiddleware(),
	)

	// Graceful shutdown
	go func() {
		addr := cfg.Address()
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// parseLogLevel maps the LOG_LEVEL config value to a zerolog level. Unknown
// or empty values fall back to info.
func parseLogLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// engineConfig maps service configuration onto engine connection settings.
// The AWS region only passes through when the resolved auth mode is "aws",
// so an ambient AWS_REGION with an explicit mode of "none" or "basic" does
// not switch on request signing.
func engineConfig(cfg *config.Config) opensearch.Config {
	ec := opensearch.Config{
		Endpoint:   cfg.OpenSearchEndpoint,
		AWSService: cfg.AWSService,
		Username:   cfg.OpenSearchUsername,
		Password:   cfg.OpenSearchPassword,
	}
	if cfg.ResolvedEngineAuthMode() == "aws" {
		ec.AWSRegion = cfg.AWSRegion
	}
	return ec
}

// statusIssueType maps an HTTP status to the FHIR issue type code carried in
// an OperationOutcome.
func statusIssueType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return fhir.IssueTypeInvalid
	case http.StatusUnauthorized:
		return fhir.IssueTypeLogin
	case http.StatusForbidden:
		return fhir.IssueTypeForbidden
	case http.StatusNotFound:
		return fhir.IssueTypeNotFound
	case http.StatusMethodNotAllowed:
		return fhir.IssueTypeNotSupported
	case http.StatusTooManyRequests:
		return fhir.IssueTypeThrottled
	case http.StatusGatewayTimeout:
		return fhir.IssueTypeTimeout
	default:
		return fhir.IssueTypeException
	}
}

// fhirErrorHandler renders errors that escape the handlers (unknown routes,
// auth rejections, panics) as OperationOutcome resources instead of echo's
// default error shape. Internal error details are logged, never returned.
func fhirErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "Internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if msg, ok := he.Message.(string); ok && status < http.StatusInternalServerError {
				message = msg
			} else {
				message = http.StatusText(status)
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		outcome := fhir.NewOperationOutcome(fhir.IssueSeverityError, statusIssueType(status), message)
		c.Response().Header().Set(echo.HeaderContentType, "application/fhir+json")
		_ = c.JSON(status, outcome)
	}
}
