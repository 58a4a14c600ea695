package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aussiebroadwan/delegate/pkg/apiclient"
	"github.com/aussiebroadwan/delegate/pkg/credential"
	"github.com/aussiebroadwan/delegate/pkg/httpx"
	"github.com/aussiebroadwan/delegate/pkg/metricsx"
	"github.com/aussiebroadwan/delegate/pkg/oauth2x"
	"github.com/aussiebroadwan/delegate/pkg/plusdomains"
	"github.com/aussiebroadwan/delegate/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	serviceName = "domainpost"
)

// Application posts one domain-restricted activity on behalf of a user.
type Application struct {
	cfg    Config
	logger *slog.Logger
	out    io.Writer

	registry *prometheus.Registry
	provider *credential.Provider
	plus     *plusdomains.Service
}

// Option tweaks an Application for embedding and tests.
type Option func(*applicationOptions)

type applicationOptions struct {
	out       io.Writer
	logOutput io.Writer
	transport http.RoundTripper
}

// WithOutput sets where the resulting activity is printed (default stdout).
func WithOutput(w io.Writer) Option {
	return func(o *applicationOptions) { o.out = w }
}

// WithLogOutput sets where logs go (default stderr).
func WithLogOutput(w io.Writer) Option {
	return func(o *applicationOptions) { o.logOutput = w }
}

// WithTransport sets the base transport under logging and rate limiting.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *applicationOptions) { o.transport = rt }
}

// New wires the credential provider, HTTP stack and API client from cfg.
func New(cfg Config, opts ...Option) (*Application, error) {
	o := applicationOptions{
		out:       os.Stdout,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	app := &Application{
		cfg: cfg,
		out: o.out,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  o.logOutput,
		}),
		registry: prometheus.NewRegistry(),
	}
	metrics := metricsx.NewCollector(app.registry)

	identity, tokenURL, err := app.loadIdentity()
	if err != nil {
		return nil, err
	}

	tokenClient := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: slogx.NewTransport(o.transport, app.logger),
	}
	app.provider, err = credential.NewProvider(identity,
		credential.WithTokenURL(tokenURL),
		credential.WithHTTPClient(tokenClient),
		credential.WithRefreshMargin(cfg.RefreshMargin),
		credential.WithExchangeTimeout(cfg.RequestTimeout),
		credential.WithLogger(app.logger),
		credential.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credentials: %w", err)
	}

	apiClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: slogx.NewTransport(
			httpx.NewRateLimitTransport(o.transport, cfg.RateLimit(), httpx.HostKeyExtractor),
			app.logger,
		),
	}
	app.plus = plusdomains.NewService(apiclient.New(cfg.APIBaseURL, app.provider,
		apiclient.WithHTTPClient(apiClient),
		apiclient.WithUserAgent(serviceName+"/"+BuildVersion),
		apiclient.WithLogger(app.logger),
		apiclient.WithMetrics(metrics),
	))

	return app, nil
}

// Run inserts the post as the configured user and prints the stored
// activity as indented JSON.
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("inserting activity", "user", app.cfg.UserEmail, "version", BuildVersion)

	activity, err := app.plus.Activities.Insert(ctx, plusdomains.UserMe, plusdomains.NewDomainPost(app.cfg.Message))
	if err != nil {
		app.logger.Error("insert activity failed", "kind", ErrorKind(err), "error", err)
		return fmt.Errorf("insert activity: %w", err)
	}
	app.logger.Info("activity inserted", "activity_id", activity.ID, "domain_restricted", activity.IsDomainRestricted())

	if app.cfg.Verify {
		stored, err := app.plus.Activities.Get(ctx, activity.ID)
		if err != nil {
			app.logger.Error("read back activity failed", "kind", ErrorKind(err), "error", err)
			return fmt.Errorf("verify activity %s: %w", activity.ID, err)
		}
		if !stored.IsDomainRestricted() {
			return fmt.Errorf("verify activity %s: audience is not restricted to the domain", activity.ID)
		}
		activity = stored
	}

	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(activity); err != nil {
		return fmt.Errorf("write activity: %w", err)
	}
	return nil
}

// Metrics exposes the exchange and request counters collected so far.
func (app *Application) Metrics() prometheus.Gatherer {
	return app.registry
}

// loadIdentity reads the key file. JSON key files carry the account email
// and token endpoint; PEM and PKCS#12 files need both from config.
func (app *Application) loadIdentity() (credential.ServiceIdentity, string, error) {
	cfg := app.cfg
	tokenURL := cfg.TokenURL

	if strings.EqualFold(filepath.Ext(cfg.KeyFile), ".json") {
		kf, err := credential.LoadServiceAccountFile(cfg.KeyFile)
		if err != nil {
			return credential.ServiceIdentity{}, "", err
		}

		id := kf.Identity(cfg.UserEmail, cfg.Scopes)
		if cfg.ServiceAccountEmail != "" {
			id.AccountID = cfg.ServiceAccountEmail
		}
		if tokenURL == "" {
			tokenURL = kf.TokenURI
		}
		if tokenURL == "" {
			tokenURL = oauth2x.GoogleTokenURL
		}
		return id, tokenURL, nil
	}

	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return credential.ServiceIdentity{}, "", fmt.Errorf("read key file: %w", err)
	}
	if cfg.ServiceAccountEmail == "" {
		return credential.ServiceIdentity{}, "", fmt.Errorf("service_account_email is required for %s keys: %w",
			filepath.Ext(cfg.KeyFile), credential.ErrNoAccount)
	}
	if tokenURL == "" {
		tokenURL = oauth2x.GoogleTokenURL
	}

	return credential.ServiceIdentity{
		AccountID:   cfg.ServiceAccountEmail,
		PrivateKey:  key,
		KeyPassword: cfg.KeyPassword,
		Scopes:      cfg.Scopes,
		Subject:     cfg.UserEmail,
	}, tokenURL, nil
}

// ErrorKind names the failure class of err for operators, e.g.
// "auth.exchange_rejected" or "transport.timeout".
func ErrorKind(err error) string {
	var (
		authErr      *credential.AuthError
		transportErr *apiclient.TransportError
		protocolErr  *apiclient.ProtocolError
		decodeErr    *apiclient.DecodeError
		pathErr      *fs.PathError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &authErr):
		return "auth." + string(authErr.Reason)
	case errors.As(err, &transportErr):
		return "transport." + string(transportErr.Kind)
	case errors.As(err, &protocolErr):
		return fmt.Sprintf("protocol.%d", protocolErr.Status)
	case errors.As(err, &decodeErr), errors.Is(err, plusdomains.ErrEmptyResponse):
		return "decode"
	case errors.Is(err, credential.ErrNoAccount), errors.Is(err, credential.ErrNoScopes),
		errors.As(err, &pathErr):
		return "config"
	default:
		return "unknown"
	}
}
