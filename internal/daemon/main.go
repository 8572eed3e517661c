// Package daemon wires configuration, stores, the auth service and the web service together.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/adminauth/internal/audit"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/client"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/credential"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/ratelimit"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/session"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/strategy"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/db"
	"github.com/GoPowerDNS-Admin/adminauth/internal/db/dsn"
	"github.com/GoPowerDNS-Admin/adminauth/internal/kv"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web"
)

const purgeInterval = 10 * time.Minute

// ErrNilConfig is returned by New without a configuration.
var ErrNilConfig = errors.New("config is nil")

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	db         *gorm.DB
	store      kv.Store
	datadog    *audit.Datadog
	authSvc    *auth.Service
	webService *web.Service
	cancel     context.CancelFunc
}

// Start starts the background loops and the web service. It blocks until the web service stops.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)

	d.authSvc.Start(ctx)

	if g, ok := d.store.(*kv.Gorm); ok {
		go purge(ctx, g)
	}

	log.Info().Int("port", d.cfg.Webserver.Port).Str("url", d.cfg.Webserver.URL).Msg("starting web service")

	return d.webService.Start(":" + strconv.Itoa(d.cfg.Webserver.Port))
}

// WaitShutdown blocks until SIGINT or SIGTERM, drains the web service and releases every resource.
func (d *Daemon) WaitShutdown() {
	d.webService.WaitShutdown()
	d.Close()
}

// Close stops the background loops and closes the stores.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}

	if d.authSvc != nil {
		d.authSvc.Close()
	}

	if d.datadog != nil {
		if err := d.datadog.Close(); err != nil {
			log.Error().Err(err).Msg("failed to flush datadog audit sink")
		}
	}

	if d.store != nil {
		if err := kv.Close(d.store); err != nil {
			log.Error().Err(err).Msg("failed to close session storage")
		}
	}

	if d.db != nil {
		if sqlDB, err := d.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// New creates a new Daemon instance with the provided configuration.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	d := &Daemon{cfg: cfg}

	if err := d.init(ctx); err != nil {
		d.Close()

		return nil, err
	}

	return d, nil
}

func (d *Daemon) init(ctx context.Context) error {
	cfg := d.cfg

	if cfg.Storage.Driver == "db" || cfg.Auth.Credentials.Backend == "db" {
		conn, err := db.Open(cfg.DB)
		if err != nil {
			return err
		}

		d.db = conn
	}

	store, err := d.openStore()
	if err != nil {
		return err
	}

	d.store = store

	var (
		sessionOpts []session.Option
		limiterOpts []ratelimit.Option
	)

	if store != nil {
		sessionOpts = append(sessionOpts, session.WithStore(store))
		limiterOpts = append(limiterOpts, ratelimit.WithStore(store))
	}

	sessions := session.New(cfg.Auth.Config, sessionOpts...)
	limiter := ratelimit.New(cfg.Auth.RateLimit, limiterOpts...)

	if n, err := sessions.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to restore sessions")
	} else if n > 0 {
		log.Info().Int("sessions", n).Msg("restored sessions")
	}

	registry, err := d.strategies(ctx, sessions, limiter)
	if err != nil {
		return err
	}

	clients, err := client.New(cfg.Auth.Clients)
	if err != nil {
		return err
	}

	sink, err := d.auditSink()
	if err != nil {
		return err
	}

	d.authSvc = auth.New(sessions, clients, registry,
		auth.WithAudit(sink),
		auth.WithLimiter(limiter),
	)

	d.webService, err = web.New(cfg, d.authSvc)

	return err
}

// openStore returns nil for the memory driver: sessions and rate limits then live in memory only.
func (d *Daemon) openStore() (kv.Store, error) {
	s := d.cfg.Storage

	switch s.Driver {
	case "", "memory":
		return nil, nil //nolint:nilnil
	case "db":
		return kv.NewGorm(d.db)
	case "mysql":
		return kv.NewMySQL(dsn.MySQL(d.cfg.DB), s.Table, s.Reset), nil
	case "postgres":
		return kv.NewPostgres(dsn.Postgres(d.cfg.DB), s.Table, s.Reset), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrStorageDriverMismatch, s.Driver)
	}
}

// strategies builds the registry in priority order: bearer session, user token,
// the configured login strategies, anonymous.
func (d *Daemon) strategies(
	ctx context.Context,
	sessions *session.Manager,
	limiter *ratelimit.Limiter,
) (*strategy.Registry, error) {
	cfg := d.cfg.Auth

	tokens := cfg.UserTokens
	if tokens.Header == "" {
		tokens.Header = cfg.TokenHeader
	}

	userToken := strategy.NewUserToken(tokens, nil)
	passUnknown := len(tokens.Tokens) > 0 && userToken.Header() == strategy.DefaultTokenHeader

	list := []strategy.Strategy{strategy.NewBearer(sessions, passUnknown)}

	if len(tokens.Tokens) > 0 {
		list = append(list, userToken)
	}

	for _, name := range cfg.Strategies {
		switch name {
		case strategy.NameCredentials:
			verifier, err := d.verifier(ctx)
			if err != nil {
				return nil, err
			}

			list = append(list, strategy.NewCredentials(verifier, limiter))
		case strategy.NameOAuth2:
			provider, err := strategy.NewOAuth2(ctx, cfg.OAuth2)
			if err != nil {
				return nil, err
			}

			list = append(list, provider)
		}
	}

	if cfg.AnonymousEnabled {
		list = append(list, strategy.NewAnonymous(scope.New(cfg.DefaultScope...)))
	}

	return strategy.NewRegistry(list...), nil
}

func (d *Daemon) verifier(ctx context.Context) (credential.Verifier, error) {
	cfg := d.cfg.Auth.Credentials

	if cfg.Backend == "ldap" {
		return credential.NewLDAP(cfg.LDAP)
	}

	hasher, err := credential.NewHasher(cfg.HashConfig)
	if err != nil {
		return nil, err
	}

	var opts []credential.Option
	if cfg.LookupTimeout > 0 {
		opts = append(opts, credential.WithTimeout(time.Duration(cfg.LookupTimeout)*time.Second))
	}

	var lookup credential.LookupFunc

	switch cfg.Backend {
	case "db":
		dir := credential.NewDirectory(d.db, hasher)
		if err = seed(ctx, dir, os.Stdout); err != nil {
			return nil, err
		}

		lookup = dir.Lookup
	default:
		if lookup, err = credential.Static(cfg.Users, hasher); err != nil {
			return nil, err
		}

		opts = append(opts, credential.WithSource("static"))

		if len(cfg.Users) > 0 {
			opts = append(opts, credential.WithDummyLike(cfg.Users[0].Password))
		}
	}

	return credential.NewStore(lookup, hasher, opts...)
}

func (d *Daemon) auditSink() (audit.Sink, error) {
	sinks := []audit.Sink{audit.NewLogger(nil)}

	if d.cfg.Log.DataDog.Enabled {
		host, _ := os.Hostname()

		dd, err := audit.NewDatadog(d.cfg.Log.DataDog, host)
		if err != nil {
			return nil, err
		}

		d.datadog = dd
		sinks = append(sinks, dd)
	}

	return audit.NewCounter(audit.Multi(sinks...), prometheus.DefaultRegisterer)
}

func purge(ctx context.Context, g *kv.Gorm) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := g.Purge(); err != nil {
				log.Error().Err(err).Msg("failed to purge expired kv entries")
			} else if n > 0 {
				log.Debug().Int64("entries", n).Msg("purged expired kv entries")
			}
		}
	}
}
