package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth"
	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	adapter "github.com/GoPowerDNS-Admin/adminauth/internal/logger/adapter/fiber"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler/auth/oauth2"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler/login"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler/logout"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler/me"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler/sessions"
	"github.com/GoPowerDNS-Admin/adminauth/internal/web/handler/settings"
	authmw "github.com/GoPowerDNS-Admin/adminauth/internal/web/middleware/auth"
)

// CheckAlivePath answers 200 while the service accepts traffic and 503 while it drains.
const CheckAlivePath = "/healthz"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	authService  *auth.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	s.Shutdown()
}

// Shutdown drains and stops the http server.
func (s *Service) Shutdown() {
	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("")
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, authService *auth.Service) (*Service, error) {
	if cfg == nil || authService == nil {
		return nil, handler.ErrNilACS
	}

	fiberCfg := fiber.Config{
		ReadBufferSize: 8192, //nolint:mnd
		AppName:        cfg.Title,
		CaseSensitive:  true,
		Immutable:      true,
		ErrorHandler:   errorHandler,
	}

	if cfg.Webserver.BodyLimit > 0 {
		fiberCfg.BodyLimit = cfg.Webserver.BodyLimit
	}

	app := fiber.New(fiberCfg)

	service := &Service{
		cfg:          cfg,
		App:          app,
		fastShutDown: cfg.DevMode || cfg.Webserver.ShutDownTime <= 0,
		authService:  authService,
	}
	service.alive.Store(true)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	app.Use(adapter.New(adapter.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
		User:          authmw.IdentityID,
	}))

	app.Get(CheckAlivePath, service.checkAlive)

	if cfg.Metrics.Enabled {
		app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	handlers := []handler.Service{
		new(login.Service),
		new(logout.Service),
		new(oauth2.Service),
		new(me.Service),
		new(sessions.Service),
		new(settings.Service),
	}

	for _, h := range handlers {
		if err := h.Init(app, cfg, authService); err != nil {
			return nil, err
		}
	}

	return service, nil
}

func (s *Service) checkAlive(c fiber.Ctx) error {
	if !s.alive.Load() {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.SendString("OK")
}

// errorHandler answers every unhandled error with a JSON body that never carries internals.
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(code).JSON(fiber.Map{"error": http.StatusText(code)})
}
