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
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/oslokommune/okdata-permission-api/internal/config"
	accesslog "github.com/oslokommune/okdata-permission-api/internal/logger/adapter/fiber"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler/permissions"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler/resources"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler/team"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler/teampermissions"
	"github.com/oslokommune/okdata-permission-api/internal/web/handler/webhooks"
	"github.com/oslokommune/okdata-permission-api/internal/web/middleware/auth"
)

const (
	// HealthPath answers 200 while serving and 503 while shutting down.
	HealthPath = "/health"

	// MetricsPath exposes the prometheus metrics.
	MetricsPath = "/metrics"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		err := s.App.Listen(addr, fiber.ListenConfig{DisableStartupMessage: !s.cfg.DevMode})
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for SIGINT or SIGTERM and shuts the web service down gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	s.Shutdown()
}

// Shutdown fails the health check for the configured time, then stops the server.
func (s *Service) Shutdown() {
	// Graceful shutdown for reverse proxies: set status to fail, so the health check returns fail.
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

// Alive reports whether the service accepts traffic.
func (s *Service) Alive() bool {
	return s.alive.Load()
}

func (s *Service) health(c fiber.Ctx) error {
	if !s.alive.Load() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "shutting down"})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// New creates the web service and registers every route.
func New(cfg *config.Config, deps *handler.Deps) (*Service, error) {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if deps == nil {
		panic("deps cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			AppName:       "okdata-permission-api",
			CaseSensitive: true,
			Immutable:     true,
			UnescapePath:  true,
			ErrorHandler:  handler.ErrorHandler,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recoverer.New())
	}

	app.Use(accesslog.New(accesslog.Config{
		Config:         cfg.Log,
		HealthURI:      HealthPath,
		PrincipalLocal: auth.LocalPrincipal,
	}))

	if cfg.Webserver.URL != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: []string{cfg.Webserver.URL},
			AllowHeaders: []string{fiber.HeaderAuthorization, fiber.HeaderContentType},
		}))
	}

	service := &Service{
		cfg:          cfg,
		App:          app,
		fastShutDown: cfg.DevMode || cfg.Webserver.ShutDownTime <= 0,
	}
	service.alive.Store(true)

	app.Get(HealthPath, service.health)
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	handlers := []handler.Service{
		&resources.Service{},
		&permissions.Service{},
		&teampermissions.Service{},
		&team.Service{},
		&webhooks.Service{},
	}

	for _, h := range handlers {
		if err := h.Init(app, deps); err != nil {
			return nil, err //nolint:wrapcheck
		}
	}

	return service, nil
}
