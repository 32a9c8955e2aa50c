package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/review"
	"github.com/celsofranciscano/innotech/core/user"
)

type (
	// Deps are the services served by the API.
	Deps struct {
		UserSvc    *user.Service
		CallSvc    *call.Service
		ProjectSvc *project.Service
		ReviewSvc  *review.Service
		CatalogSvc *catalog.Service
		AuditSvc   *audit.Service
	}

	Server struct {
		conf       *core.Config
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		deps       *Deps

		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	deps *Deps,
) *Server {
	s := &Server{
		conf:       conf,
		logger:     logger,
		validate:   validate,
		translator: translator,
		deps:       deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.translator, s.signalShutdown)
	s.app.Debug = s.conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(jwtConfig(s.conf))

	registerAuthAPI(g, jwt, s.conf, s.logger, s.deps.UserSvc, s.validate)
	registerLandingAPI(g, s.deps.ProjectSvc)
	registerDashboardAPI(g, jwt, s.deps, s.validate)
	registerAccountAPI(g, jwt, s.deps, s.validate)
	registerCatalogAPI(g, jwt, s.deps.CatalogSvc, s.deps.AuditSvc, s.validate)
	registerUserAPI(g, jwt, s.deps.UserSvc, s.deps.AuditSvc, s.validate)
}

func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors reports the errors that stopped the server.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal is notified on SIGINT, SIGTERM or when a handler caught a shutdown error.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Bienvenido a la API de "+s.conf.AppName+"!")
}
