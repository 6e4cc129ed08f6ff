package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	// Huma-generated errors negotiate CBOR like the router-level problems.
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/janisto/welcome-api/internal/config"
	"github.com/janisto/welcome-api/internal/http/v1/routes"
	applog "github.com/janisto/welcome-api/internal/platform/logging"
	appmiddleware "github.com/janisto/welcome-api/internal/platform/middleware"
	"github.com/janisto/welcome-api/internal/platform/respond"
)

const (
	apiTitle       = "My Awesome API"
	apiDescription = "This is an example API with OpenAPI schema"
	docsPath       = "/docs"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "1.0.0"

func main() {
	flush := applog.Install()
	defer flush()

	cfg, err := config.Load()
	if err != nil {
		applog.LogFatal(context.Background(), "config load failed", err)
	}
	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		applog.LogWarn(context.Background(), "invalid log level, keeping info", zap.Error(err))
	}
	warnUnconfiguredCORS(zap.L(), cfg.CORS)

	respond.Install()
	srv := newServer(cfg, newRouter(cfg))

	listenErr := make(chan error, 1)
	go func() {
		applog.LogInfo(context.Background(), "server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		applog.LogFatal(context.Background(), "listen failed", err, zap.String("addr", srv.Addr))
	case <-stop:
		applog.LogInfo(context.Background(), "shutdown signal received")
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		applog.LogError(ctx, "server shutdown error", err)
	}
	applog.LogInfo(context.Background(), "server exited")
}

// newRouter builds the chi router with the platform middleware stack and the
// huma API mounted on it.
func newRouter(cfg config.Config) chi.Router {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	router.Use(
		appmiddleware.Security(docsPath),
		appmiddleware.Vary(),
		appmiddleware.CORS(cfg.CORS),
		appmiddleware.RequestID(),
		// RealIP trusts X-Real-IP and X-Forwarded-For. Only deploy behind a
		// trusted reverse proxy such as Cloud Run's front end.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(cfg.MaxBodyBytes),
		applog.RequestLogger(cfg.ProjectID),
		applog.AccessLogger(),
		respond.Recoverer(),
	)

	routes.Register(newAPI(router))
	return router
}

func newAPI(router chi.Router) huma.API {
	hcfg := huma.DefaultConfig(apiTitle, Version)
	hcfg.Info.Description = apiDescription
	hcfg.DocsPath = docsPath
	return humachi.New(router, hcfg)
}

func newServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// warnUnconfiguredCORS logs when no origin is allowed, since browsers on other
// origins will then be refused.
func warnUnconfiguredCORS(logger *zap.Logger, policy config.CORS) {
	if policy.Configured() {
		return
	}
	logger.Warn("CORS_ALLOWED_ORIGINS is empty; cross-origin requests will not be granted",
		zap.Strings("allowedMethods", policy.AllowedMethods),
	)
}
