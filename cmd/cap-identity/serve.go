// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/cap-identity/config"
	"github.com/hashicorp/cap-identity/flow"
	"github.com/hashicorp/cap-identity/handler"
	"github.com/hashicorp/cap-identity/metrics"
	"github.com/hashicorp/cap-identity/oidc"
	"github.com/hashicorp/cap-identity/secrets"
	"github.com/hashicorp/cap-identity/session"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the claims verification routes",
	Example: `  # Serve clients from a file with in-memory sessions
  cap-identity serve --clients-file=clients.json --eligibility-claim=military

  # Serve clients from PostgreSQL with sessions in Redis
  CAP_IDENTITY_DATABASE_URL=postgres://localhost/identity \
  CAP_IDENTITY_REDIS_URL=redis://localhost:6379/0 \
  cap-identity serve --eligibility-claim=military --extra-claims="veteran"`,
	Args: cobra.NoArgs,
	RunE: serveCmdRun,
}

type serveFlags struct {
	listen          string
	shutdownTimeout time.Duration
	routePrefix     string
	errorRoute      string
	providerCA      string
	redisURL        string
	sessionTTL      time.Duration
	secureCookie    bool
	metrics         bool

	scopes             string
	eligibilityClaim   string
	extraClaims        string
	scheme             string
	redirectSuccess    string
	redirectFail       string
	redirectPostLogout string
}

var serveArgs = serveFlags{
	listen:          ":8080",
	shutdownTimeout: 10 * time.Second,
	routePrefix:     config.DefaultRoutePrefix,
	sessionTTL:      session.DefaultTTL,
	secureCookie:    true,
	metrics:         true,
	scopes:          "openid",
}

func init() {
	addStoreFlags(serveCmd.Flags())
	serveCmd.Flags().StringVar(&serveArgs.listen, "listen", serveArgs.listen,
		"The address to listen on.")
	serveCmd.Flags().DurationVar(&serveArgs.shutdownTimeout, "shutdown-timeout", serveArgs.shutdownTimeout,
		"The length of time to wait for in-flight requests on shutdown.")
	serveCmd.Flags().StringVar(&serveArgs.routePrefix, "route-prefix", serveArgs.routePrefix,
		"The path prefix of the verification routes.")
	serveCmd.Flags().StringVar(&serveArgs.errorRoute, "error-route", "",
		"Redirect here when a session's client can't be resolved, instead of failing the request.")
	serveCmd.Flags().StringVar(&serveArgs.providerCA, "provider-ca", "",
		"Path to a PEM CA certificate used to reach the providers.")
	serveCmd.Flags().StringVar(&serveArgs.redisURL, "redis-url", "",
		"Redis URL of the session store. Sessions are kept in memory when empty.")
	serveCmd.Flags().DurationVar(&serveArgs.sessionTTL, "session-ttl", serveArgs.sessionTTL,
		"The idle timeout of a session.")
	serveCmd.Flags().BoolVar(&serveArgs.secureCookie, "secure-cookie", serveArgs.secureCookie,
		"Mark the session cookie Secure.")
	serveCmd.Flags().BoolVar(&serveArgs.metrics, "metrics", serveArgs.metrics,
		"Serve Prometheus metrics at /metrics.")

	serveCmd.Flags().StringVar(&serveArgs.scopes, "scopes", serveArgs.scopes,
		"Space delimited scopes requested by the start route.")
	serveCmd.Flags().StringVar(&serveArgs.eligibilityClaim, "eligibility-claim", "",
		"The eligibility claim requested by the start route. The start route is disabled when empty.")
	serveCmd.Flags().StringVar(&serveArgs.extraClaims, "extra-claims", "",
		"Space delimited extra claims requested by the start route.")
	serveCmd.Flags().StringVar(&serveArgs.scheme, "scheme", "",
		"Overrides the client's scheme for the start route.")
	serveCmd.Flags().StringVar(&serveArgs.redirectSuccess, "redirect-success", "",
		"Where the start route sends verified users. Defaults to the verify_success route.")
	serveCmd.Flags().StringVar(&serveArgs.redirectFail, "redirect-fail", "",
		"Where the start route sends users who weren't verified. Defaults to the verify_fail route.")
	serveCmd.Flags().StringVar(&serveArgs.redirectPostLogout, "redirect-post-logout", "",
		"Where the provider sends users after logout. Defaults to the post_logout route.")

	rootCmd.AddCommand(serveCmd)
}

func serveCmdRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := newLogger(cmd)

	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	backend, closeBackend, err := openSessionBackend(ctx)
	if err != nil {
		return err
	}
	defer closeBackend()

	router, closeRouter, err := newRouter(logger, repo, backend, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer closeRouter()

	srv := &http.Server{
		Addr:              serveArgs.listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", serveArgs.listen, "prefix", serveArgs.routePrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveArgs.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func openSessionBackend(ctx context.Context) (session.Backend, func(), error) {
	if serveArgs.redisURL == "" {
		b := session.NewMemoryBackend(session.WithTTL(serveArgs.sessionTTL))
		return b, b.Close, nil
	}
	b, err := session.OpenRedisBackend(ctx, serveArgs.redisURL, session.WithTTL(serveArgs.sessionTTL))
	if err != nil {
		return nil, nil, err
	}
	return b, func() { _ = b.Close() }, nil
}

// startClaimsRequest returns the claims request of the start route, or nil
// when no eligibility claim is configured.
func startClaimsRequest(routes config.Routes) (*config.ClaimsRequest, error) {
	if serveArgs.eligibilityClaim == "" {
		return nil, nil
	}
	return config.NewClaimsRequest(serveArgs.scopes, serveArgs.eligibilityClaim, routes,
		config.WithExtraClaims(serveArgs.extraClaims),
		config.WithScheme(serveArgs.scheme),
		config.WithRedirectSuccess(serveArgs.redirectSuccess),
		config.WithRedirectFail(serveArgs.redirectFail),
		config.WithRedirectPostLogout(serveArgs.redirectPostLogout),
	)
}

// newRouter wires the client registry, flow controller and handler into a
// router serving the verification routes behind the session middleware. The
// returned func releases the registry's clients.
func newRouter(logger hclog.Logger, repo config.Repository, backend session.Backend, reg *prometheus.Registry) (http.Handler, func(), error) {
	routes := config.NewRoutes(serveArgs.routePrefix)

	registryOpts := []oidc.Option{
		oidc.WithLogger(logger.Named("oidc")),
		oidc.WithSecretReader(&secrets.EnvReader{}),
	}
	if serveArgs.providerCA != "" {
		pem, err := os.ReadFile(serveArgs.providerCA)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to read provider CA: %w", err)
		}
		registryOpts = append(registryOpts, oidc.WithProviderCA(string(pem)))
	}
	registry := oidc.NewRegistry(registryOpts...)

	ctrl, err := flow.New(registry, repo, routes,
		flow.WithErrorRoute(serveArgs.errorRoute),
		flow.WithLogger(logger),
		flow.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		registry.Close()
		return nil, nil, err
	}

	handlerOpts := []handler.Option{handler.WithLogger(logger)}
	req, err := startClaimsRequest(routes)
	if err != nil {
		registry.Close()
		return nil, nil, err
	}
	if req != nil {
		handlerOpts = append(handlerOpts, handler.WithStart(repo, req))
	}
	h, err := handler.New(ctrl, handlerOpts...)
	if err != nil {
		registry.Close()
		return nil, nil, err
	}

	mgr, err := session.NewManager(backend,
		session.WithSecureCookie(serveArgs.secureCookie),
		session.WithLogger(logger.Named("session")),
	)
	if err != nil {
		registry.Close()
		return nil, nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})
	if serveArgs.metrics {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}
	r.Group(func(r chi.Router) {
		r.Use(mgr.Handler)
		h.Register(r)
	})
	return r, registry.Close, nil
}
