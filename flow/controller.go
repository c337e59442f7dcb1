// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/cap-identity/claims"
	"github.com/hashicorp/cap-identity/config"
	"github.com/hashicorp/cap-identity/metrics"
	"github.com/hashicorp/cap-identity/oidc"
	"github.com/hashicorp/cap-identity/session"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hashicorp/cap-identity/flow"

// Transition names used in logs, spans and metrics.
const (
	TransitionStart     = "start"
	TransitionLogin     = "login"
	TransitionAuthorize = "authorize"
	TransitionLogout    = "logout"
)

// Controller drives the login, authorize and logout transitions for the
// session of each request. It holds no per-request state and is safe for
// concurrent use.
type Controller struct {
	factory       oidc.Factory
	clientConfigs config.Store
	routes        config.Routes
	errorRoute    string
	logger        hclog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
}

// New creates a Controller which resolves session client configs through
// clientConfigs and creates clients with factory.
//
// Supported options: WithErrorRoute, WithLogger, WithMetrics,
// WithTracerProvider
func New(factory oidc.Factory, clientConfigs config.Store, routes config.Routes, opt ...Option) (*Controller, error) {
	const op = "flow.New"
	switch {
	case factory == nil:
		return nil, fmt.Errorf("%s: client factory is nil: %w", op, ErrNilParameter)
	case clientConfigs == nil:
		return nil, fmt.Errorf("%s: client config store is nil: %w", op, ErrNilParameter)
	}
	opts := getControllerOpts(opt...)
	return &Controller{
		factory:       factory,
		clientConfigs: clientConfigs,
		routes:        routes,
		errorRoute:    opts.withErrorRoute,
		logger:        opts.withLogger.Named("flow"),
		metrics:       opts.withMetrics,
		tracer:        opts.withTracerProvider.Tracer(tracerName),
	}, nil
}

// Routes returns the controller's routes.
func (c *Controller) Routes() config.Routes {
	return c.routes
}

// resolution is the result of resolving a session's client: exactly one of
// client or redirect is set. redirect is only used with WithErrorRoute.
type resolution struct {
	client   oidc.Client
	redirect *oidc.Response
}

type transition struct {
	name    string
	start   time.Time
	span    trace.Span
	outcome string
}

func (c *Controller) begin(ctx context.Context, name string) (context.Context, *transition) {
	ctx, span := c.tracer.Start(ctx, "flow."+name)
	c.logger.Debug(name)
	return ctx, &transition{name: name, start: time.Now(), span: span, outcome: metrics.OutcomeRedirect}
}

func (c *Controller) end(t *transition, err error) {
	if err != nil {
		t.outcome = metrics.OutcomeError
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	}
	t.span.SetAttributes(attribute.String("flow.outcome", t.outcome))
	t.span.End()
	c.metrics.IncrementTransition(t.name, t.outcome)
	c.metrics.ObserveTransitionLatency(t.name, time.Since(t.start))
}

func sessionState(ctx context.Context, r *http.Request) (*session.State, error) {
	const op = "flow.sessionState"
	if store, ok := session.FromContext(ctx); ok {
		return session.New(store), nil
	}
	if r != nil {
		if store, ok := session.FromContext(r.Context()); ok {
			return session.New(store), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
}

// resolveClient resolves the session's client config into a Client. Without
// an error route, a missing config returns ErrConfiguration and a missing
// client returns ErrClientRegistration. With an error route both are logged
// and return a redirect to it instead.
func (c *Controller) resolveClient(ctx context.Context, st *session.State) (resolution, error) {
	const op = "Controller.resolveClient"
	cfg, found, err := st.ClientConfig(ctx, c.clientConfigs)
	if err != nil {
		return resolution{}, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		c.metrics.IncrementResolutionFailure("configuration")
		return c.resolutionFailure(fmt.Errorf("%s: %w", op, ErrConfiguration))
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("flow.client", cfg.ClientName))

	client, err := c.factory.Create(ctx, cfg, st.Scopes(), st.Scheme())
	if err != nil {
		return resolution{}, fmt.Errorf("%s: unable to create client %s: %w", op, cfg.ClientName, err)
	}
	if client == nil {
		c.metrics.IncrementResolutionFailure("registration")
		return c.resolutionFailure(fmt.Errorf("%s: %s: %w", op, cfg.ClientName, ErrClientRegistration))
	}
	return resolution{client: client}, nil
}

func (c *Controller) resolutionFailure(err error) (resolution, error) {
	if c.errorRoute == "" {
		return resolution{}, err
	}
	c.logger.Error("unable to resolve client", "error", err, "redirect", c.errorRoute)
	return resolution{redirect: oidc.NewRedirect(c.errorRoute)}, nil
}

// Start resets the session's flow state, stores a reference to cfg and
// applies the claims request req. It returns a redirect to the login route.
func (c *Controller) Start(ctx context.Context, r *http.Request, cfg *config.ClientConfig, req *config.ClaimsRequest) (_ *oidc.Response, retErr error) {
	const op = "Controller.Start"
	ctx, t := c.begin(ctx, TransitionStart)
	defer func() { c.end(t, retErr) }()

	switch {
	case cfg == nil:
		return nil, fmt.Errorf("%s: client config is nil: %w", op, ErrNilParameter)
	case req == nil:
		return nil, fmt.Errorf("%s: claims request is nil: %w", op, ErrNilParameter)
	}
	st, err := sessionState(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	st = session.New(st.Store(), session.WithReset(true))
	st.SetClientConfig(cfg)
	st.ApplyClaimsRequest(req)
	c.logger.Debug("claims verification requested", "client", cfg.ClientName, "claims", st.AllClaims().String())
	return oidc.NewRedirect(c.routes.Login), nil
}

// Login redirects to the client's authorization endpoint, with the
// authorize route as the callback.
func (c *Controller) Login(ctx context.Context, w http.ResponseWriter, r *http.Request) (_ *oidc.Response, retErr error) {
	const op = "Controller.Login"
	ctx, t := c.begin(ctx, TransitionLogin)
	defer func() { c.end(t, retErr) }()

	st, err := sessionState(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := c.resolveClient(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res.redirect != nil {
		return res.redirect, nil
	}

	callback := redirectURI(r, c.routes.Authorize)
	c.logger.Debug("authorize redirect", "redirect_uri", callback)
	resp, err := res.client.AuthorizeRedirect(ctx, w, r, callback)
	switch {
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	case resp == nil:
		return nil, &AuthorizeRedirectError{}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &AuthorizeRedirectError{Status: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp, nil
}

// Authorize handles the provider's callback. It exchanges the code, evaluates
// the session's expected claims against the userinfo and stores the result in
// the session. The user is redirected to the session's success route when the
// eligibility claim is verified and to its fail route otherwise.
//
// Errors returned by the client's token exchange are returned unchanged.
func (c *Controller) Authorize(ctx context.Context, _ http.ResponseWriter, r *http.Request) (_ *oidc.Response, retErr error) {
	const op = "Controller.Authorize"
	ctx, t := c.begin(ctx, TransitionAuthorize)
	defer func() { c.end(t, retErr) }()

	st, err := sessionState(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := c.resolveClient(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res.redirect != nil {
		return res.redirect, nil
	}

	tk, err := res.client.ExchangeToken(ctx, r)
	if err != nil {
		return nil, err
	}
	if tk == nil {
		c.logger.Warn("could not authorize access token")
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExchange)
	}
	c.logger.Debug("access token authorized")

	var result *claims.Result
	if spec := st.AllClaims(); len(spec) > 0 {
		userinfo := tk.Userinfo
		if userinfo == nil {
			userinfo = map[string]any{}
		}
		result = claims.Evaluate(userinfo, spec, claims.WithLogger(c.logger.Named("claims")))
	}
	st.SetClaimsResult(result)
	if result.HasErrors() {
		c.logger.Error("claims verification returned error codes", "errors", result.Errors())
		c.metrics.IncrementClaimErrors(result.Errors())
	}

	eligibility := st.EligibilityClaim()
	if eligibility != "" && result.Contains(eligibility) {
		t.outcome = metrics.OutcomeSuccess
		return oidc.NewRedirect(orDefault(st.AuthorizeSuccess(), c.routes.VerifySuccess)), nil
	}
	t.outcome = metrics.OutcomeFail
	c.logger.Debug("eligibility claim not verified", "claim", eligibility)
	return oidc.NewRedirect(orDefault(st.AuthorizeFail(), c.routes.VerifyFail)), nil
}

// Logout clears the session's token and claims result and redirects to the
// client's end session endpoint. The provider sends the user back to the
// session's post logout route, or the post_logout route when it's not set.
func (c *Controller) Logout(ctx context.Context, _ http.ResponseWriter, r *http.Request) (_ *oidc.Response, retErr error) {
	const op = "Controller.Logout"
	ctx, t := c.begin(ctx, TransitionLogout)
	defer func() { c.end(t, retErr) }()

	st, err := sessionState(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := c.resolveClient(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if res.redirect != nil {
		return res.redirect, nil
	}

	token := st.Token()
	st.ClearToken()

	postLogout := redirectURI(r, orDefault(st.PostLogoutRoute(), c.routes.PostLogout))
	c.logger.Debug("end session redirect", "redirect_uri", postLogout)
	resp, err := res.client.EndSessionRedirect(ctx, oidc.IDToken(token), postLogout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

// IsResolutionError returns true when err means the session's client
// couldn't be resolved.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrClientRegistration)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
