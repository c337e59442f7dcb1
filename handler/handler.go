// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/cap-identity/config"
	"github.com/hashicorp/cap-identity/flow"
	"github.com/hashicorp/cap-identity/oidc"
	"github.com/hashicorp/cap-identity/session"
	"github.com/hashicorp/go-hclog"
)

// StartRoute is the start route fragment, relative to the routes prefix.
const StartRoute = "start"

type transitionFunc func(context.Context, http.ResponseWriter, *http.Request) (*oidc.Response, error)

// Handler serves the routes of a flow.Controller.
type Handler struct {
	ctrl          *flow.Controller
	routes        config.Routes
	page          PageFunc
	logger        hclog.Logger
	clientConfigs config.Repository
	claimsRequest *config.ClaimsRequest
}

// New creates a Handler for ctrl, served on the controller's routes.
//
// Supported options: WithPageFunc, WithLogger, WithStart
func New(ctrl *flow.Controller, opt ...Option) (*Handler, error) {
	const op = "handler.New"
	if ctrl == nil {
		return nil, fmt.Errorf("%s: controller is nil: %w", op, ErrNilParameter)
	}
	opts := getHandlerOpts(opt...)
	if opts.withClientConfigs != nil && opts.withClaimsRequest == nil {
		return nil, fmt.Errorf("%s: start route claims request is nil: %w", op, ErrNilParameter)
	}
	if opts.withClaimsRequest != nil {
		if err := opts.withClaimsRequest.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &Handler{
		ctrl:          ctrl,
		routes:        ctrl.Routes(),
		page:          opts.withPageFunc,
		logger:        opts.withLogger.Named("handler"),
		clientConfigs: opts.withClientConfigs,
		claimsRequest: opts.withClaimsRequest,
	}, nil
}

// Register registers the handler's routes with r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recoverer)
		r.Use(middleware.NoCache)

		r.Get(h.routes.Login, h.transition(flow.TransitionLogin, h.ctrl.Login))
		r.Get(h.routes.Authorize, h.transition(flow.TransitionAuthorize, h.ctrl.Authorize))
		r.Get(h.routes.Logout, h.transition(flow.TransitionLogout, h.ctrl.Logout))
		if h.clientConfigs != nil {
			r.Get(h.routes.Prefix+"/"+StartRoute+"/{client}", h.start)
		}

		r.Get(h.routes.Cancel, h.template(PageCancel))
		r.Get(h.routes.PostLogout, h.template(PagePostLogout))
		r.Get(h.routes.VerifyFail, h.template(PageVerifyFail))
		r.Get(h.routes.VerifySuccess, h.template(PageVerifySuccess))
	})
}

// Router returns a new chi router with the handler's routes registered.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) transition(name string, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r.Context(), w, r)
		if err != nil {
			h.fail(w, r, name, err)
			return
		}
		resp.Write(w)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, name string, err error) {
	logger := h.logger.With("transition", name, "error", err)
	if flow.IsResolutionError(err) {
		logger.Error("client configuration error")
	} else {
		logger.Error("transition failed")
	}
	h.page(w, r, Page{Name: PageError, Status: http.StatusInternalServerError})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "client")
	cfg, err := h.clientConfigs.LookupByName(r.Context(), name)
	switch {
	case errors.Is(err, config.ErrNotFound):
		h.logger.Debug("unknown client", "client", name)
		h.page(w, r, Page{Name: PageNotFound, Status: http.StatusNotFound})
		return
	case err != nil:
		h.fail(w, r, flow.TransitionStart, err)
		return
	}
	resp, err := h.ctrl.Start(r.Context(), r, cfg, h.claimsRequest)
	if err != nil {
		h.fail(w, r, flow.TransitionStart, err)
		return
	}
	resp.Write(w)
}

func (h *Handler) template(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := Page{Name: name, Status: http.StatusOK}
		if name == PageVerifySuccess || name == PageVerifyFail {
			if store, ok := session.FromContext(r.Context()); ok {
				page.Claims = sortedKeys(session.New(store).ClaimsResult().Verified())
			}
		}
		h.page(w, r, page)
	}
}
