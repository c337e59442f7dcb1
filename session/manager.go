// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-identity/sdk/id"
	"github.com/hashicorp/go-hclog"
)

// sessionIDSize is the number of random bytes in a session id.
const sessionIDSize = 32

// Manager is middleware which loads a request's session from a Backend,
// makes it available through FromContext and saves it once the wrapped
// handler returns.
type Manager struct {
	backend    Backend
	cookieName string
	cookiePath string
	secure     bool
	logger     hclog.Logger
}

// NewManager creates a Manager using backend.
//
// Supported options: WithCookieName, WithCookiePath, WithSecureCookie,
// WithLogger
func NewManager(backend Backend, opt ...Option) (*Manager, error) {
	const op = "session.NewManager"
	if backend == nil {
		return nil, fmt.Errorf("%s: backend is nil: %w", op, ErrNilParameter)
	}
	opts := getManagerOpts(opt...)
	return &Manager{
		backend:    backend,
		cookieName: opts.withCookieName,
		cookiePath: opts.withCookiePath,
		secure:     opts.withSecureCookie,
		logger:     opts.withLogger,
	}, nil
}

// Handler wraps next with session loading and saving.
func (m *Manager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var (
			sessionID string
			values    Values
		)
		if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
			v, err := m.backend.Load(ctx, c.Value)
			switch {
			case err == nil:
				sessionID, values = c.Value, v
			case errors.Is(err, ErrNotFound):
				m.logger.Debug("session not found, starting a new one")
			default:
				m.logger.Error("unable to load session, starting a new one", "error", err)
			}
		}
		if sessionID == "" {
			newID, err := id.NewToken(sessionIDSize)
			if err != nil {
				m.logger.Error("unable to create session id", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			sessionID, values = newID, Values{}
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName,
				Value:    sessionID,
				Path:     m.cookiePath,
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		if values == nil {
			values = Values{}
		}

		sw := &saveWriter{ResponseWriter: w, save: func() {
			if err := m.backend.Save(ctx, sessionID, values); err != nil {
				m.logger.Error("unable to save session", "error", err)
			}
		}}
		next.ServeHTTP(sw, r.WithContext(NewContext(ctx, values)))
		sw.commit()
	})
}

// saveWriter saves the session before the response header is written, so
// the client can't follow a redirect before the session is stored.
type saveWriter struct {
	http.ResponseWriter
	save  func()
	saved bool
}

func (w *saveWriter) commit() {
	if !w.saved {
		w.saved = true
		w.save()
	}
}

func (w *saveWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *saveWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the wrapped http.ResponseWriter for http.ResponseController.
func (w *saveWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
