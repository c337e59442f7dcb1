// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/cap-identity/config"
	"github.com/hashicorp/cap-identity/flow"
	"github.com/hashicorp/cap-identity/oidc"
	"github.com/hashicorp/cap-identity/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yhat/scrape"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type testServer struct {
	*httptest.Server
	client *http.Client
	tp     *oidc.TestProvider
	routes config.Routes
}

func startTestServer(t *testing.T, opt ...Option) *testServer {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()
	tp := oidc.StartTestProvider(t)

	clientConfigs := config.NewMemoryStore()
	_, err := clientConfigs.Create(ctx, oidc.TestClientConfig(t, tp, "test-provider"))
	require.NoError(err)
	routes := config.DefaultRoutes()
	ctrl, err := flow.New(oidc.TestRegistry(t, tp), clientConfigs, routes)
	require.NoError(err)

	req, err := config.NewClaimsRequest("openid profile", "claim1", routes, config.WithExtraClaims("claim2"))
	require.NoError(err)
	h, err := New(ctrl, append([]Option{WithStart(clientConfigs, req)}, opt...)...)
	require.NoError(err)

	backend := session.NewMemoryBackend()
	t.Cleanup(backend.Close)
	mgr, err := session.NewManager(backend)
	require.NoError(err)
	r := chi.NewRouter()
	r.Use(mgr.Handler)
	h.Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(err)
	return &testServer{
		Server: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		tp:     tp,
		routes: routes,
	}
}

func (s *testServer) get(t *testing.T, target string) *http.Response {
	t.Helper()
	if strings.HasPrefix(target, "/") {
		target = s.URL + target
	}
	resp, err := s.client.Get(target)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func parsePage(t *testing.T, resp *http.Response) *html.Node {
	t.Helper()
	root, err := html.Parse(resp.Body)
	require.NoError(t, err)
	return root
}

func TestHandler_flow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		userinfo   map[string]any
		wantRoute  func(routes config.Routes) string
		wantPage   string
		wantClaims []string
	}{
		{
			name:       "verified",
			userinfo:   map[string]any{"claim1": "1", "claim2": "value"},
			wantRoute:  func(routes config.Routes) string { return routes.VerifySuccess },
			wantPage:   PageVerifySuccess,
			wantClaims: []string{"claim1", "claim2"},
		},
		{
			name:       "rejected",
			userinfo:   map[string]any{"claim1": "false", "claim2": "true"},
			wantRoute:  func(routes config.Routes) string { return routes.VerifyFail },
			wantPage:   PageVerifyFail,
			wantClaims: []string{"claim2"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			s := startTestServer(t)
			s.tp.SetUserinfo(tt.userinfo)

			resp := s.get(t, s.routes.Prefix+"/start/test-provider")
			require.Equal(http.StatusFound, resp.StatusCode)
			assert.Equal(s.routes.Login, resp.Header.Get("Location"))

			resp = s.get(t, s.routes.Login)
			require.Equal(http.StatusFound, resp.StatusCode)
			assert.Contains(resp.Header.Get("Cache-Control"), "no-store")
			callback := s.tp.Authorize(t, resp.Header.Get("Location"))
			assert.Equal("https", callback.Scheme)
			callback.Scheme = "http"

			resp = s.get(t, callback.String())
			require.Equal(http.StatusFound, resp.StatusCode)
			assert.Equal(tt.wantRoute(s.routes), resp.Header.Get("Location"))

			resp = s.get(t, tt.wantRoute(s.routes))
			require.Equal(http.StatusOK, resp.StatusCode)
			assert.Equal("text/html; charset=utf-8", resp.Header.Get("Content-Type"))
			root := parsePage(t, resp)
			_, ok := scrape.Find(root, scrape.ById(tt.wantPage))
			assert.True(ok)
			var claims []string
			for _, li := range scrape.FindAll(root, scrape.ByTag(atom.Li)) {
				claims = append(claims, scrape.Text(li))
			}
			assert.Equal(tt.wantClaims, claims)

			resp = s.get(t, s.routes.Logout)
			require.Equal(http.StatusFound, resp.StatusCode)
			endSession, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(err)
			assert.Equal(s.tp.Addr()+"/end_session", endSession.Scheme+"://"+endSession.Host+endSession.Path)
			wantPostLogout := "https://" + strings.TrimPrefix(s.URL, "http://") + s.routes.PostLogout
			assert.Equal(wantPostLogout, endSession.Query().Get("post_logout_redirect_uri"))

			// claims are cleared by logout
			resp = s.get(t, tt.wantRoute(s.routes))
			root = parsePage(t, resp)
			assert.Empty(scrape.FindAll(root, scrape.ByTag(atom.Li)))
		})
	}
}

func TestHandler_errors(t *testing.T) {
	t.Parallel()
	t.Run("no-client-config", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := startTestServer(t)
		for _, route := range []string{s.routes.Login, s.routes.Authorize, s.routes.Logout} {
			resp := s.get(t, route)
			require.Equalf(http.StatusInternalServerError, resp.StatusCode, "route %s", route)
			_, ok := scrape.Find(parsePage(t, resp), scrape.ById(PageError))
			assert.Truef(ok, "route %s", route)
		}
	})
	t.Run("unknown-client", func(t *testing.T) {
		assert := assert.New(t)
		s := startTestServer(t)
		resp := s.get(t, s.routes.Prefix+"/start/unknown")
		assert.Equal(http.StatusNotFound, resp.StatusCode)
		_, ok := scrape.Find(parsePage(t, resp), scrape.ById(PageNotFound))
		assert.True(ok)
	})
	t.Run("callback-without-state", func(t *testing.T) {
		assert := assert.New(t)
		s := startTestServer(t)
		resp := s.get(t, s.routes.Prefix+"/start/test-provider")
		assert.Equal(http.StatusFound, resp.StatusCode)
		resp = s.get(t, s.routes.Authorize+"?state=st_1&code=code_1")
		assert.Equal(http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestHandler_templates(t *testing.T) {
	t.Parallel()
	var (
		mu  sync.Mutex
		got []Page
	)
	s := startTestServer(t, WithPageFunc(func(w http.ResponseWriter, _ *http.Request, page Page) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, page)
		w.WriteHeader(http.StatusTeapot)
	}))
	for _, route := range []string{s.routes.Cancel, s.routes.PostLogout, s.routes.VerifyFail, s.routes.VerifySuccess} {
		resp := s.get(t, route)
		assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Page{
		{Name: PageCancel, Status: http.StatusOK},
		{Name: PagePostLogout, Status: http.StatusOK},
		{Name: PageVerifyFail, Status: http.StatusOK, Claims: []string{}},
		{Name: PageVerifySuccess, Status: http.StatusOK, Claims: []string{}},
	}, got)
}

func TestNew(t *testing.T) {
	t.Parallel()
	routes := config.DefaultRoutes()
	ctrl, err := flow.New(oidc.FactoryFunc(func(context.Context, *config.ClientConfig, string, string) (oidc.Client, error) {
		return nil, nil
	}), config.NewMemoryStore(), routes)
	require.NoError(t, err)

	tests := []struct {
		name      string
		ctrl      *flow.Controller
		opt       []Option
		wantErr   bool
		wantIsErr error
	}{
		{name: "valid", ctrl: ctrl},
		{name: "nil-controller", wantErr: true, wantIsErr: ErrNilParameter},
		{
			name:      "start-without-request",
			ctrl:      ctrl,
			opt:       []Option{WithStart(config.NewMemoryStore(), nil)},
			wantErr:   true,
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "start-with-invalid-request",
			ctrl:      ctrl,
			opt:       []Option{WithStart(config.NewMemoryStore(), &config.ClaimsRequest{})},
			wantErr:   true,
			wantIsErr: config.ErrInvalidClaimsRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			h, err := New(tt.ctrl, tt.opt...)
			if tt.wantErr {
				require.Error(err)
				assert.Nil(h)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.NotNil(h.Router())
		})
	}
}

func TestDefaultPage(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	w := httptest.NewRecorder()
	DefaultPage(w, httptest.NewRequest(http.MethodGet, "/", nil), Page{
		Name:   PageVerifySuccess,
		Claims: []string{"<script>", "claim1"},
	})
	assert.Equal(http.StatusOK, w.Code)
	root, err := html.Parse(w.Body)
	require.NoError(err)
	title, ok := scrape.Find(root, scrape.ByTag(atom.Title))
	require.True(ok)
	assert.Equal("Verification succeeded", scrape.Text(title))
	items := scrape.FindAll(root, scrape.ByTag(atom.Li))
	require.Len(items, 2)
	assert.Equal("<script>", scrape.Text(items[0]))
	_, ok = scrape.Find(root, scrape.ByTag(atom.Script))
	assert.False(ok)
}
