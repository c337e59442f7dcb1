// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestProvider is a local identity provider which makes writing relying party
// tests much easier. It serves discovery, /authorize, /token, /userinfo,
// /certs and /end_session over TLS.
type TestProvider struct {
	httpServer *httptest.Server
	client     *http.Client
	caCert     string

	jwks *jose.JSONWebKeySet

	mu              sync.Mutex
	clientID        string
	clientSecret    string
	replySubject    string
	replyUserinfo   map[string]any
	replyExpiry     time.Duration
	customClaims    map[string]any
	omitIDToken     bool
	disableUserInfo bool
	disableEndSess  bool

	// pending authorizations by code
	codes map[string]testAuthRequest

	lastAuthorize  url.Values
	lastEndSession url.Values

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T
}

type testAuthRequest struct {
	nonce       string
	challenge   string
	redirectURI string
}

// testProviderOptions is the set of available options for StartTestProvider
type testProviderOptions struct {
	withPort int
}

func testProviderDefaults() testProviderOptions {
	return testProviderOptions{}
}

func getTestProviderOpts(opt ...Option) testProviderOptions {
	opts := testProviderDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTestPort provides an optional port for the TestProvider. A random free
// port is used by default.
func WithTestPort(port int) Option {
	return func(o interface{}) {
		if o, ok := o.(*testProviderOptions); ok {
			o.withPort = port
		}
	}
}

// StartTestProvider creates a disposable TestProvider which is stopped when
// the test completes.
//
// Supported options: WithTestPort
func StartTestProvider(t *testing.T, opt ...Option) *TestProvider {
	t.Helper()
	require := require.New(t)
	opts := getTestProviderOpts(opt...)

	clientID, err := uuid.GenerateUUID()
	require.NoError(err)
	p := &TestProvider{
		clientID:     clientID,
		replySubject: "alice@example.com",
		replyUserinfo: map[string]any{
			"sub": "alice@example.com",
		},
		replyExpiry: 5 * time.Minute,
		codes:       map[string]testAuthRequest{},
		t:           t,
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	if opts.withPort != 0 {
		p.httpServer = httptestNewUnstartedServerWithPort(t, p, opts.withPort)
	} else {
		p.httpServer = httptest.NewUnstartedServer(p)
	}
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	p.client = p.httpServer.Client()
	p.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the base URL (and issuer) of the test provider.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns an http client which trusts the test provider and
// doesn't follow redirects.
func (p *TestProvider) HTTPClient() *http.Client { return p.client }

// SigningKeys returns the test provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// SetClientCreds configures the client id and optional secret the provider
// accepts. The default client id is a random UUID with no secret.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// ClientCreds returns the client id and secret the provider accepts.
func (p *TestProvider) ClientCreds() (clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID, p.clientSecret
}

// SetUserinfo configures the claims returned by /userinfo.
func (p *TestProvider) SetUserinfo(claims map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = claims
}

// SetCustomClaims lets you set extra claims in the issued id_token.
func (p *TestProvider) SetCustomClaims(claims map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = claims
}

// SetExpectedExpiry configures how long issued id_tokens are valid.
func (p *TestProvider) SetExpectedExpiry(exp time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyExpiry = exp
}

// OmitIDTokens forces an error state where /token doesn't return an
// id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// DisableUserInfo makes /userinfo return 404 and omits it from discovery.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// DisableEndSession omits the end_session_endpoint from discovery.
func (p *TestProvider) DisableEndSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableEndSess = true
}

// LastAuthorizeRequest returns the query of the last /authorize request.
func (p *TestProvider) LastAuthorizeRequest() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuthorize
}

// LastEndSessionRequest returns the query of the last /end_session request.
func (p *TestProvider) LastEndSessionRequest() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastEndSession
}

// Authorize follows an authorization redirect to the test provider, as a
// user agent would, and returns the callback URL the provider redirected
// back to.
func (p *TestProvider) Authorize(t *testing.T, authURL string) *url.URL {
	t.Helper()
	require := require.New(t)
	resp, err := p.client.Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc, err := resp.Location()
	require.NoError(err)
	return loc
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)
	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}
	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(&body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.t.Helper()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		reply := struct {
			Issuer             string   `json:"issuer"`
			AuthEndpoint       string   `json:"authorization_endpoint"`
			TokenEndpoint      string   `json:"token_endpoint"`
			JWKSURI            string   `json:"jwks_uri"`
			UserinfoEndpoint   string   `json:"userinfo_endpoint,omitempty"`
			EndSessionEndpoint string   `json:"end_session_endpoint,omitempty"`
			SigningAlgs        []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:             p.Addr(),
			AuthEndpoint:       p.Addr() + "/authorize",
			TokenEndpoint:      p.Addr() + "/token",
			JWKSURI:            p.Addr() + "/certs",
			UserinfoEndpoint:   p.Addr() + "/userinfo",
			EndSessionEndpoint: p.Addr() + "/end_session",
			SigningAlgs:        []string{string(ES256)},
		}
		if p.disableUserInfo {
			reply.UserinfoEndpoint = ""
		}
		if p.disableEndSess {
			reply.EndSessionEndpoint = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/authorize":
		qv := req.URL.Query()
		p.lastAuthorize = qv
		switch {
		case qv.Get("response_type") != "code":
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		case !strings.Contains(" "+qv.Get("scope")+" ", " openid "):
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
			return
		case qv.Get("client_id") != p.clientID:
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "")
			return
		case qv.Get("state") == "":
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		case qv.Get("redirect_uri") == "":
			w.WriteHeader(http.StatusBadRequest)
			return
		case qv.Get("code_challenge_method") != "S256" || qv.Get("code_challenge") == "":
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing pkce challenge")
			return
		}
		code, err := NewID("code")
		require.NoError(p.t, err)
		p.codes[code] = testAuthRequest{
			nonce:       qv.Get("nonce"),
			challenge:   qv.Get("code_challenge"),
			redirectURI: qv.Get("redirect_uri"),
		}
		redirectURI := qv.Get("redirect_uri") +
			"?state=" + url.QueryEscape(qv.Get("state")) +
			"&code=" + url.QueryEscape(code)
		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/certs":
		_ = p.writeJSON(w, p.jwks)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		clientID, clientSecret, ok := req.BasicAuth()
		if !ok {
			clientID, clientSecret = req.FormValue("client_id"), req.FormValue("client_secret")
		}
		ar, found := p.codes[req.FormValue("code")]
		delete(p.codes, req.FormValue("code"))
		switch {
		case req.FormValue("grant_type") != "authorization_code":
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		case clientID != p.clientID || clientSecret != p.clientSecret:
			p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "unknown client")
			return
		case !found:
			p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
			return
		case req.FormValue("redirect_uri") != ar.redirectURI:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri doesn't match")
			return
		case s256Challenge(req.FormValue("code_verifier")) != ar.challenge:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "pkce verification failed")
			return
		}

		now := time.Now()
		stdClaims := jwt.Claims{
			Subject:   p.replySubject,
			Issuer:    p.Addr(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			Expiry:    jwt.NewNumericDate(now.Add(p.replyExpiry)),
			Audience:  jwt.Audience{p.clientID},
		}
		privateClaims := map[string]any{}
		for k, v := range p.customClaims {
			privateClaims[k] = v
		}
		if ar.nonce != "" {
			privateClaims["nonce"] = ar.nonce
		}
		accessToken, err := NewID("at")
		require.NoError(p.t, err)
		reply := struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int    `json:"expires_in"`
			IDToken     string `json:"id_token,omitempty"`
		}{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   int(p.replyExpiry.Seconds()),
		}
		if !p.omitIDToken {
			reply.IDToken = TestSignJWT(p.t, p.ecdsaPrivateKey, stdClaims, privateClaims)
		}
		_ = p.writeJSON(w, &reply)

	case "/userinfo":
		if p.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = p.writeJSON(w, p.replyUserinfo)

	case "/end_session":
		p.lastEndSession = req.URL.Query()
		if u := req.URL.Query().Get("post_logout_redirect_uri"); u != "" {
			http.Redirect(w, req, u, http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				Algorithm: string(ES256),
				Use:       "sig",
			},
		},
	}
}

// httptestNewUnstartedServerWithPort is roughly the same as
// httptest.NewUnstartedServer() but allows the caller to explicitly choose the
// port.
func httptestNewUnstartedServerWithPort(t *testing.T, handler http.Handler, port int) *httptest.Server {
	t.Helper()
	require := require.New(t)
	require.NotEmpty(port)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	require.NoError(err)

	return &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: handler},
	}
}
