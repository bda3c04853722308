package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultTokenURL is the multi-tenant v2.0 token endpoint.
var DefaultTokenURL = microsoft.AzureADEndpoint("common").TokenURL

var defaultScopes = []string{
	"Files.ReadWrite.All",
	"offline_access",
}

// TokenConfig holds what RefreshTokenSource needs to redeem a refresh token.
type TokenConfig struct {
	ClientID     string
	RefreshToken string
	// TokenURL overrides DefaultTokenURL. Tests point it at httptest.
	TokenURL string
	// Cache keeps one expiry-aware token for the process lifetime instead of
	// redeeming the refresh token on every call.
	Cache      bool
	HTTPClient *http.Client
}

// RefreshTokenSource exchanges a long-lived refresh token for a short-lived
// access token using the OAuth2 refresh_token grant.
type RefreshTokenSource struct {
	conf         *oauth2.Config
	refreshToken string
	httpClient   *http.Client
	cache        bool
	logger       *slog.Logger

	mu     sync.Mutex
	shared oauth2.TokenSource // built lazily when cache is set
}

// NewRefreshTokenSource creates a token source for the given credentials.
func NewRefreshTokenSource(cfg TokenConfig, logger *slog.Logger) *RefreshTokenSource {
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := microsoft.AzureADEndpoint("common")
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	// Public client: no secret, client_id travels in the form body.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &RefreshTokenSource{
		conf: &oauth2.Config{
			ClientID: cfg.ClientID,
			Scopes:   defaultScopes,
			Endpoint: endpoint,
		},
		refreshToken: cfg.RefreshToken,
		httpClient:   newTokenHTTPClient(cfg.HTTPClient),
		cache:        cfg.Cache,
		logger:       logger,
	}
}

// Token returns a bearer token. Without caching every call is a full round
// trip to the token endpoint.
func (s *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	tok, err := s.source(ctx).Token()
	if err != nil {
		s.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", classifyTokenError(err)
	}

	s.logger.Debug("token acquired",
		slog.Time("expiry", tok.Expiry),
		slog.Bool("cached", s.cache),
	)

	return tok.AccessToken, nil
}

func (s *RefreshTokenSource) source(ctx context.Context) oauth2.TokenSource {
	seed := &oauth2.Token{RefreshToken: s.refreshToken}

	if !s.cache {
		return s.conf.TokenSource(s.withClient(ctx), seed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The shared source outlives any single invocation, so it must not be
	// bound to a request context.
	if s.shared == nil {
		s.shared = s.conf.TokenSource(s.withClient(context.Background()), seed)
	}

	return s.shared
}

func (s *RefreshTokenSource) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// newTokenHTTPClient copies base and routes its requests through
// scopeTransport. oauth2 leaves scope out of the refresh_token grant and the
// v2.0 endpoint expects it.
func newTokenHTTPClient(base *http.Client) *http.Client {
	client := &http.Client{}
	if base != nil {
		*client = *base
	}

	rt := client.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	client.Transport = &scopeTransport{
		base:  rt,
		scope: strings.Join(defaultScopes, " "),
	}

	return client
}

// scopeTransport adds a scope field to form-encoded POST bodies that lack one.
type scopeTransport struct {
	base  http.RoundTripper
	scope string
}

func (t *scopeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost || req.Body == nil ||
		!strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return t.base.RoundTrip(req)
	}

	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading token request body: %w", err)
	}

	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing token request body: %w", err)
	}

	if form.Get("scope") == "" {
		form.Set("scope", t.scope)
	}

	body := form.Encode()

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(strings.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}

	return t.base.RoundTrip(out)
}

// classifyTokenError maps oauth2 failures onto ErrAuthentication or
// ErrTransport.
func classifyTokenError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		if rErr.Response != nil {
			return fmt.Errorf("%w: token endpoint returned HTTP %d: %w", ErrAuthentication, rErr.Response.StatusCode, err)
		}

		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	var uErr *url.Error
	if errors.As(err, &uErr) {
		return fmt.Errorf("%w: token request: %w", ErrTransport, err)
	}

	// Missing access_token or an unparseable body.
	return fmt.Errorf("%w: %w", ErrAuthentication, err)
}
