package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const userAgent = "s3-to-onedrive/1.0"

// TokenSource provides bearer tokens for Graph requests. Implementations may
// hit the network on every call; the client asks once per request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is an HTTP client for the Microsoft Graph API. It handles request
// construction, authentication and error classification. It does not retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a Graph API client.
// baseURL is typically DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// Do executes a request against path relative to the client's base URL.
// The caller closes the response body on success.
func (c *Client) Do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	return c.doURL(ctx, method, c.baseURL+path, contentType, body)
}

// doURL executes a single request against an absolute URL. Non-2xx
// responses are drained and returned as *GraphError.
func (c *Client) doURL(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("graph: creating request: %w", err)
	}

	tok, err := c.token.Token(ctx)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, url, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	c.logger.Warn("request failed",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
	)

	return nil, &GraphError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("request-id"),
		Message:    string(errBody),
		Err:        classifyStatus(resp.StatusCode),
	}
}
