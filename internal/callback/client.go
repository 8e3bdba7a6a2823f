package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// Client delivers reports to a callback URL with PATCH.
type Client struct {
	url        string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient returns a Client retrying with DefaultPolicy and an exponential
// backoff of up to five attempts unless WithHTTPClient overrides it.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &Transport{
				Backoff: &ExponentialBackoff{
					Base:       100 * time.Millisecond,
					Max:        10 * time.Second,
					MaxRetries: 5,
				},
				Policy: DefaultPolicy(),
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send encodes report as JSON and PATCHes it to the callback URL. Any status
// outside 2xx left after retries is an error.
func (c *Client) Send(ctx context.Context, report any) error {
	body, err := json.Marshal(report)
	if err != nil {
		return xerrors.Errorf("failed to encode report: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.url, bytes.NewReader(body))
	if err != nil {
		return xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return xerrors.Errorf("failed to send report: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return xerrors.Errorf("callback responded %s", response.Status)
	}
	return nil
}
