package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// DefaultTimeout applies to every Keycloak request made through NewHTTPClient.
const DefaultTimeout = 30 * time.Second

// Client sends JSON requests to Keycloak.
type Client struct {
	HTTP   *http.Client
	Header http.Header // sent with every request
}

// NewHTTPClient returns an instrumented client. When ts is not nil every request
// carries a bearer token from ts.
func NewHTTPClient(ctx context.Context, base *http.Client, ts oauth2.TokenSource) *http.Client {
	if base == nil {
		base = &http.Client{Timeout: DefaultTimeout}
	}

	instrumented := &http.Client{
		Transport:     InstrumentedTransport(base.Transport),
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}

	if ts == nil {
		return instrumented
	}

	c := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, instrumented), ts)
	c.Timeout = instrumented.Timeout

	return c
}

// NewClient returns a JSON client authenticated with ts.
func NewClient(ctx context.Context, base *http.Client, ts oauth2.TokenSource) *Client {
	return &Client{HTTP: NewHTTPClient(ctx, base, ts)}
}

// DoJSON sends in as JSON (when not nil) and decodes the response into out (when not nil).
// Non-2xx responses are returned as *ProviderError.
func (c *Client) DoJSON(ctx context.Context, method, rawURL string, in, out any) error {
	var body io.Reader

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}

		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

// PostForm posts a form with the given bearer token instead of the client's own.
func (c *Client) PostForm(ctx context.Context, rawURL, bearer string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+bearer)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	for k, values := range c.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	log.Info().Msgf("%s %s", req.Method, req.URL.Redacted())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Redacted())
	}

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Info().Msgf("Keycloak response status code: %d", resp.StatusCode)
		log.Info().Msgf("Keycloak response body: %s", respBody)

		return &ProviderError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err = json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "failed to decode response of %s %s", req.Method, req.URL.Redacted())
	}

	return nil
}
