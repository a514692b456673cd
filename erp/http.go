package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ErrUnexpectedResponse wraps a non-success HTTP answer from the ERP.
var ErrUnexpectedResponse = errors.New("erp: unexpected response")

// HTTPAdapter talks to an ERP over JSON/HTTP:
//
//	POST {base}/documents             -> Result
//	GET  {base}/documents/{reference} -> Result
//
// 4xx answers carrying a Result body are business rejections; 5xx and
// transport failures are retried with exponential backoff.
type HTTPAdapter struct {
	base       *url.URL
	client     *http.Client
	apiKey     string
	maxRetries uint
	backoff    func() backoff.BackOff
}

var _ Adapter = (*HTTPAdapter)(nil)

// HTTPOption configures an HTTPAdapter.
type HTTPOption func(*HTTPAdapter)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(a *HTTPAdapter) { a.client = c }
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) HTTPOption {
	return func(a *HTTPAdapter) { a.apiKey = key }
}

// WithMaxRetries bounds attempts per call, including the first.
func WithMaxRetries(n uint) HTTPOption {
	return func(a *HTTPAdapter) {
		if n > 0 {
			a.maxRetries = n
		}
	}
}

// WithRetryInterval sets the initial backoff interval.
func WithRetryInterval(d time.Duration) HTTPOption {
	return func(a *HTTPAdapter) {
		a.backoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = d
			return b
		}
	}
}

// NewHTTPAdapter creates an adapter rooted at baseURL.
func NewHTTPAdapter(baseURL string, opts ...HTTPOption) (*HTTPAdapter, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("erp: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("erp: base url %q must be absolute", baseURL)
	}

	a := &HTTPAdapter{
		base:       u,
		client:     cleanhttp.DefaultPooledClient(),
		maxRetries: 3,
	}
	WithRetryInterval(200 * time.Millisecond)(a)
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// SendInvoice implements Adapter.
func (a *HTTPAdapter) SendInvoice(ctx context.Context, doc *Document) (*Result, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("erp: encode document: %w", err)
	}
	return a.do(ctx, http.MethodPost, a.base.JoinPath("documents").String(), body)
}

// CheckStatus implements Adapter.
func (a *HTTPAdapter) CheckStatus(ctx context.Context, reference string) (*Result, error) {
	if reference == "" {
		return nil, fmt.Errorf("erp: empty reference")
	}
	return a.do(ctx, http.MethodGet, a.base.JoinPath("documents", reference).String(), nil)
}

func (a *HTTPAdapter) do(ctx context.Context, method, target string, body []byte) (*Result, error) {
	op := func() (*Result, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if a.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+a.apiKey)
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer resp.Body.Close()

		return decodeResult(resp)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(a.backoff()),
		backoff.WithMaxTries(a.maxRetries),
	)
}

func decodeResult(resp *http.Response) (*Result, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Status)
	case resp.StatusCode >= 400:
		var res Result
		if json.Unmarshal(raw, &res) != nil || res.Message == "" {
			return nil, backoff.Permanent(fmt.Errorf("%w: %s: %s", ErrUnexpectedResponse, resp.Status, bytes.TrimSpace(raw)))
		}
		res.Success = false
		if res.Status == "" {
			res.Status = StatusRejected
		}
		return &res, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var res Result
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("erp: decode result: %w", err))
		}
		return &res, nil
	}
	return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp.Status))
}
