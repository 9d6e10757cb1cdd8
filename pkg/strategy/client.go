package strategy

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jeremyhahn/go-oauth-strategy/internal/log"
)

// HTTPClient defines the interface for making HTTP requests.
// This abstraction allows for testing and custom implementations.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// errTransientStatus marks a response status worth retrying.
var errTransientStatus = errors.New("transient response status")

// newDefaultHTTPClient creates the client used for token, userinfo and
// escalation requests. Certificates are verified unless insecureSkipVerify
// is set explicitly. Go's client puts no ceiling on outgoing header size,
// so very long bearer tokens need no special handling.
func newDefaultHTTPClient(timeout time.Duration, tlsConfig *tls.Config, insecureSkipVerify bool, maxRetries int) *http.Client {
	customTLS := tlsConfig
	if customTLS == nil {
		customTLS = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	} else {
		// Clone to avoid modifying the original
		customTLS = tlsConfig.Clone()
	}

	if insecureSkipVerify {
		customTLS.InsecureSkipVerify = true
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       customTLS,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &retryTransport{
			base:           &loggingTransport{base: transport},
			maxRetries:     maxRetries,
			initialBackoff: 100 * time.Millisecond,
		},
	}
}

// loggingTransport emits one debug event per outbound request. It never
// logs headers or bodies since they carry secrets and tokens.
type loggingTransport struct {
	base http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	statusCode := http.StatusInternalServerError
	if resp != nil {
		statusCode = resp.StatusCode
	}
	evt := log.Debug(req.Context()).
		Str("method", req.Method).
		Str("authority", req.URL.Host).
		Str("path", req.URL.Path).
		Dur("duration", time.Since(start)).
		Int("response-code", statusCode)
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("outbound http-request")
	return resp, err
}

// retryTransport wraps an http.RoundTripper with retry logic for transient failures.
type retryTransport struct {
	base           http.RoundTripper
	maxRetries     int
	initialBackoff time.Duration
}

// RoundTrip implements http.RoundTripper with exponential backoff. The final
// attempt's response is returned as-is even when its status is transient,
// so callers see the provider's body.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.maxRetries <= 0 {
		return t.base.RoundTrip(req)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.maxRetries)), req.Context())

	var (
		resp    *http.Response
		attempt int
	)
	operation := func() error {
		attempt++
		outReq, err := rewind(req, attempt)
		if err != nil {
			return backoff.Permanent(err)
		}

		r, err := t.base.RoundTrip(outReq)
		if err != nil {
			if req.Context().Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		if shouldRetry(r) && attempt <= t.maxRetries {
			_, _ = io.Copy(io.Discard, r.Body)
			r.Body.Close()
			return fmt.Errorf("%w: %d", errTransientStatus, r.StatusCode)
		}

		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Debug(req.Context()).
			Err(err).
			Str("path", req.URL.Path).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("retrying outbound http-request")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// rewind returns the request to send for the given attempt. Attempts after
// the first need a fresh body from GetBody.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 || req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.Body = body
	return out, nil
}

// shouldRetry determines if an HTTP response indicates a transient failure.
func shouldRetry(resp *http.Response) bool {
	if resp == nil {
		return true
	}

	// Retry on server errors (5xx) and rate limiting (429)
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}
