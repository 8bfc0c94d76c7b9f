package myq

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"github.com/cenkalti/backoff/v4"
)

// serverErrorCodes are the status codes treated as server-side transient
// failures. 521 and 522 are Cloudflare-specific origin errors the myQ
// infrastructure occasionally surfaces.
var serverErrorCodes = map[int]bool{
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
	521:                            true,
	522:                            true,
}

// retrieveParams describes one logical request for the request executor.
type retrieveParams struct {
	method      string
	url         string
	body        []byte
	contentType string
	header      http.Header

	// bearer attaches the session's access token.
	bearer bool

	// noRedirect issues the request in manual-redirect mode so the caller
	// can observe Location headers, as the login flow requires.
	noRedirect bool

	// raw disables response classification: the response is returned as-is
	// regardless of status and never retried. Used for the login flow
	// steps whose "failure" statuses are meaningful.
	raw bool
}

// retrieve issues one logical request with region failover and bounded
// retries. It returns the final response and its body; the response body
// has already been read and closed.
//
// Outcomes are classified per the myQ service's observed behavior:
// successes and redirects pass through; 403 is a terminal
// ErrDeviceUnavailable; 400/401, 429, 5xx, and transport failures are
// retried up to the retry budget, rotating regions from the second attempt
// onward; anything else is a terminal APIError.
func (c *Client) retrieve(ctx context.Context, p retrieveParams) (*http.Response, []byte, error) {
	var (
		resp    *http.Response
		body    []byte
		attempt int
	)

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(c.retryInterval), uint64(c.retryMax)), ctx)

	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			region := c.region.advance()
			c.logger.V(1).Info("retrying request in new region",
				"attempt", attempt, "region", regionLabel(region))
		}

		var attemptErr error
		resp, body, attemptErr = c.doAttempt(ctx, p)
		if attemptErr == nil {
			return nil
		}
		if !IsTransient(attemptErr) {
			return backoff.Permanent(attemptErr)
		}
		c.logger.V(1).Info("request attempt failed", "attempt", attempt,
			"url", p.url, "reason", attemptErr.Error())
		return attemptErr
	}, policy)

	if err != nil {
		if IsTransient(err) {
			c.logger.Error(err, "request failed after exhausting retries",
				"url", p.url, "attempts", attempt)
		}
		return nil, nil, err
	}

	if attempt > 1 {
		c.logger.Info("request succeeded after region switch",
			"attempts", attempt, "region", regionLabel(c.region.current()))
	}
	return resp, body, nil
}

// doAttempt issues a single attempt of the request, applying the active
// region to the hostname, and classifies the outcome.
func (c *Client) doAttempt(ctx context.Context, p retrieveParams) (*http.Response, []byte, error) {
	u, err := url.Parse(p.url)
	if err != nil {
		return nil, nil, fmt.Errorf("myq: invalid request URL %q: %w", p.url, err)
	}
	u.Host = applyRegion(u.Host, c.region.current())

	var reqBody io.Reader
	if p.body != nil {
		reqBody = bytes.NewReader(p.body)
	}

	req, err := http.NewRequestWithContext(ctx, p.method, u.String(), reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("myq: failed to create request: %w", err)
	}

	for key, values := range p.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if p.contentType != "" {
		req.Header.Set("Content-Type", p.contentType)
	}
	if p.bearer {
		if c.tokens == nil || c.tokens.AccessToken == "" {
			return nil, nil, ErrNotAuthenticated
		}
		req.Header.Set("Authorization", c.tokens.TokenType+" "+c.tokens.AccessToken)
	}

	httpClient := c.httpClient
	if p.noRedirect {
		httpClient = c.authClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, &transientError{kind: describeTransportError(err), err: err}
	}
	defer resp.Body.Close()

	c.lastStatus = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &transientError{kind: "failed to read response body", err: err}
	}

	if p.raw {
		return resp, body, nil
	}

	return resp, body, c.classifyStatus(resp.StatusCode, body)
}

// classifyStatus decides whether a status terminates the request, passes
// through, or is a candidate for retry.
func (c *Client) classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil

	case status == http.StatusMovedPermanently, status == http.StatusFound,
		status == http.StatusSeeOther, status == http.StatusTemporaryRedirect,
		status == http.StatusPermanentRedirect:
		return nil

	case status == http.StatusBadRequest, status == http.StatusUnauthorized:
		// Either bad credentials or transient trouble on the API side; a
		// bounded retry disambiguates the two.
		return &transientError{
			kind: "credentials rejected or transient API trouble",
			err:  &APIError{StatusCode: status, Message: http.StatusText(status)},
		}

	case status == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrDeviceUnavailable, status)

	case status == http.StatusTooManyRequests:
		c.logger.Info("rate limited by the myQ API; expect an extended lockout window before requests succeed again")
		return &transientError{kind: "rate limited", err: ErrRateLimited}

	case serverErrorCodes[status]:
		return &transientError{
			kind: "server-side error",
			err:  &APIError{StatusCode: status, Message: http.StatusText(status)},
		}

	default:
		err := &APIError{StatusCode: status, Message: "unrecognized API error", Body: truncatePreview(body)}
		c.logger.Error(err, "unrecognized API error", "status", status)
		return err
	}
}

// describeTransportError names the transport failure kind for diagnostics.
func describeTransportError(err error) string {
	var (
		dnsErr  *net.DNSError
		certErr *tls.CertificateVerificationError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || IsTimeout(err):
		return "request timed out"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, syscall.ECONNRESET):
		return "connection reset by peer"
	case errors.As(err, &dnsErr):
		return "DNS lookup failed"
	case errors.As(err, &certErr), errors.As(err, &x509.UnknownAuthorityError{}):
		return "TLS certificate verification failed"
	default:
		return "transport error"
	}
}

// regionLabel names a region suffix for log output.
func regionLabel(suffix string) string {
	if suffix == "" {
		return "default"
	}
	return suffix
}

// truncatePreview returns a truncated string for error messages.
func truncatePreview(data []byte) string {
	s := string(data)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// get issues an authenticated GET through the request executor.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	_, body, err := c.retrieve(ctx, retrieveParams{
		method: http.MethodGet,
		url:    url,
		bearer: true,
		header: http.Header{"Accept": []string{"application/json"}},
	})
	return body, err
}

// put issues an authenticated bodyless PUT through the request executor.
func (c *Client) put(ctx context.Context, url string) error {
	_, _, err := c.retrieve(ctx, retrieveParams{
		method: http.MethodPut,
		url:    url,
		bearer: true,
	})
	return err
}
