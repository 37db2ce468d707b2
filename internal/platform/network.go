package platform

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Network error codes, grounded on ErrorCode in original_source's
// error.py. These travel to the guest as the error_code field of the err
// reply to an http-call-head message, never as a Go error type on their own.
const (
	NetworkErrorGeneric           = "network:error"
	NetworkErrorConnectionRefused = "network:ECONNREFUSED"
	NetworkErrorHostNotFound      = "network:ENOTFOUND"
	NetworkErrorInvalidURL        = "network:invalid_url"
)

// NetworkError classifies a failed fetch the way PythonNetwork.fetch
// classifies urllib3's MaxRetryError before handing it to the guest.
type NetworkError struct {
	Code    string
	Message string
}

func (e *NetworkError) Error() string { return e.Code + ": " + e.Message }

// Response is a fetched HTTP response, ready to be streamed to the guest.
type Response struct {
	Status  int
	Headers http.Header
	Body    io.ReadCloser
}

// DeferredResponse mirrors PythonNetwork's DeferredHttpResponse: Fetch
// never returns a synchronous error for network failures; the outcome is
// read through Resolve, so http-call always succeeds and a failure
// surfaces at http-call-head. HTTPNetwork.Fetch does not postpone the
// request itself: it sends the request and waits for the response before
// returning, classifies any failure there, and Resolve only returns the
// stored response or error.
type DeferredResponse struct {
	resp     *http.Response
	resolved *Response
	err      error
}

func (d *DeferredResponse) Resolve() (*Response, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.resolved != nil {
		return d.resolved, nil
	}
	return &Response{Status: d.resp.StatusCode, Headers: d.resp.Header, Body: d.resp.Body}, nil
}

// NewResolvedResponse builds a DeferredResponse around an already-known
// Response, for Network implementations (e.g. test doubles) that don't
// need to wrap a real *http.Response.
func NewResolvedResponse(resp *Response) *DeferredResponse {
	return &DeferredResponse{resolved: resp}
}

// NewFailedResponse builds a DeferredResponse that resolves to err, for
// Network implementations that classify failures before Fetch returns.
func NewFailedResponse(err error) *DeferredResponse {
	return &DeferredResponse{err: err}
}

// Network is the injected HTTP capability (spec's http-call / http-call-head
// message kinds).
type Network interface {
	Fetch(ctx context.Context, method, rawURL string, headers http.Header, body []byte) *DeferredResponse
}

// HTTPNetwork is the default Network, backed by retryablehttp with the
// same retry budget as PythonNetwork's urllib3.Retry(connect=2, read=2,
// redirect=3): RetryMax covers the connect/read retry count, redirect
// handling is net/http's default (10 redirects) since retryablehttp
// does not expose a separate redirect budget.
type HTTPNetwork struct {
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewHTTPNetwork constructs an HTTPNetwork. logger receives a
// diagnostic line for every fetch that fails after retries are
// exhausted; pass nil to disable it.
func NewHTTPNetwork(logger *zap.Logger) *HTTPNetwork {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	return &HTTPNetwork{client: client, logger: logger}
}

func (n *HTTPNetwork) Fetch(ctx context.Context, method, rawURL string, headers http.Header, body []byte) *DeferredResponse {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		n.logger.Warn("invalid fetch URL", zap.String("url", rawURL))
		return &DeferredResponse{err: &NetworkError{Code: NetworkErrorInvalidURL, Message: rawURL}}
	}

	var bodyReader io.ReadSeeker
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		n.logger.Warn("failed to build request", zap.String("url", rawURL), zap.Error(err))
		return &DeferredResponse{err: &NetworkError{Code: NetworkErrorInvalidURL, Message: err.Error()}}
	}
	req.Header = headers

	resp, err := n.client.Do(req)
	if err != nil {
		classified := classifyFetchError(err)
		n.logger.Warn("fetch failed", zap.String("method", method), zap.String("url", rawURL), zap.Error(classified))
		return &DeferredResponse{err: classified}
	}

	return &DeferredResponse{resp: resp}
}

func classifyFetchError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return &NetworkError{Code: NetworkErrorHostNotFound, Message: err.Error()}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &NetworkError{Code: NetworkErrorConnectionRefused, Message: err.Error()}
	}
	return &NetworkError{Code: NetworkErrorGeneric, Message: err.Error()}
}
