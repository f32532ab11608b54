package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultAPIBaseURL serves the file management and account endpoints.
	DefaultAPIBaseURL = "https://pan.baidu.com"
	// DefaultUploadBaseURL serves the chunk upload endpoint.
	DefaultUploadBaseURL = "https://d.pcs.baidu.com"
	// DefaultCallTimeout bounds a single request, including reading the response.
	DefaultCallTimeout = 2 * time.Minute
)

const redacted = "[REDACTED]"

// ClientParams ...
type ClientParams struct {
	APIBaseURL    string
	UploadBaseURL string
	// CallTimeout bounds every request. Zero disables the bound.
	CallTimeout time.Duration
	// HTTPClient is used for the round trips. If nil, DefaultHTTPClient is used.
	HTTPClient *http.Client
}

// Client talks to the netdisk provider. It holds no per-upload state and is safe to
// share between concurrent uploads.
type Client struct {
	httpClient    *retryablehttp.Client
	apiBaseURL    string
	uploadBaseURL string
	callTimeout   time.Duration
	logger        log.Logger
}

// NewClient creates a Client making exactly one attempt per request.
func NewClient(params ClientParams, logger log.Logger) *Client {
	httpClient := retryhttp.NewClient(logger)
	httpClient.RetryMax = 0
	httpClient.CheckRetry = neverRetry
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	// Request URLs carry the access token, requests are logged by the client itself with the token redacted.
	httpClient.Logger = nil
	if params.HTTPClient != nil {
		httpClient.HTTPClient = params.HTTPClient
	} else {
		httpClient.HTTPClient = DefaultHTTPClient()
	}

	apiBaseURL := params.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	uploadBaseURL := params.UploadBaseURL
	if uploadBaseURL == "" {
		uploadBaseURL = DefaultUploadBaseURL
	}

	return &Client{
		httpClient:    httpClient,
		apiBaseURL:    strings.TrimSuffix(apiBaseURL, "/"),
		uploadBaseURL: strings.TrimSuffix(uploadBaseURL, "/"),
		callTimeout:   params.CallTimeout,
		logger:        logger,
	}
}

// DefaultHTTPClient creates an HTTP client tuned for sequential chunk uploads to one host.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		// No timeout - per call timeouts are handled via context
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxConnsPerHost:     4,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}

// CloseIdleConnections closes idle connections in the HTTP client.
func (c *Client) CloseIdleConnections() {
	if transport, ok := c.httpClient.HTTPClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func neverRetry(ctx context.Context, _ *http.Response, _ error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

// do sends req and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, op, token string, req *retryablehttp.Request, dumpBody bool, out interface{}) error {
	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	req = req.WithContext(callCtx)

	dump, err := httputil.DumpRequest(req.Request, dumpBody)
	if err != nil {
		c.logger.Warnf("error while dumping request: %s", err)
	}
	c.logger.Debugf("%s request dump: %s", op, redact(string(dump), token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, op, redactError(err, token))
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, op, fmt.Errorf("read response body: %w", err))
	}
	c.logger.Debugf("%s response: HTTP %d %s", op, resp.StatusCode, string(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Errorf(KindProtocol, op, "HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindProtocol, Op: op, Detail: "decode response", Err: err}
	}

	return nil
}

// redact hides token in s, both raw and in the query-escaped form it takes in request URLs.
func redact(s, token string) string {
	if token == "" {
		return s
	}
	s = strings.ReplaceAll(s, token, redacted)
	return strings.ReplaceAll(s, url.QueryEscape(token), redacted)
}

func redactError(err error, token string) error {
	if token == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, token) && !strings.Contains(msg, url.QueryEscape(token)) {
		return err
	}
	return redactedError{msg: redact(err.Error(), token), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.err }
