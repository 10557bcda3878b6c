// Package httpclient provides a small HTTP client for JSON APIs with typed
// transport errors and Server-Sent Events streaming support.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kbukum/uniai/httpclient/sse"
)

// Client is an HTTP client bound to a base URL with default auth and headers.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a client from the given config.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	tlsConfig, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}, nil
}

// Do executes a request and reads the full response body. Responses with
// status >= 400 are returned alongside a classified *Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(err)
		}
		return nil, NewConnectionError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewConnectionError(fmt.Errorf("reading response body: %w", err))
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       body,
	}

	if classErr := ClassifyStatusCode(resp.StatusCode, body); classErr != nil {
		return result, classErr
	}

	return result, nil
}

// DoStream executes a request and returns the response as a stream. The
// caller must Close the returned StreamResponse. The client's Timeout is not
// applied; use the context to bound the stream's lifetime.
func (c *Client) DoStream(ctx context.Context, req *Request) (*StreamResponse, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	// A client-level timeout would cut long-lived streams short, so stream
	// requests share the transport but not the timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	resp, err := streamClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(err)
		}
		return nil, NewConnectionError(err)
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, ClassifyStatusCode(resp.StatusCode, body)
	}

	stream := &StreamResponse{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		rawResp:    resp,
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		stream.SSE = sse.NewReader(resp.Body)
	} else {
		stream.Body = resp.Body
	}

	return stream, nil
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	fullURL, err := c.resolveURL(req.Path)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, &Error{Code: ErrCodeValidation, Message: "building request", Err: err}
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	auth := c.config.Auth
	if req.Auth != nil {
		auth = req.Auth
	}
	if auth != nil {
		auth.apply(httpReq)
	}

	return httpReq, nil
}

func (c *Client) resolveURL(path string) (string, error) {
	if c.config.BaseURL == "" {
		if path == "" {
			return "", &Error{Code: ErrCodeValidation, Message: "no URL: base URL and path both empty"}
		}
		return path, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}

	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", &Error{Code: ErrCodeValidation, Message: "invalid base URL", Err: err}
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return base.String(), nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case io.Reader:
		return b, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", &Error{Code: ErrCodeValidation, Message: "encoding request body", Err: err}
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
