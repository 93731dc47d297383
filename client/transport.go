package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/c360/actionkit/action"
	"github.com/c360/actionkit/errors"
	"github.com/c360/actionkit/pkg/retry"
)

// Transport carries a single action call to the server. Do returns the
// decoded result envelope; a non-nil error means the envelope never
// arrived (network failure, cancellation, undecodable response) and is
// classified by the invoker. Stream opens the raw SSE body for the
// consumer to parse.
type Transport interface {
	Do(ctx context.Context, method, path string, input any) (*action.Result, error)
	Stream(ctx context.Context, method, path string, input any) (io.ReadCloser, error)
}

// HTTPTransport is the default Transport over net/http. Read-style
// methods (GET, HEAD) encode the input as query parameters; all others
// send a JSON body.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client  // defaults to http.DefaultClient
	Retry   *retry.Config // optional, applied to network-level failures only
}

func (t *HTTPTransport) httpClient() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

// Do executes the call, retrying network failures when a retry config
// is set. Cancellation is never retried.
func (t *HTTPTransport) Do(ctx context.Context, method, path string, input any) (*action.Result, error) {
	if t.Retry == nil {
		return t.doOnce(ctx, method, path, input)
	}
	return retry.DoWithResult(ctx, *t.Retry, func() (*action.Result, error) {
		res, err := t.doOnce(ctx, method, path, input)
		if err != nil && ctx.Err() != nil {
			return nil, retry.NonRetryable(err)
		}
		return res, err
	})
}

func (t *HTTPTransport) doOnce(ctx context.Context, method, path string, input any) (*action.Result, error) {
	req, err := t.newRequest(ctx, method, path, input)
	if err != nil {
		return nil, retry.NonRetryable(err)
	}
	resp, err := t.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var res action.Result
	if err := json.Unmarshal(body, &res); err != nil {
		// Not an envelope; a proxy or middleware answered instead of
		// the action server.
		if resp.StatusCode >= 400 {
			return action.Fail(errors.New(errors.CodeServer, http.StatusText(resp.StatusCode), resp.StatusCode)), nil
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}

// Stream opens an SSE response body. Callers own closing the body.
func (t *HTTPTransport) Stream(ctx context.Context, method, path string, input any) (io.ReadCloser, error) {
	req, err := t.newRequest(ctx, method, path, input)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := t.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("stream request failed: %s", resp.Status)
	}
	return resp.Body, nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, path string, input any) (*http.Request, error) {
	target := strings.TrimRight(t.BaseURL, "/") + path

	if method == http.MethodGet || method == http.MethodHead {
		query, err := encodeQuery(input)
		if err != nil {
			return nil, err
		}
		if query != "" {
			target += "?" + query
		}
		return http.NewRequestWithContext(ctx, method, target, nil)
	}

	payload := input
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// encodeQuery flattens a map input into query parameters. Slice values
// become repeated keys; everything else is stringified.
func encodeQuery(input any) (string, error) {
	if input == nil {
		return "", nil
	}
	fields, ok := input.(map[string]any)
	if !ok {
		return "", fmt.Errorf("query input must be a map, got %T", input)
	}
	values := url.Values{}
	for key, val := range fields {
		rv := reflect.ValueOf(val)
		if val != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
			for i := 0; i < rv.Len(); i++ {
				values.Add(key, fmt.Sprint(rv.Index(i).Interface()))
			}
			continue
		}
		values.Add(key, fmt.Sprint(val))
	}
	return values.Encode(), nil
}
