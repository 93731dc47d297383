package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/actionkit/action"
	"github.com/c360/actionkit/config"
	"github.com/c360/actionkit/metric"
	"github.com/c360/actionkit/schema"
)

func echoAction() *action.Action {
	return action.New("echo").
		Input(schema.Object(map[string]schema.Schema{
			"message": schema.String().Min(1),
		}).Require("message")).
		Handler(func(_ context.Context, input any, _ map[string]any) (any, error) {
			msg := input.(map[string]any)["message"]
			return map[string]any{"echo": msg}, nil
		})
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *http.ServeMux) {
	t.Helper()
	cfg := config.Default().Server
	srv := New(cfg, opts...)
	require.NoError(t, srv.Register("/echo", http.MethodPost, echoAction()))
	mux := http.NewServeMux()
	return srv, mux
}

func TestServer_EndToEndEcho(t *testing.T) {
	srv, mux := newTestServer(t)
	srv.RegisterHTTPHandlers(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res, err := http.Post(ts.URL+"/api/actions/echo", "application/json",
		strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"echo":"hi"}}`, string(body))
}

func TestServer_ValidationFailureReturns422(t *testing.T) {
	srv, mux := newTestServer(t)
	srv.RegisterHTTPHandlers(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res, err := http.Post(ts.URL+"/api/actions/echo", "application/json",
		strings.NewReader(`{"message":""}`))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 422, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"success":false`)
	assert.Contains(t, string(body), `"VALIDATION_ERROR"`)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, mux := newTestServer(t)
	srv.RegisterHTTPHandlers(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/actions/echo")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	// Transport-level rejections carry the same envelope shape as
	// pipeline failures.
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"success":false,"error":{"code":"SERVER_ERROR","message":"method GET not allowed","statusCode":405}}`,
		string(body))
}

func TestServer_RequestIDPassthrough(t *testing.T) {
	srv, mux := newTestServer(t)
	srv.RegisterHTTPHandlers(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/actions/echo",
		strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "trace-123")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "trace-123", res.Header.Get("X-Request-ID"))
}

func TestServer_CORSPreflight(t *testing.T) {
	cfg := config.Default().Server
	cfg.EnableCORS = true
	cfg.CORSOrigins = []string{"https://app.example.com"}
	srv := New(cfg)
	require.NoError(t, srv.Register("/echo", http.MethodPost, echoAction()))

	mux := http.NewServeMux()
	srv.RegisterHTTPHandlers(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/actions/echo", nil)
	req.Header.Set("Origin", "https://app.example.com")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "https://app.example.com", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_RegisterRejectsMisconfiguredAction(t *testing.T) {
	srv := New(config.Default().Server)

	bad := action.New("bad").Input(42).Handler(func(context.Context, any, map[string]any) (any, error) {
		return nil, nil
	})
	err := srv.Register("/bad", http.MethodPost, bad)
	assert.ErrorIs(t, err, schema.ErrUnsupportedValidator)
}

func TestServer_RegisterRejectsDuplicatePath(t *testing.T) {
	srv := New(config.Default().Server)
	require.NoError(t, srv.Register("/echo", http.MethodPost, echoAction()))
	assert.Error(t, srv.Register("/echo", http.MethodPost, echoAction()))
}

func TestServer_StreamEndpointEmitsSSE(t *testing.T) {
	cfg := config.Default().Server
	srv := New(cfg)

	counter := action.New("count").StreamHandler(func(_ context.Context, _ any, _ map[string]any, sender *action.Sender) error {
		for i := 1; i <= 2; i++ {
			if err := sender.Send(map[string]any{"n": i}); err != nil {
				return err
			}
		}
		sender.Close()
		return nil
	})
	require.NoError(t, srv.Register("/count", http.MethodPost, counter))

	mux := http.NewServeMux()
	srv.RegisterHTTPHandlers(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res, err := http.Post(ts.URL+"/api/actions/count", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	got := string(raw)
	assert.Contains(t, got, `data: {"n":1}`)
	assert.Contains(t, got, `data: {"n":2}`)
	assert.Contains(t, got, `data: {"__done":true}`)
}

func TestServer_StreamPrologueFailureStillSSE(t *testing.T) {
	srv := New(config.Default().Server)

	counter := action.New("guarded").
		Input(schema.Object(map[string]schema.Schema{"topic": schema.String().Min(1)}).Require("topic")).
		StreamHandler(func(_ context.Context, _ any, _ map[string]any, sender *action.Sender) error {
			sender.Close()
			return nil
		})
	require.NoError(t, srv.Register("/guarded", http.MethodPost, counter))

	mux := http.NewServeMux()
	srv.RegisterHTTPHandlers(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res, err := http.Post(ts.URL+"/api/actions/guarded", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer res.Body.Close()

	// The caller still receives a well-formed event stream, not a raw
	// HTTP failure.
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"__actionError"`)
	assert.Contains(t, string(raw), `"VALIDATION_ERROR"`)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := metric.NewRegistry()
	srv, mux := newTestServer(t, WithMetrics(reg))
	srv.RegisterHTTPHandlers(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	res, err := http.Post(ts.URL+"/api/actions/echo", "application/json",
		strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, err)
	res.Body.Close()

	res, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "actionkit_server_requests_total")
}
