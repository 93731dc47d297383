package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	akerrors "github.com/c360/actionkit/errors"
	"github.com/c360/actionkit/pkg/retry"
)

func TestDoPostSendsJSONBody(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":7}}`))
	}))
	defer srv.Close()

	transport := &HTTPTransport{BaseURL: srv.URL}
	res, err := transport.Do(context.Background(), http.MethodPost, "/create", map[string]any{"name": "a"})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, map[string]any{"id": float64(7)}, res.Data)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]any{"name": "a"}, gotBody)
}

func TestDoGetEncodesQuery(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"success":true,"data":null}`))
	}))
	defer srv.Close()

	transport := &HTTPTransport{BaseURL: srv.URL}
	input := map[string]any{"q": "hello", "tags": []any{"a", "b"}, "page": 2}
	_, err := transport.Do(context.Background(), http.MethodGet, "/search", input)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, gotQuery["q"])
	assert.Equal(t, []string{"a", "b"}, gotQuery["tags"])
	assert.Equal(t, []string{"2"}, gotQuery["page"])
}

func TestDoDecodesFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"VALIDATION_ERROR","message":"Validation failed","statusCode":422}}`))
	}))
	defer srv.Close()

	transport := &HTTPTransport{BaseURL: srv.URL}
	res, err := transport.Do(context.Background(), http.MethodPost, "/x", nil)
	require.NoError(t, err)
	require.False(t, res.OK)
	assert.Equal(t, akerrors.CodeValidation, res.Error.Code)
	assert.Equal(t, 422, res.Error.StatusCode)
}

func TestNonEnvelopeErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	transport := &HTTPTransport{BaseURL: srv.URL}
	res, err := transport.Do(context.Background(), http.MethodPost, "/x", nil)
	require.NoError(t, err)
	require.False(t, res.OK)
	assert.Equal(t, akerrors.CodeServer, res.Error.Code)
	assert.Equal(t, http.StatusBadGateway, res.Error.StatusCode)
}

func TestRetryRecoversTransientFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			// Abruptly drop the connection so the client sees a
			// network-level error rather than an HTTP response.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":"recovered"}`))
	}))
	defer srv.Close()

	cfg := retry.Config{MaxAttempts: 3, InitialDelay: 1, MaxDelay: 5, Multiplier: 2}
	transport := &HTTPTransport{BaseURL: srv.URL, Retry: &cfg}
	res, err := transport.Do(context.Background(), http.MethodPost, "/x", nil)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, "recovered", res.Data)
	assert.Equal(t, 2, attempts)
}

func TestStreamRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	transport := &HTTPTransport{BaseURL: srv.URL}
	_, err := transport.Stream(context.Background(), http.MethodPost, "/missing", nil)
	assert.Error(t, err)
}

func TestStreamSetsAcceptHeader(t *testing.T) {
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("data: {\"__done\":true}\n\n"))
	}))
	defer srv.Close()

	transport := &HTTPTransport{BaseURL: srv.URL}
	body, err := transport.Stream(context.Background(), http.MethodPost, "/s", nil)
	require.NoError(t, err)
	defer func() { _ = body.Close() }()
	assert.Equal(t, "text/event-stream", accept)
}

func TestEncodeQueryRejectsNonMap(t *testing.T) {
	transport := &HTTPTransport{BaseURL: "http://localhost"}
	_, err := transport.Do(context.Background(), http.MethodGet, "/x", "not-a-map")
	assert.Error(t, err)
}

var _ Transport = (*HTTPTransport)(nil)
