package action

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/c360/actionkit/errors"
)

// Request is the transport-agnostic view of one inbound call. The pipeline
// only needs the method, the declared content type, the query parameters,
// and the raw body.
type Request struct {
	Method      string
	ContentType string
	Query       url.Values
	Body        io.Reader
}

// FromHTTP adapts a net/http request.
func FromHTTP(r *http.Request) *Request {
	return &Request{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
		Query:       r.URL.Query(),
		Body:        r.Body,
	}
}

// isReadMethod reports whether the method carries input as query
// parameters rather than a body.
func isReadMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// isJSONContentType reports whether the declared content type is a
// structured JSON format (application/json or any +json suffix).
func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// parseInput extracts the raw input value from the request. Idempotent
// reads (GET, HEAD) take query parameters; every other method takes a JSON
// body. A malformed body declared as JSON is a hard PARSE_ERROR; any other
// body failure falls open to an empty input object so optional-only actions
// still succeed.
func parseInput(req *Request) (any, *errors.ActionError) {
	if isReadMethod(req.Method) {
		input := make(map[string]any, len(req.Query))
		for key, values := range req.Query {
			if len(values) == 1 {
				input[key] = values[0]
				continue
			}
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			input[key] = list
		}
		return input, nil
	}

	if req.Body == nil {
		return map[string]any{}, nil
	}

	raw, err := io.ReadAll(req.Body)
	if err != nil || len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}

	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		if isJSONContentType(req.ContentType) {
			return nil, errors.Parse("invalid JSON request body")
		}
		return map[string]any{}, nil
	}
	return input, nil
}
