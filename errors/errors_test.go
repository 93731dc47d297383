package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionError_Error(t *testing.T) {
	err := New("RATE_LIMITED", "too many requests", 429)
	assert.Equal(t, "RATE_LIMITED (429): too many requests", err.Error())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *ActionError
		code       string
		statusCode int
	}{
		{"validation", Validation(nil), CodeValidation, 422},
		{"output validation", OutputValidation(nil), CodeOutputValidation, 500},
		{"parse", Parse("bad body"), CodeParse, 400},
		{"internal", Internal(), CodeInternal, 500},
		{"abort", Abort(), CodeAbort, 0},
		{"timeout", Timeout(), CodeTimeout, 408},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
		})
	}
}

func TestInternal_NeverLeaksDetail(t *testing.T) {
	err := Internal()
	assert.Equal(t, "Internal server error", err.Message)
}

func TestWithFieldErrors_DoesNotMutateOriginal(t *testing.T) {
	orig := Validation(nil)
	withFields := orig.WithFieldErrors(map[string][]string{"name": {"required"}})

	assert.Nil(t, orig.FieldErrors)
	assert.Equal(t, []string{"required"}, withFields.FieldErrors["name"])
}

func TestAsActionError(t *testing.T) {
	ae := New("CUSTOM", "custom failure", 418)
	wrapped := fmt.Errorf("handler: %w", ae)

	got, ok := AsActionError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "CUSTOM", got.Code)

	_, ok = AsActionError(stderrors.New("plain"))
	assert.False(t, ok)
}

type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string   { return e.msg }
func (e *statusError) StatusCode() int { return e.status }

func TestClassify_ActionErrorPassthrough(t *testing.T) {
	ae := New("CUSTOM", "domain failure", 409)

	got := Classify(ae, nil)
	assert.Same(t, ae, got)
}

func TestClassify_HookTranslatesGenericErrors(t *testing.T) {
	hook := func(err error) (string, string, int) {
		return "DB_ERROR", "database unavailable", 503
	}

	got := Classify(stderrors.New("pq: connection refused"), hook)
	assert.Equal(t, "DB_ERROR", got.Code)
	assert.Equal(t, "database unavailable", got.Message)
	assert.Equal(t, 503, got.StatusCode)
}

func TestClassify_HookDefaultsStatusTo500(t *testing.T) {
	hook := func(err error) (string, string, int) {
		return "DB_ERROR", "boom", 0
	}

	got := Classify(stderrors.New("boom"), hook)
	assert.Equal(t, 500, got.StatusCode)
}

func TestClassify_StatusCoderMapsToServerError(t *testing.T) {
	got := Classify(&statusError{status: 502, msg: "bad gateway"}, nil)
	assert.Equal(t, CodeServer, got.Code)
	assert.Equal(t, 502, got.StatusCode)
	assert.Equal(t, "bad gateway", got.Message)
}

func TestClassify_StatusCoderDefaultMessage(t *testing.T) {
	got := Classify(&statusError{status: 502}, nil)
	assert.Equal(t, "Server error", got.Message)
}

func TestClassify_UnknownErrorBecomesOpaqueInternal(t *testing.T) {
	got := Classify(stderrors.New("secret: db password invalid"), nil)
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, 500, got.StatusCode)
	assert.NotContains(t, got.Message, "secret")
}

func TestWrap(t *testing.T) {
	base := stderrors.New("connection refused")
	err := Wrap(base, "Pipeline", "Execute", "handler invocation")

	require.Error(t, err)
	assert.Equal(t, "Pipeline.Execute: handler invocation failed: connection refused", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.NoError(t, Wrap(nil, "Pipeline", "Execute", "noop"))
}
