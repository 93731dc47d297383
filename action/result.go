package action

import (
	"encoding/json"

	"github.com/c360/actionkit/errors"
)

// Result is the uniform envelope produced exactly once per pipeline
// execution. Exactly one of Data and Error is meaningful, discriminated by
// OK. Results are immutable after creation and serialize to the wire shape
// {"success":true,"data":...} or {"success":false,"error":{...}}.
type Result struct {
	OK    bool
	Data  any
	Error *errors.ActionError
}

// Ok creates a success envelope.
func Ok(data any) *Result {
	return &Result{OK: true, Data: data}
}

// Fail creates a failure envelope.
func Fail(err *errors.ActionError) *Result {
	return &Result{OK: false, Error: err}
}

type wireSuccess struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type wireFailure struct {
	Success bool                `json:"success"`
	Error   *errors.ActionError `json:"error"`
}

// MarshalJSON writes exactly one top-level wire shape: data for success,
// error for failure, never both.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(wireSuccess{Success: true, Data: r.Data})
	}
	return json.Marshal(wireFailure{Success: false, Error: r.Error})
}

// UnmarshalJSON decodes the wire envelope.
func (r *Result) UnmarshalJSON(data []byte) error {
	var wire struct {
		Success bool                `json:"success"`
		Data    any                 `json:"data"`
		Error   *errors.ActionError `json:"error"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.OK = wire.Success
	if wire.Success {
		r.Data = wire.Data
		r.Error = nil
	} else {
		r.Data = nil
		r.Error = wire.Error
	}
	return nil
}

// Reserved stream payload keys. A stream event whose payload is an object
// with one of these keys is a control signal, not a data chunk.
const (
	// ErrorMarkerKey wraps an ActionError terminating the stream.
	ErrorMarkerKey = "__actionError"
	// DoneMarkerKey marks graceful end of stream.
	DoneMarkerKey = "__done"
)
