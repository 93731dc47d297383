package action

import (
	"context"

	"github.com/c360/actionkit/errors"
	"github.com/c360/actionkit/schema"
)

// Execute turns one inbound request into exactly one result envelope. No
// failure escapes this boundary: parse, validation, middleware, and handler
// errors are all classified into the envelope, and handler panics are
// recovered into the opaque INTERNAL_ERROR.
func (a *Action) Execute(ctx context.Context, req *Request) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("action handler panicked", "action", a.name, "panic", r)
			result = Fail(errors.Internal())
		}
	}()

	input, actx, aerr := a.prologue(ctx, req)
	if aerr != nil {
		return Fail(aerr)
	}

	output, err := a.handler(ctx, input, actx)
	if err != nil {
		return Fail(errors.Classify(err, a.onServerError))
	}

	if a.outputSchema != nil {
		validated, issues := a.outputSchema.Validate(ctx, output)
		if len(issues) > 0 {
			a.logger.Error("action produced invalid output",
				"action", a.name, "issues", len(issues))
			return Fail(errors.OutputValidation(schema.FieldErrors(issues)))
		}
		output = validated
	}

	return Ok(output)
}

// prologue runs the shared parse / validate input / middleware steps of
// both pipeline variants.
func (a *Action) prologue(ctx context.Context, req *Request) (any, map[string]any, *errors.ActionError) {
	input, aerr := parseInput(req)
	if aerr != nil {
		return nil, nil, aerr
	}

	if a.inputSchema != nil {
		validated, issues := a.inputSchema.Validate(ctx, input)
		if len(issues) > 0 {
			return nil, nil, errors.Validation(schema.FieldErrors(issues))
		}
		input = validated
	}

	actx := map[string]any{}
	if len(a.middlewares) > 0 {
		merged, err := runChain(ctx, a.logger, a.name, req, a.middlewares)
		if err != nil {
			return nil, nil, errors.Classify(err, a.onServerError)
		}
		actx = merged
	}

	return input, actx, nil
}
