// internal/providers/provider.go
// Package providers defines the interface the harness uses to call the system
// under test, plus concrete adapters for the supported endpoints. A provider
// hides transport details: runners hand it a prompt and per-spec variables and
// get back the raw output to evaluate.
package providers

import "context"

// CallContext carries per-call variables that the provider may interpolate
// into its request, such as the spec's question or target index.
type CallContext struct {
	Vars map[string]any
}

// StringVar returns the named variable rendered as a string, or "" when the
// variable is absent or not a string.
func (c CallContext) StringVar(name string) string {
	if c.Vars == nil {
		return ""
	}
	value, ok := c.Vars[name].(string)
	if !ok {
		return ""
	}
	return value
}

// Response is the outcome of one provider call. Output holds whatever the
// endpoint produced; Error is set when the endpoint reported a failure in-band
// rather than failing the transport. Extras carries provider-specific detail
// (token counts, trace ids) for the run record.
type Response struct {
	Output string
	Error  error
	Extras map[string]any
}

// ApiProvider is implemented by every adapter capable of servicing a call to
// the system under test.
type ApiProvider interface {
	// Name identifies the provider in logs and run records.
	Name() string
	// CallApi performs one inference call. A non-nil error means the call
	// itself failed (transport, timeout); endpoint-reported failures come
	// back inside the Response.
	CallApi(ctx context.Context, prompt string, callCtx CallContext) (*Response, error)
}
