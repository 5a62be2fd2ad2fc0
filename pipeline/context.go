package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Identity is the caller identity resolved upstream. It is trusted as given.
type Identity struct {
	Sub      string         `json:"sub"`
	Username string         `json:"username"`
	Claims   map[string]any `json:"claims,omitempty"`
}

// Request is the original caller input. Arguments and Source are kept as raw
// JSON so that no step can alter what later steps see.
type Request struct {
	Operation string
	Arguments json.RawMessage
	Source    json.RawMessage
	Identity  Identity
}

// Bind decodes the arguments into dst.
func (r Request) Bind(dst any) error {
	return decode(r.Arguments, dst, "arguments")
}

// BindSource decodes the parent object of a field resolver into dst.
func (r Request) BindSource(dst any) error {
	return decode(r.Source, dst, "source")
}

func decode(raw json.RawMessage, dst any, what string) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadRequest, what, err)
	}
	return nil
}

// Stash is state shared by every step of one execution.
type Stash map[string]any

// Context is what a step sees: the immutable request, the shared stash and
// the result of the step before it.
type Context struct {
	request Request
	Stash   Stash
	Prev    any
}

func newContext(req Request) *Context {
	return &Context{request: req.clone(), Stash: Stash{}}
}

// Request returns the caller input. It is deep-copied on every call.
func (c *Context) Request() Request {
	return c.request.clone()
}

func (r Request) clone() Request {
	r.Arguments = bytes.Clone(r.Arguments)
	r.Source = bytes.Clone(r.Source)
	if r.Identity.Claims != nil {
		r.Identity.Claims = cloneValue(r.Identity.Claims).(map[string]any)
	}
	return r
}

// cloneValue copies the maps and slices of a decoded JSON value.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(v)
	}
	return v
}

// Get returns the stash entry key as a T.
func Get[T any](c *Context, key string) (T, bool) {
	v, ok := c.Stash[key].(T)
	return v, ok
}

// Prev returns the previous step's result as a T.
func Prev[T any](c *Context) (T, bool) {
	v, ok := c.Prev.(T)
	return v, ok
}
