// Package security implements the input screening stages of the
// admission pipeline: sanitization of string inputs, SQL/NoSQL
// injection detection, and user-agent / content-type screening.
package security

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/apexanalytical/labcms/pkg/contextkeys"
)

// RequestTrees holds the three mutable input trees of one request.
// Body is the decoded JSON document (nil for non-JSON requests),
// Query the URL query parameters, Params the route path parameters.
// The sanitizer rewrites string leaves in place; the injection
// detector and handlers read the same trees afterwards.
type RequestTrees struct {
	Body   interface{}
	Query  url.Values
	Params map[string]string
}

// FromRequest builds the trees for r, decoding a JSON body when one is
// present. The body reader is consumed; RestoreBody puts the
// (possibly rewritten) document back.
func FromRequest(r *http.Request) (*RequestTrees, error) {
	t := &RequestTrees{
		Query:  r.URL.Query(),
		Params: mux.Vars(r),
	}

	if !hasJSONBody(r) {
		return t, nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body.Close()

	if len(bytes.TrimSpace(raw)) == 0 {
		r.Body = io.NopCloser(bytes.NewReader(nil))
		return t, nil
	}

	var body interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		// Leave malformed bodies for the handler's decoder to reject.
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return t, nil
	}
	t.Body = body
	return t, nil
}

// RestoreBody re-encodes the body tree onto the request so handlers
// decode the sanitized document, and writes the sanitized query back
// onto the URL.
func (t *RequestTrees) RestoreBody(r *http.Request) error {
	r.URL.RawQuery = t.Query.Encode()
	if t.Body == nil {
		return nil
	}
	encoded, err := json.Marshal(t.Body)
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(encoded))
	r.ContentLength = int64(len(encoded))
	return nil
}

func hasJSONBody(r *http.Request) bool {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return false
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// WithTrees stores the sanitized trees on the request context.
func WithTrees(ctx context.Context, t *RequestTrees) context.Context {
	return context.WithValue(ctx, contextkeys.SanitizedRequestKey, t)
}

// TreesFromContext returns the sanitized trees, or nil before the
// sanitizer has run.
func TreesFromContext(ctx context.Context) *RequestTrees {
	if t, ok := ctx.Value(contextkeys.SanitizedRequestKey).(*RequestTrees); ok {
		return t
	}
	return nil
}
