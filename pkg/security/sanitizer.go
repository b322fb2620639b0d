package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips HTML and script content from every string leaf of a
// request's input trees. It never rejects; after sanitization the
// request always proceeds, carrying only cleaned values.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a sanitizer with a strict no-tags-allowed policy.
// Script element bodies are stripped entirely, not just the tags.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeTrees rewrites the string leaves of all three trees in place.
func (s *Sanitizer) SanitizeTrees(t *RequestTrees) {
	if t == nil {
		return
	}
	t.Body = s.sanitizeValue(t.Body)
	s.sanitizeQuery(t.Query)
	for k, v := range t.Params {
		t.Params[k] = s.policy.Sanitize(v)
	}
}

// sanitizeValue recurses into nested objects and arrays, replacing
// string leaves and leaving every other leaf untouched.
func (s *Sanitizer) sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return s.policy.Sanitize(val)
	case map[string]interface{}:
		for k, item := range val {
			val[k] = s.sanitizeValue(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = s.sanitizeValue(item)
		}
		return val
	default:
		return v
	}
}

func (s *Sanitizer) sanitizeQuery(q url.Values) {
	for k, values := range q {
		for i, v := range values {
			values[i] = s.policy.Sanitize(v)
		}
		q[k] = values
	}
}
