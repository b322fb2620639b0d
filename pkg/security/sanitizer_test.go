package security

import (
	"net/url"
	"reflect"
	"testing"
)

func TestSanitizer_StripsScriptContent(t *testing.T) {
	s := NewSanitizer()

	trees := &RequestTrees{
		Body: map[string]interface{}{
			"name": "<script>alert('xss')</script>Dr. Smith",
		},
	}
	s.SanitizeTrees(trees)

	body := trees.Body.(map[string]interface{})
	if got := body["name"]; got != "Dr. Smith" {
		t.Errorf("name = %q, want %q", got, "Dr. Smith")
	}
}

func TestSanitizer_StripsTagsKeepsText(t *testing.T) {
	s := NewSanitizer()

	trees := &RequestTrees{
		Body: map[string]interface{}{
			"description": "<b>Blood</b> analysis",
		},
	}
	s.SanitizeTrees(trees)

	body := trees.Body.(map[string]interface{})
	if got := body["description"]; got != "Blood analysis" {
		t.Errorf("description = %q, want %q", got, "Blood analysis")
	}
}

func TestSanitizer_RecursesNestedTrees(t *testing.T) {
	s := NewSanitizer()

	trees := &RequestTrees{
		Body: map[string]interface{}{
			"profile": map[string]interface{}{
				"bio": "<img src=x onerror=alert(1)>hello",
			},
			"tags": []interface{}{"<script>x</script>one", "two"},
			"age":  float64(42),
		},
	}
	s.SanitizeTrees(trees)

	body := trees.Body.(map[string]interface{})
	profile := body["profile"].(map[string]interface{})
	if got := profile["bio"]; got != "hello" {
		t.Errorf("nested bio = %q, want %q", got, "hello")
	}

	tags := body["tags"].([]interface{})
	if got := tags[0]; got != "one" {
		t.Errorf("tags[0] = %q, want %q", got, "one")
	}

	// Non-string leaves pass through untouched.
	if got := body["age"]; got != float64(42) {
		t.Errorf("age = %v, want 42", got)
	}
}

func TestSanitizer_QueryAndParams(t *testing.T) {
	s := NewSanitizer()

	trees := &RequestTrees{
		Query:  url.Values{"q": {"<script>evil</script>search"}},
		Params: map[string]string{"slug": "<b>bold</b>slug"},
	}
	s.SanitizeTrees(trees)

	if got := trees.Query.Get("q"); got != "search" {
		t.Errorf("query q = %q, want %q", got, "search")
	}
	if got := trees.Params["slug"]; got != "boldslug" {
		t.Errorf("param slug = %q, want %q", got, "boldslug")
	}
}

func TestSanitizer_Idempotent(t *testing.T) {
	s := NewSanitizer()

	trees := &RequestTrees{
		Body: map[string]interface{}{
			"name": "<script>alert(1)</script>Chem Panel & Culture",
			"note": "a < b",
		},
	}
	s.SanitizeTrees(trees)
	once := trees.Body.(map[string]interface{})
	first := map[string]interface{}{"name": once["name"], "note": once["note"]}

	s.SanitizeTrees(trees)
	twice := trees.Body.(map[string]interface{})
	second := map[string]interface{}{"name": twice["name"], "note": twice["note"]}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("second pass changed output: first %v, second %v", first, second)
	}
}

func TestSanitizer_NilTrees(t *testing.T) {
	s := NewSanitizer()
	// Must not panic.
	s.SanitizeTrees(nil)
	s.SanitizeTrees(&RequestTrees{})
}
