package security

import (
	"fmt"
	"regexp"

	"github.com/apexanalytical/labcms/pkg/errs"
)

// sqlPatterns are the SQL injection signature families. A string leaf
// matching any of them fails the whole request.
var sqlPatterns = []*regexp.Regexp{
	// Statement keywords
	regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION|SCRIPT)\b`),
	// Boolean tautologies, e.g. "OR 1=1"
	regexp.MustCompile(`(?i)\b(OR|AND)\s+\d+\s*=\s*\d+`),
	// Comment and statement terminator tokens
	regexp.MustCompile(`(--|/\*|\*/|;)`),
	// Type and string function calls
	regexp.MustCompile(`(?i)\b(CHAR|NCHAR|VARCHAR|NVARCHAR)\s*\(`),
	regexp.MustCompile(`(?i)\b(CAST|CONVERT|SUBSTRING|ASCII|CHAR_LENGTH)\s*\(`),
}

// noSQLOperators are the document-query operator keys whose presence at
// any nesting depth signals operator injection.
var noSQLOperators = map[string]bool{
	"$where": true, "$ne": true, "$gt": true, "$lt": true,
	"$gte": true, "$lte": true, "$in": true, "$nin": true,
	"$regex": true, "$exists": true, "$type": true,
}

// Match describes the first offending leaf found by a scan.
type Match struct {
	// Path is the dotted location of the leaf, e.g. "body.username"
	// or "query.filter[2]".
	Path string
	// Value is the offending string (empty for NoSQL key matches).
	Value string
	// NoSQL is true when the match is an operator-shaped key rather
	// than a SQL signature in a value.
	NoSQL bool
}

// Detector scans request trees for SQL and NoSQL injection signatures.
// The scan is all-or-nothing: the first match aborts the walk and the
// request fails with a validation error naming the field.
type Detector struct{}

// NewDetector creates an injection detector
func NewDetector() *Detector {
	return &Detector{}
}

// Scan walks body, query and params depth-first and returns the first
// match, or nil when the request is clean.
func (d *Detector) Scan(t *RequestTrees) *Match {
	if t == nil {
		return nil
	}
	if m := d.scanValue(t.Body, "body"); m != nil {
		return m
	}
	for key, values := range t.Query {
		path := "query." + key
		if noSQLOperators[key] {
			return &Match{Path: path, NoSQL: true}
		}
		for i, v := range values {
			p := path
			if len(values) > 1 {
				p = fmt.Sprintf("%s[%d]", path, i)
			}
			if matchSQL(v) {
				return &Match{Path: p, Value: v}
			}
		}
	}
	for key, v := range t.Params {
		if matchSQL(v) {
			return &Match{Path: "params." + key, Value: v}
		}
	}
	return nil
}

func (d *Detector) scanValue(v interface{}, path string) *Match {
	switch val := v.(type) {
	case string:
		if matchSQL(val) {
			return &Match{Path: path, Value: val}
		}
	case map[string]interface{}:
		for k, item := range val {
			if noSQLOperators[k] {
				return &Match{Path: path + "." + k, NoSQL: true}
			}
			if m := d.scanValue(item, path+"."+k); m != nil {
				return m
			}
		}
	case []interface{}:
		for i, item := range val {
			if m := d.scanValue(item, fmt.Sprintf("%s[%d]", path, i)); m != nil {
				return m
			}
		}
	}
	return nil
}

func matchSQL(value string) bool {
	for _, pattern := range sqlPatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// Error converts a match into the validation error returned to the client.
func (m *Match) Error() *errs.Error {
	if m.NoSQL {
		return errs.Validation("invalid query parameters detected", m.Path)
	}
	return errs.Validation(fmt.Sprintf("invalid characters detected in %s", m.Path), m.Path)
}
