package assessment

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxTextLength bounds free-text fields.
const MaxTextLength = 500

// ValidationErrors maps a payload key ("right_eye.a") to its messages, in
// the shape of a 422 response body.
type ValidationErrors map[string][]string

func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

// Option checks that value is empty or one of opts.
func (v ValidationErrors) Option(field, value string, opts []Option) {
	if value != "" && !Contains(opts, value) {
		v.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(Values(opts), ", ")))
	}
}

// Text checks the length of a free-text value.
func (v ValidationErrors) Text(field, value string) {
	if utf8.RuneCountInString(value) > MaxTextLength {
		v.Add(field, "too long")
	}
}

func (v ValidationErrors) Empty() bool { return len(v) == 0 }

// Fields returns the failing keys, sorted.
func (v ValidationErrors) Fields() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, k := range v.Fields() {
		parts = append(parts, k+": "+strings.Join(v[k], ", "))
	}
	return strings.Join(parts, "; ")
}

// Validator is implemented by every assessment record.
type Validator interface {
	Validate() ValidationErrors
}
