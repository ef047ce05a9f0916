package assessment

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotAnOption = errors.New("value is not one of the allowed options")

type FieldKind int

const (
	// Select fields take one value from a closed option set.
	Select FieldKind = iota
	// Text fields are unconstrained strings.
	Text
	// Image fields hold the path of a captured image file.
	Image
)

type Option struct {
	Value string
	Label string
}

// Options builds an option set whose labels are the humanized values.
func Options(values ...string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: v, Label: Humanize(v)}
	}
	return out
}

// Values returns the raw option values.
func Values(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}

// Contains reports whether v is one of opts.
func Contains(opts []Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}

// Humanize turns "urgent_refer" into "Urgent refer".
func Humanize(v string) string {
	s := strings.ReplaceAll(v, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Field binds one editable form value to its presentation.
type Field struct {
	Key     string
	Label   string
	Kind    FieldKind
	Options []Option
	Value   *string
}

func (f Field) Get() string {
	if f.Value == nil {
		return ""
	}
	return *f.Value
}

// Set stores v. Select fields only accept a listed option or "" (cleared).
func (f Field) Set(v string) error {
	if f.Value == nil {
		return fmt.Errorf("field %s is not bound", f.Key)
	}
	if f.Kind == Select && v != "" && !Contains(f.Options, v) {
		return fmt.Errorf("%s: %q: %w", f.Key, v, ErrNotAnOption)
	}
	*f.Value = v
	return nil
}

// Step is one page of a form and owns its fields exclusively.
type Step struct {
	Title  string
	Fields []Field
}

// Form is the view model of one assessment type over its record schema R.
// Load and Build are inverse mappings over the same R, so
// Build(id) after Load(r) reproduces r for every edited field.
type Form[R any] interface {
	Kind() Kind
	// Load copies rec into the flat fields; nil means "no record yet" and
	// sets every field to its default.
	Load(rec *R)
	Build(registrationID int64) R
	Steps() []Step
}

// FieldKeys lists every field key across steps, in order.
func FieldKeys(steps []Step) []string {
	var keys []string
	for _, s := range steps {
		for _, f := range s.Fields {
			keys = append(keys, f.Key)
		}
	}
	return keys
}
