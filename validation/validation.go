// Package validation checks request inputs and reports field-level violations.
// Struct tags are go-playground/validator rules; violations are keyed by the
// field's JSON name and carry the failing tag as code.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar-date format accepted by the "date" tag.
// RFC 3339 timestamps are accepted too and truncated to their date.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar date and returns UTC midnight of that day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		ts, err2 := time.Parse(time.RFC3339, s)
		if err2 != nil {
			return time.Time{}, err
		}
		t = ts
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records code for field unless the field already has one.
func (v Violations) Add(field, code string) {
	if _, ok := v[field]; !ok {
		v[field] = code
	}
}

// Err returns the violations as an *Error, or nil when empty.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Violations: v}
}

// Error is returned when input fails validation.
type Error struct {
	Violations Violations
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, code := range e.Violations {
		fields = append(fields, f+"="+code)
	}
	return "invalid input: " + strings.Join(fields, ", ")
}

// DateNotBefore flags later when it is before earlier. Unparseable values are
// left to the "date" tag.
func DateNotBefore(field, later, earlier string, v Violations) {
	l, err1 := ParseDate(later)
	e, err2 := ParseDate(earlier)
	if err1 == nil && err2 == nil && l.Before(e) {
		v.Add(field, "gtefield")
	}
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("date", func(fl validator.FieldLevel) bool {
			_, err := ParseDate(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Struct validates s against its `validate` tags. It returns *Error on rule
// violations; any other error means s could not be validated at all.
func Struct(s any) error {
	v := Violations{}
	if err := collect(s, v); err != nil {
		return err
	}
	return v.Err()
}

// Collect validates s and adds its violations to v, so callers can merge in
// cross-field checks before returning.
func Collect(s any, v Violations) error { return collect(s, v) }

func collect(s any, v Violations) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	for _, fe := range ve {
		v.Add(fieldPath(fe), fe.Tag())
	}
	return nil
}

// fieldPath drops the root struct name from the namespace:
// "InterventionInput.teamMembers[1]" becomes "teamMembers[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
