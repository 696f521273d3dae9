package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Field names in errors come from
// the json tag so they match what the client sent.
var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return val
}

// FieldError is a single failed rule.
type FieldError struct {
	Field string
	Tag   string
}

// Error lists every failed rule of a validated struct.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field, fe.Tag))
	}
	return strings.Join(msgs, "; ")
}

// Failed reports whether any field failed the given rule tag.
func (e *Error) Failed(tag string) bool {
	for _, fe := range e.Fields {
		if fe.Tag == tag {
			return true
		}
	}
	return false
}

// FailedField reports whether field failed the given rule tag.
func (e *Error) FailedField(field, tag string) bool {
	for _, fe := range e.Fields {
		if fe.Field == field && fe.Tag == tag {
			return true
		}
	}
	return false
}

// Struct validates s using its validate tags. Rule failures are returned as
// *Error.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(ve))}
	for _, fe := range ve {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag()})
	}
	return out
}
