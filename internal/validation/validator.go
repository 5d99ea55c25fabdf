// Package validation checks request payloads against declarative struct tag
// schemas using go-playground/validator.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/imagiseum/gallery/internal/tags"
)

// Error is returned when a payload fails its schema. Fields maps the JSON
// field name to a human readable message.
type Error struct {
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Failed builds an Error with a single message and no field details.
func Failed(msg string) *Error {
	return &Error{Message: msg}
}

// Validator wraps validator.Validate with JSON field names and the custom
// rules used by the gallery.
type Validator struct {
	v *validator.Validate
}

// New creates a validator. Besides the built-in rules it registers "tag"
// which accepts letters, digits and spaces only.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("tag", func(fl validator.FieldLevel) bool {
		return tags.Valid(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate satisfies echo.Validator.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		if _, seen := fields[fieldName(e)]; seen {
			continue
		}
		fields[fieldName(e)] = friendlyMessage(e)
	}
	return &Error{Message: "Validation error", Fields: fields}
}

// fieldName drops the struct prefix and collapses slice elements onto their
// parent, so "CreateImage.tags[3]" becomes "tags".
func fieldName(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

func friendlyMessage(e validator.FieldError) string {
	elem := strings.HasSuffix(e.Field(), "]")
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", e.Param())
		}
		if elem {
			return fmt.Sprintf("entries must be at least %s characters", e.Param())
		}
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must not contain more than %s items", e.Param())
		}
		if elem {
			return fmt.Sprintf("entries must not exceed %s characters", e.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "tag":
		return "may only contain letters, numbers and spaces"
	case "base64", "datauri":
		return "must be base64 encoded image data"
	default:
		return "is invalid"
	}
}
