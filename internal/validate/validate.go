// Package validate wraps go-playground/validator with English field messages
// and a field-keyed error type shared by the catalog and order services.
package validate

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

// FieldError is a single user-facing validation message for a named field.
type FieldError struct {
	Field   string
	Message string
}

// Errors collects field validation failures in the order they were found.
type Errors struct {
	Fields []FieldError
}

// Add appends a message for field.
func (e *Errors) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e as an error, or nil when no failures were collected.
func (e *Errors) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// First returns the first collected message.
func (e *Errors) First() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0].Message
}

// Merge appends all failures from other.
func (e *Errors) Merge(other *Errors) {
	if other != nil {
		e.Fields = append(e.Fields, other.Fields...)
	}
}

func (e *Errors) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for i, f := range e.Fields {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Message)
	}
	return b.String()
}

// Validator validates structs tagged with `validate` and reports failures
// keyed by the struct's `form` tag names.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

// New creates a Validator with English translations registered.
func New() *Validator {
	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		default:
			return name
		}
	})
	// Money fields are compared numerically by gte/lte.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(err)
	}
	registerTranslation(v, trans, "required_without", "{0} is required when {1} is not present")

	return &Validator{v: v, trans: trans}
}

func registerTranslation(v *validator.Validate, trans ut.Translator, tag, text string) {
	err := v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, err := ut.T(tag, fe.Field(), fe.Param())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
	if err != nil {
		panic(err)
	}
}

// Struct validates s. Field failures are returned as *Errors.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}

	out := &Errors{}
	for _, fe := range verrs {
		msg := fe.Translate(v.trans)
		if fe.Tag() == "required_without" {
			// The tag parameter names a Go field; report its form name instead.
			if m, err := v.trans.T(fe.Tag(), fe.Field(), formName(s, fe.Param())); err == nil {
				msg = m
			}
		}
		out.Add(fe.Field(), msg)
	}
	return out
}

func formName(s any, field string) string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return field
	}
	f, ok := t.FieldByName(field)
	if !ok {
		return field
	}
	if name, _, _ := strings.Cut(f.Tag.Get("form"), ","); name != "" && name != "-" {
		return name
	}
	return field
}

var std = sync.OnceValue(New)

// Struct validates s using a shared Validator.
func Struct(s any) error {
	return std().Struct(s)
}
