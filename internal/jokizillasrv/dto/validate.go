package dto

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/jokizilla/jokizilla/internal/common/apperrors"
)

// ErrValidation carries one detail per invalid property, keyed by the JSON property name.
var ErrValidation apperrors.Error = apperrors.New("one or more validation errors occurred").SetStatusCode(http.StatusBadRequest)

var (
	once     sync.Once
	validate *validator.Validate
)

// V returns the shared validator. Field names in its errors are JSON property names.
func V() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks an update against its validation tags.
func Validate(v any) apperrors.Error {
	err := V().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ErrValidation.Err(err)
	}
	e := ErrValidation.Err()
	for _, fe := range verrs {
		e = e.WithDetail(fieldPath(fe), describe(fe))
	}
	return e
}

// fieldPath drops the struct name, keeping the property path as clients send it.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The field %s must be a string with a maximum length of %s.", name, fe.Param())
		}
		return fmt.Sprintf("The field %s must be at most %s.", name, fe.Param())
	case "min":
		return fmt.Sprintf("The field %s must be at least %s.", name, fe.Param())
	case "gt":
		return fmt.Sprintf("The field %s must be greater than %s.", name, fe.Param())
	case "gte":
		return fmt.Sprintf("The field %s must be greater than or equal to %s.", name, fe.Param())
	case "email":
		return fmt.Sprintf("The %s field is not a valid e-mail address.", name)
	case "iso3166_1_alpha2":
		return fmt.Sprintf("The %s field is not a valid ISO 3166-1 alpha-2 country code.", name)
	}
	return fmt.Sprintf("The field %s is invalid (%s).", name, fe.Tag())
}
