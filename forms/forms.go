// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package forms

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Errors maps a form field name to its first error message.
// The empty key holds errors that belong to no single field.
type Errors map[string]string

// Add records msg for field unless the field already has an error.
func (e Errors) Add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

func (e Errors) Valid() bool {
	return len(e) == 0
}

// NonField returns the error not tied to a specific field.
func (e Errors) NonField() string {
	return e[""]
}

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report the form/json name instead of the Go field name
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"form", "json"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})

		mustRegister(v, "username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "notnumeric", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			for _, r := range s {
				if !unicode.IsDigit(r) {
					return true
				}
			}
			return s == ""
		})
		mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
			field := fl.Field()
			if field.Kind() == reflect.Pointer {
				if field.IsNil() {
					return true
				}
				field = field.Elem()
			}
			return strings.TrimSpace(field.String()) != ""
		})

		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Validate runs struct validation and converts failures to Errors.
func Validate(s any) Errors {
	errs := Errors{}
	err := Validator().Struct(s)
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("", err.Error())
		return errs
	}
	for _, fe := range verrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "notnumeric":
		return "This password is entirely numeric."
	case "eqfield":
		return "The two password fields didn't match."
	default:
		return "Invalid value."
	}
}

// checkbox reports whether an HTML checkbox was ticked.
func checkbox(r *http.Request, name string) bool {
	switch strings.ToLower(r.PostFormValue(name)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
