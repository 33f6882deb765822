package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ValidationError reports malformed input. It is returned before any kv call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return ValidDate(fl.Field().String())
	})
	_ = v.RegisterValidation("isotime", func(fl validator.FieldLevel) bool {
		return ValidTime(fl.Field().String())
	})
	return v
}

// ValidDate accepts calendar dates in YYYY-MM-DD form.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidTime accepts times of day in HH:MM form.
func ValidTime(s string) bool {
	_, err := time.Parse(TimeLayout, s)
	return err == nil && len(s) == len(TimeLayout)
}

// check runs struct validation and reports the first failing field.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return invalid(fe.Field(), reason)
	}
	return invalid("", err.Error())
}
