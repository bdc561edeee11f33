package common

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldProblem describes one failed validation rule on a payload field.
type FieldProblem struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// NewValidator returns a validator that reports json field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateStruct checks s against its struct tags using a shared validator.
func ValidateStruct(s any) error {
	validateOnce.Do(func() {
		validate = NewValidator()
	})
	return validate.Struct(s)
}

// FieldProblems flattens validator errors into response details. Other errors yield nil.
func FieldProblems(err error) []FieldProblem {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldProblem, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldProblem{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}
