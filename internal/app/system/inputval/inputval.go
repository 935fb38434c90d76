// Package inputval validates request payloads declared with struct tags:
//
//	type createInput struct {
//		Name string `validate:"required,max=200" label:"Project name"`
//	}
//
// Messages are written for end users and name the field by its label.
package inputval

import (
	"fmt"
	"net/mail"
	"reflect"
	"strings"
	"sync"

	"github.com/dalemusser/collabhub/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Message string
}

// Result collects the failures of one Validate call.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any rule failed.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if l := f.Tag.Get("label"); l != "" {
				return l
			}
			return f.Name
		})
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return IsValidObjectID(fl.Field().String())
		})
		_ = v.RegisterValidation("rolename", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseRole(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseTaskStatus(fl.Field().String())
			return ok
		})
	})
	return v
}

// Validate runs the struct's validate tags.
func Validate(s any) *Result {
	res := &Result{}
	err := instance().Struct(s)
	if err == nil {
		return res
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Errors = append(res.Errors, FieldError{Message: err.Error()})
		return res
	}
	for _, fe := range verrs {
		res.Errors = append(res.Errors, FieldError{Field: fe.StructField(), Message: message(fe)})
	}
	return res
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", label)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "email":
		return "A valid email address is required."
	case "objectid":
		return fmt.Sprintf("%s must be a valid id.", label)
	case "rolename":
		return fmt.Sprintf("%s must be administrator, developer or viewer.", label)
	case "taskstatus":
		return fmt.Sprintf("%s must be todo, in_progress or done.", label)
	default:
		return fmt.Sprintf("%s is invalid.", label)
	}
}

// IsValidEmail reports whether s is a bare address (no display name) with a
// well-formed local part and domain.
func IsValidEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == s
}

// IsValidObjectID reports whether s (trimmed) is a 24-char hex ObjectID.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	return err == nil
}
