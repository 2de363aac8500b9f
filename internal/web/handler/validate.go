package handler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// NewValidator returns a validator reporting fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		if name == "" {
			return field.Name
		}

		return name
	})

	return v
}

// BindBody decodes the JSON body into out and validates it.
func BindBody(c fiber.Ctx, v *validator.Validate, out any) error {
	if err := c.Bind().JSON(out); err != nil {
		return &RequestError{Errors: []FieldError{{Loc: []string{"body"}, Msg: "invalid json: " + err.Error()}}}
	}

	return Validate(v, "body", out)
}

// Validate checks out with v. Failing fields are reported below location.
func Validate(v *validator.Validate, location string, out any) error {
	err := v.Struct(out)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return &RequestError{Errors: []FieldError{{Loc: []string{location}, Msg: err.Error()}}}
	}

	fieldErrs := make([]FieldError, 0, len(verrs))

	for _, fe := range verrs {
		loc := []string{location}

		// Namespace starts with the struct name, e.g. "request.owner.user_id".
		if _, path, ok := strings.Cut(fe.Namespace(), "."); ok {
			loc = append(loc, strings.Split(path, ".")...)
		}

		fieldErrs = append(fieldErrs, FieldError{Loc: loc, Msg: fieldMessage(fe)})
	}

	return &RequestError{Errors: fieldErrs}
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint
	if ok {
		*out = verrs
	}

	return ok
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "oneof":
		permitted := strings.Fields(fe.Param())
		for i, p := range permitted {
			permitted[i] = "'" + p + "'"
		}

		return "value is not a valid enumeration member; permitted: " + strings.Join(permitted, ", ")
	case "min":
		return fmt.Sprintf("ensure this value has at least %s items", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' validation", fe.Tag())
	}
}
