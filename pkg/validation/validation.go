package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

var (
	v *validator.Validate

	// Phone: digits plus space, dash, dot, parentheses and a leading plus.
	reTel = regexp.MustCompile(`^\+?[0-9 ().-]{3,20}$`)
)

func init() {
	v = validator.New()

	// Use JSON tag as the field name in error output
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Custom: self-service signup role (admins are bootstrapped, never signed up)
	_ = v.RegisterValidation("signuprole", func(fl validator.FieldLevel) bool {
		switch models.Role(fl.Field().String()) {
		case models.RoleClient, models.RoleDesigner:
			return true
		}
		return false
	})

	// Custom: photo type
	_ = v.RegisterValidation("phototype", func(fl validator.FieldLevel) bool {
		switch models.PhotoType(fl.Field().String()) {
		case models.PhotoExisting, models.PhotoInspiration:
			return true
		}
		return false
	})

	// Custom: project status
	_ = v.RegisterValidation("projectstatus", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" { // let omitempty handle empty
			return true
		}
		return models.ProjectStatus(val).Valid()
	})

	// Custom: telephone
	_ = v.RegisterValidation("tel", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" {
			return true
		}
		return reTel.MatchString(val)
	})
}

// Fixed messages per tag; min/max/gte/lte are built from the parameter.
var messages = map[string]string{
	"required":      "This field is required",
	"email":         "Invalid email format",
	"oneof":         "Value is not allowed",
	"dive":          "Invalid item",
	"signuprole":    "Must be client or designer",
	"phototype":     "Must be existing or inspiration",
	"projectstatus": "Invalid project status",
	"tel":           "Invalid phone number",
}

func messageFor(e validator.FieldError) string {
	if msg, ok := messages[e.Tag()]; ok {
		return msg
	}
	str := e.Kind() == reflect.String
	switch e.Tag() {
	case "min", "gte":
		if str {
			return fmt.Sprintf("Must be at least %s characters", e.Param())
		}
		if e.Kind() == reflect.Slice || e.Kind() == reflect.Map {
			return fmt.Sprintf("Must contain at least %s item(s)", e.Param())
		}
		return fmt.Sprintf("Must be at least %s", e.Param())
	case "max", "lte":
		if str {
			return fmt.Sprintf("Must be at most %s characters", e.Param())
		}
		if e.Kind() == reflect.Slice || e.Kind() == reflect.Map {
			return fmt.Sprintf("Must contain at most %s item(s)", e.Param())
		}
		return fmt.Sprintf("Must be at most %s", e.Param())
	}
	return e.Error()
}

// Validate returns field name to messages; field names follow the json tags.
// A nil map means the value is valid.
func Validate(s any) (map[string][]string, error) {
	err := v.Struct(s)
	if err == nil {
		return nil, nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, err
	}
	out := make(map[string][]string, len(ve))
	for _, e := range ve {
		out[e.Field()] = append(out[e.Field()], messageFor(e))
	}
	return out, nil
}
