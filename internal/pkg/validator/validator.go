package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Karma action type validation
	validate.RegisterValidation("action_type", func(fl validator.FieldLevel) bool {
		action := fl.Field().String()
		validActions := []string{
			"post_created", "comment_created", "upvote_received",
			"downvote_received", "best_answer", "daily_login",
		}
		for _, a := range validActions {
			if action == a {
				return true
			}
		}
		return false
	})

	// Domain slug validation: lowercase alphanumeric with dashes/underscores
	validate.RegisterValidation("domain_slug", func(fl validator.FieldLevel) bool {
		domain := fl.Field().String()
		if domain == "" {
			return false
		}
		for _, r := range domain {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
				return false
			}
		}
		return true
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid":
			errors[field] = "Invalid UUID format"
		case "url":
			errors[field] = "Invalid URL format"
		case "action_type":
			errors[field] = "Invalid action type"
		case "domain_slug":
			errors[field] = "Invalid domain: use lowercase letters, digits, dashes or underscores"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
