package httpx

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"path", "query"} {
			if name := f.Tag.Get(tag); name != "" {
				return name
			}
		}
		return ""
	})

	validate.RegisterValidation("catalog_id", validateCatalogID)
}

// validateCatalogID accepts printable identifiers that can be embedded in a
// catalog URL path segment.
func validateCatalogID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) || strings.ContainsRune("/?#%", r) {
			return false
		}
	}
	return true
}

// ValidateStruct checks s against its `validate` tags. Field names in the
// returned details come from the `path` or `query` tag.
func ValidateStruct(s any) []ErrorDetail {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var details []ErrorDetail
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		param := err.Param()

		var message string
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			message = fmt.Sprintf("%s must be at most %s", field, param)
		case "catalog_id":
			message = fmt.Sprintf("%s must be a catalog ID without spaces or URL delimiters", field)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}
		details = append(details, ErrorDetail{Field: field, Message: message})
	}
	return details
}
