package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// FormatValidationError formats validation errors into a readable string.
func FormatValidationError(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok {
		var msgs []string
		for _, e := range errs {
			msgs = append(msgs, e.Namespace()+" failed on "+e.Tag())
		}
		return strings.Join(msgs, ", ")
	}
	return err.Error()
}

// BindAndValidate parses the JSON body into obj and validates it. On failure
// it writes a 400 response and returns false.
func BindAndValidate(c *fiber.Ctx, obj interface{}) (bool, error) {
	if err := c.BodyParser(obj); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "Failed to parse request body",
			Kind:    "validation",
			Error:   err.Error(),
		})
	}
	if err := Validate(obj); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "Validation failed: " + FormatValidationError(err),
			Kind:    "validation",
		})
	}
	return true, nil
}
