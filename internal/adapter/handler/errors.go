package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

var validate = validator.New()

var statusByCode = map[string]int{
	"invalid_input":              http.StatusBadRequest,
	"invalid_range":              http.StatusBadRequest,
	"amount_too_small":           http.StatusBadRequest,
	"user_not_found":             http.StatusNotFound,
	"merchant_not_found":         http.StatusNotFound,
	"not_found":                  http.StatusNotFound,
	"access_denied":              http.StatusForbidden,
	"merchant_not_participating": http.StatusForbidden,
	"insufficient_point_bank":    http.StatusUnprocessableEntity,
	"insufficient_balance":       http.StatusUnprocessableEntity,
	"exceeds_redemption_cap":     http.StatusUnprocessableEntity,
	"duplicate_reference":        http.StatusConflict,
	"already_exists":             http.StatusConflict,
	"conflict":                   http.StatusConflict,
}

// writeError renders an engine error. Unknown errors are logged and hidden
// behind a generic message.
func writeError(c *fiber.Ctx, err error) error {
	code := domain.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		slog.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
	}

	body := fiber.Map{"error": err.Error(), "code": code}
	var limit *domain.LimitError
	if errors.As(err, &limit) {
		body["requested"] = limit.Requested
		body["available"] = limit.Available
		body["shortfall"] = limit.Shortfall()
	}
	return c.Status(status).JSON(body)
}

// parseBody decodes and validates the JSON body into req. ok is false when
// the error response has already been written.
func parseBody(c *fiber.Ctx, req any) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		slog.Warn("Invalid request body", "path", c.Path(), "error", err)
		return false, c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "code": "invalid_input"})
	}
	if err := validate.Struct(req); err != nil {
		return false, c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation error",
			"code":    "invalid_input",
			"details": formatValidationError(err),
		})
	}
	return true, nil
}

func formatValidationError(err error) []string {
	var errs []string
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}
	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errs = append(errs, fmt.Sprintf("%s is required", field))
		case "email":
			errs = append(errs, fmt.Sprintf("%s must be a valid email", field))
		case "uuid":
			errs = append(errs, fmt.Sprintf("%s must be a UUID", field))
		case "url":
			errs = append(errs, fmt.Sprintf("%s must be a URL", field))
		case "gt":
			errs = append(errs, fmt.Sprintf("%s must be greater than %s", field, e.Param()))
		case "max":
			errs = append(errs, fmt.Sprintf("%s must have maximum length %s", field, e.Param()))
		case "oneof":
			errs = append(errs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		default:
			errs = append(errs, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}
	return errs
}

// paramID parses a UUID route parameter. Like parseBody, ok is false when the
// response has already been written.
func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, false, c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid " + name, "code": "invalid_input"})
	}
	return id, true, nil
}
