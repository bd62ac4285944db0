package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/mediacache/pkg/errors"
	"github.com/charlesng35/mediacache/pkg/response"
	appValidator "github.com/charlesng35/mediacache/pkg/validator"
)

// binder is satisfied by gin's ShouldBindJSON and ShouldBindQuery.
type binder func(obj any) error

// bindJSON decodes and validates a JSON body, writing a 400 on failure.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	return bindWith(c, c.ShouldBindJSON, "invalid JSON payload", dest)
}

// bindQuery decodes and validates query parameters, writing a 400 on failure.
func bindQuery[T any](c *gin.Context, dest *T) bool {
	return bindWith(c, c.ShouldBindQuery, "invalid query parameters", dest)
}

func bindWith[T any](c *gin.Context, bind binder, decodeMessage string, dest *T) bool {
	if err := bind(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(decodeMessage))
		return false
	}
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		messages = append(messages, describeFailure(failure))
	}
	return strings.Join(messages, "; ")
}

func describeFailure(failure appValidator.ValidationError) string {
	field := strings.ToLower(strings.ReplaceAll(failure.Field, "_", " "))
	if field == "" {
		field = "field"
	}

	switch failure.Tag {
	case "required":
		return field + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, failure.Param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, failure.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, failure.Param)
	case "media_category":
		return field + " must be image or video"
	}
	if failure.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
}
