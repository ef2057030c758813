package server

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"pdfrag/internal/models"
)

// ErrorHandler renders every error returned by a handler as JSON
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	log.Error().Err(err).Int("code", code).Str("path", c.Path()).Msg("Request failed")
	return c.Status(code).JSON(NewError(code, err.Error()))
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, msg string) Error {
	return Error{
		Code:    code,
		Message: msg,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

var validate = validator.New()

// validateParams returns the failed field/tag pairs, or nil
func validateParams(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return map[string]string{"request": err.Error()}
	}
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return out
}

// UserMessage is the chat text shown in place of an answer when a query fails
func UserMessage(err error) string {
	var (
		loadErr       *models.LoadError
		chunkErr      *models.ChunkingConfigError
		embedErr      *models.EmbeddingServiceError
		completionErr *models.CompletionServiceError
	)
	switch {
	case errors.Is(err, models.ErrNoDocument):
		return "Please upload a PDF file first."
	case errors.Is(err, models.ErrEmptyQuestion):
		return "Please enter a question."
	case errors.As(err, &completionErr):
		return fmt.Sprintf("Error while generating the answer: %v", completionErr.Err)
	case errors.As(err, &loadErr):
		return fmt.Sprintf("Error while processing: %v", loadErr.Err)
	case errors.As(err, &embedErr):
		return fmt.Sprintf("Error while processing: %v", embedErr.Err)
	case errors.As(err, &chunkErr):
		return fmt.Sprintf("Error while processing: %v", chunkErr)
	default:
		return fmt.Sprintf("Error while processing: %v", err)
	}
}
