package auth

import (
	"errors"
	"fmt"
	"hidden-talk/domain"
	apperrors "hidden-talk/errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = newValidate()

// MessageInput bounds are the domain ones, counted in characters, not bytes.
type MessageInput struct {
	Sender string
	Text   string
}

func newValidate() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidationMapRules(map[string]string{
		"Sender": fmt.Sprintf("min=%d,max=%d", domain.MinSenderLength, domain.MaxSenderLength),
		"Text":   fmt.Sprintf("min=%d,max=%d", domain.MinTextLength, domain.MaxTextLength),
	}, MessageInput{})
	return v
}

type roomInput struct {
	RoomID string `validate:"required,uuid4"`
}

// ValidateMessage runs before any store access.
func ValidateMessage(sender, text string) error {
	return toValidationError(validate.Struct(MessageInput{Sender: sender, Text: text}))
}

// ValidateRoomID checks the identifier is present and well-formed.
func ValidateRoomID(roomID string) (domain.RoomID, error) {
	if err := toValidationError(validate.Struct(roomInput{RoomID: roomID})); err != nil {
		return "", err
	}
	return domain.RoomID(roomID), nil
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	details := lo.Map(fieldErrors, func(fe validator.FieldError, _ int) string {
		return describe(fe)
	})
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, strings.Join(details, ", "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid4":
		return field + " is malformed"
	default:
		return field + " is invalid"
	}
}
