package domain

import (
	"chat-relay/errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateJoin trims the name in place, a blank name is rejected.
func ValidateJoin(cmd *JoinCommand) error {
	cmd.Name = strings.TrimSpace(cmd.Name)
	return errors.Validation(validate.Struct(cmd))
}

func ValidateSend(cmd SendMessageCommand) error {
	return errors.Validation(validate.Struct(cmd))
}

func ValidateSearch(cmd *SearchMessagesCommand) error {
	cmd.Query = strings.TrimSpace(cmd.Query)
	return errors.Validation(validate.Struct(cmd))
}
