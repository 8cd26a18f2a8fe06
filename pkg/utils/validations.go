package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const MaxDisplayNameLength = 100

type CustomValidator struct {
	Validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	Validator := &CustomValidator{validator.New()}
	Validator.ValidatorRegistery()
	return Validator
}

// RegisterBindingValidations adds the custom rules to gin's binding
// engine so `binding:"displayname"` works on request DTOs.
func RegisterBindingValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		(&CustomValidator{v}).ValidatorRegistery()
	}
}

func (c *CustomValidator) ValidatorRegistery() {
	_ = c.Validator.RegisterValidation("displayname", c.IsValidDisplayName)
}

// IsValidDisplayName accepts a non-blank, printable label of bounded
// length.
func (c *CustomValidator) IsValidDisplayName(fl validator.FieldLevel) bool {
	name := strings.TrimSpace(fl.Field().String())
	if name == "" || utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return false
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
