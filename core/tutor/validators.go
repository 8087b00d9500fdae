package tutor

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/llm"
)

var (
	reqTypeTag  = "reqtype"
	reqTypeText = "request type must be one of: " + strings.Join(requestTypeNames(), ", ")
)

// InitValidators registers the tutor validators. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(reqTypeTag, reqTypeValidation)
	core.RegisterCustomTranslation(validate, translator, reqTypeTag, reqTypeText)
}

func requestTypeNames() []string {
	names := make([]string, 0, len(llm.RequestTypes))
	for _, rt := range llm.RequestTypes {
		names = append(names, string(rt))
	}
	return names
}

func reqTypeValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, rt := range llm.RequestTypes {
		if string(rt) == val {
			return true
		}
	}
	return false
}
