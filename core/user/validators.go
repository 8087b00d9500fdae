package user

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/sciencegpt/core"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers the user validators. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	validate.RegisterStructValidation(newUserStructValidation, NewUser{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// allRolesValidation checks that provided user roles are all in AllRoles
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if RolePriority(role) == 0 {
			return false
		}
	}
	return true
}

func newUserStructValidation(sl validator.StructLevel) {
	if nu, ok := sl.Current().Interface().(NewUser); ok {
		if tag := CheckPassword(nu.Password, nu.Name, nu.Username, nu.Email); tag != "" {
			sl.ReportError(nu.Password, "password", "Password", tag, "")
		}
	}
}

// CheckPassword applies the password policy and returns the tag of the first broken rule, or "".
// - minLen: 8
// - no whitespace
// - not all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - not similar to the user attributes
func CheckPassword(pwd string, attrs ...string) string {
	var (
		digitCount         int
		hasUpper, hasLower bool
	)

	runes := []rune(pwd)
	if len(runes) < pwdMinLen {
		return pwdMinLenTag
	}
	for _, char := range runes {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		hasUpper = hasUpper || unicode.IsUpper(char)
		hasLower = hasLower || unicode.IsLower(char)
	}

	if digitCount == len(runes) {
		return pwdNotAllNumTag
	}
	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		return pwdComplexityTag
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}
	return ""
}

// PasswordPolicyText returns the human readable message of a CheckPassword tag.
func PasswordPolicyText(tag string) string {
	switch tag {
	case pwdMinLenTag:
		return pwdMinLenText
	case pwdNoSpaceTag:
		return pwdNoSpaceText
	case pwdNotAllNumTag:
		return pwdNotAllNumText
	case pwdComplexityTag:
		return pwdComplexityText
	case pwdAttrSimTag:
		return pwdAttrSimText
	}
	return ""
}
