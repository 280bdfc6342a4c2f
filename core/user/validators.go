package user

import (
	"fmt"
	"strings"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/youpass/youpass/core"
)

var (
	// password policy
	pwdMinLen     = 6
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password should be at least %d characters long", pwdMinLen)

	pwdMaxSim = .7

	ErrPasswordTooSimilar = errors.New("password cannot be similar to your name or email")
)

// InitValidators registers the user validators. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(userStructValidation, NewUser{}, ChangePassword{}, ResetPassword{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
}

// userStructValidation applies the password length policy to the structs carrying a new password.
func userStructValidation(sl validator.StructLevel) {
	switch data := sl.Current().Interface().(type) {
	case NewUser:
		validatePassword(data.Password, sl)
	case ChangePassword:
		validatePassword(data.Password, sl)
	case ResetPassword:
		validatePassword(data.Password, sl)
	}
}

func validatePassword(pwd string, sl validator.StructLevel) {
	if pwd == "" {
		return // reported by `required`
	}
	if utf8.RuneCountInString(pwd) < pwdMinLen {
		sl.ReportError(pwd, "password", "Password", pwdMinLenTag, "")
	}
}

// CheckPasswordSimilarity returns ErrPasswordTooSimilar when pwd resembles one of the user attributes.
func CheckPasswordSimilarity(pwd string, usrAttrs ...string) error {
	for _, attr := range usrAttrs {
		if passwordSimilarity(pwd, attr) >= pwdMaxSim {
			return ErrPasswordTooSimilar
		}
	}
	return nil
}

func passwordSimilarity(pwd, usrAttr string) float64 {
	if usrAttr == "" {
		return 0
	}
	pwd, usrAttr = strings.ToLower(pwd), strings.ToLower(usrAttr)
	return difflib.NewMatcher(strings.Split(pwd, ""), strings.Split(usrAttr, "")).QuickRatio()
}
