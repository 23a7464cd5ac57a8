package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/schoolhub/core"
)

var (
	emailDomainTag = "email_domain"
	phoneTag       = "phone"

	salaryRequiredTag  = "salary_required"
	salaryRequiredText = "salary is required for fixed salary teachers"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers the user validators.
// An empty AllowedEmailDomain accepts any email domain.
func InitValidators(validate *validator.Validate, translator ut.Translator, conf core.AuthConfig) {
	domain := strings.ToLower(strings.TrimPrefix(conf.AllowedEmailDomain, "@"))
	_ = validate.RegisterValidation(emailDomainTag, func(fl validator.FieldLevel) bool {
		return domain == "" || strings.HasSuffix(strings.ToLower(fl.Field().String()), "@"+domain)
	})
	core.RegisterCustomTranslation(validate, translator, emailDomainTag, fmt.Sprintf("email must be a @%s address", domain))

	_ = validate.RegisterValidation(phoneTag, func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) >= conf.PhoneMinLen
	})
	core.RegisterCustomTranslation(
		validate, translator, phoneTag, fmt.Sprintf("phone number must contain at least %d characters", conf.PhoneMinLen))

	validate.RegisterStructValidation(userStructValidation, NewStudent{}, NewTeacher{}, NewAdmin{}, SetPassword{}, UpdateTeacher{})
	core.RegisterCustomTranslation(validate, translator, salaryRequiredTag, salaryRequiredText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// userStructValidation does struct level validation on user inputs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewStudent:
		validatePassword(usr.Password, usr.Name, usr.Email, sl)
	case NewTeacher:
		validatePassword(usr.Password, usr.Name, usr.Email, sl)
	case NewAdmin:
		validatePassword(usr.Password, usr.Name, usr.Email, sl)
	case SetPassword:
		validatePassword(usr.Password, usr.name, usr.email, sl)
	case UpdateTeacher:
		if usr.SalaryType == SalaryFixed && usr.Salary <= 0 {
			sl.ReportError(usr.Salary, "salary", "Salary", salaryRequiredTag, "")
		}
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - no user attrs similarity
func validatePassword(pwd, name, email string, sl validator.StructLevel) {
	if pwd == "" {
		return // reported by `required`
	}
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}

	var digitCount int
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
		return
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(usrAttr, "")).QuickRatio()
	}
	lpwd := strings.ToLower(pwd)
	if getRatio(lpwd, strings.ToLower(name)) >= pwdMaxSim || getRatio(lpwd, strings.ToLower(email)) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
	}
}
