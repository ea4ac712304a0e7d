package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/yungbote/coursegate-backend/internal/platform/apierr"
)

// DefaultPhonePattern accepts digits-only local numbers: a leading 0 and
// 10 or 11 digits in total.
const DefaultPhonePattern = `^0\d{9,10}$`

const (
	localPhoneTag = "localphone"
	notBlankTag   = "notblank"
)

// Validator wraps go-playground/validator with English messages, JSON field
// names and the custom tags used by request payloads.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
	phone      *regexp.Regexp
}

func New(phonePattern string) (*Validator, error) {
	if strings.TrimSpace(phonePattern) == "" {
		phonePattern = DefaultPhonePattern
	}
	phone, err := regexp.Compile(phonePattern)
	if err != nil {
		return nil, fmt.Errorf("compile phone pattern: %w", err)
	}

	v := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, translator); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	out := &Validator{validate: v, translator: translator, phone: phone}
	_ = v.RegisterValidation(localPhoneTag, func(fl validator.FieldLevel) bool {
		return out.phone.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		if s, ok := fl.Field().Interface().(string); ok {
			return strings.TrimSpace(s) != ""
		}
		return false
	})
	out.registerText(localPhoneTag, "{0} must be a digits-only local number starting with 0")
	out.registerText(notBlankTag, "{0} cannot be blank")
	return out, nil
}

func (v *Validator) registerText(tag, text string) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Phone reports whether s matches the configured phone pattern.
func (v *Validator) Phone(s string) bool { return v.phone.MatchString(s) }

// Struct validates s and returns a ValidationError listing every failed
// field, or nil.
func (v *Validator) Struct(s any) *apierr.ValidationError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	out := apierr.NewValidationError()
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out.Add("", err.Error())
		return out
	}
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), fe.Translate(v.translator))
	}
	return out
}
