package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/baechuer/lms-auth-service/internal/domain"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate, translator = newValidator()
}

func newValidator() (*validator.Validate, ut.Translator) {
	v := validator.New(validator.WithRequiredStructEnabled())

	_en := en.New()
	trans, _ := ut.New(_en, _en).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	// report JSON names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v, trans
}

// Validate runs the struct tags on req and converts the first failure into
// missing_field or invalid_field carrying the JSON field name.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInternal(err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return domain.ErrMissingField(fe.Field())
	default:
		return domain.ErrInvalidField(fe.Field(), reason(fe))
	}
}

// reason is the English message without the leading field name, which the
// error already carries in meta.
func reason(fe validator.FieldError) string {
	msg := fe.Translate(translator)
	return strings.TrimSpace(strings.TrimPrefix(msg, fe.Field()))
}
