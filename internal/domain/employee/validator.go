package employee

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/ahrav/streambatch/internal/domain/stream"
)

var _ stream.Validator[Employee] = (*Validator)(nil)

// Validator checks employees against their struct rules and reports every
// violated rule in a single Invalid verdict.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
	now      func() time.Time
}

// NewValidator creates a Validator using the wall clock for date checks.
func NewValidator() *Validator { return newValidator(time.Now) }

func newValidator(now func() time.Time) *Validator {
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled()), now: now}

	enLocale := en.New()
	v.trans, _ = ut.New(enLocale, enLocale).GetTranslator("en")
	// Registration only fails on duplicate tags, which cannot happen on a
	// fresh validator.
	_ = enTranslations.RegisterDefaultTranslations(v.validate, v.trans)

	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.validate.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && !t.After(v.now())
	})
	_ = v.validate.RegisterTranslation("notfuture", v.trans,
		func(t ut.Translator) error {
			return t.Add("notfuture", "{0} cannot be in the future", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T("notfuture", fe.Field())
			return msg
		},
	)

	return v
}

// Validate returns Invalid with the translated rule violations, or an error
// if the rules themselves could not be evaluated.
func (v *Validator) Validate(ctx context.Context, e Employee) (stream.Verdict, error) {
	err := v.validate.StructCtx(ctx, e)
	if err == nil {
		return stream.Valid(), nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return stream.Verdict{}, fmt.Errorf("evaluating employee rules: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(v.trans))
	}
	return stream.Invalid(strings.Join(msgs, "; ")), nil
}
