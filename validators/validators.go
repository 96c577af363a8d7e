package validators

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"feedback/i18n"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	validate *validator.Validate
	decoder  *schema.Decoder
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// report errors under the form field name instead of the Go field name
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("schema"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// bcrypt refuses passwords longer than 72 bytes; max= counts runes
	validate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= n
	})

	decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
}

// Errors holds field-level messages keyed by form field name.
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Any() bool {
	return len(e) > 0
}

type UserForm struct {
	Username  string `schema:"username" label:"Username" validate:"required,max=20"`
	Password  string `schema:"password" label:"Password" validate:"required,maxbytes=72"`
	FirstName string `schema:"first_name" label:"FirstName" validate:"required,max=30"`
	LastName  string `schema:"last_name" label:"LastName" validate:"required,max=30"`
	Email     string `schema:"email" label:"Email" validate:"required,email,max=50"`

	// checked by the handler only when the captcha is enabled
	CaptchaID       string `schema:"captcha_id"`
	CaptchaSolution string `schema:"captcha_solution"`
}

type LoginForm struct {
	Username string `schema:"username" label:"Username" validate:"required"`
	Password string `schema:"password" label:"Password" validate:"required"`
}

// FeedbackForm has no length rule on the title; the database bound is authoritative.
type FeedbackForm struct {
	Title   string `schema:"title" label:"Title" validate:"required"`
	Content string `schema:"content" label:"FeedbackContent" validate:"required"`
}

// Decode fills dst from the submitted form body.
func Decode(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	return decoder.Decode(dst, r.PostForm)
}

// Validate runs the struct rules of form and translates failures into field messages.
func Validate(lang string, form any) Errors {
	errs := Errors{}

	err := validate.Struct(form)
	if err == nil {
		return errs
	}
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errs.Add("form", err.Error())
		return errs
	}

	formType := reflect.Indirect(reflect.ValueOf(form)).Type()
	for _, fe := range fieldErrors {
		errs.Add(fe.Field(), message(lang, fe, label(formType, fe.StructField())))
	}
	return errs
}

func label(formType reflect.Type, structField string) string {
	if f, ok := formType.FieldByName(structField); ok {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
	}
	return structField
}

func message(lang string, fe validator.FieldError, label string) string {
	label = i18n.T(lang, label)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf(i18n.T(lang, "FieldRequired"), label)
	case "email":
		return i18n.T(lang, "InvalidEmail")
	case "max":
		return fmt.Sprintf(i18n.T(lang, "FieldTooLong"), label, fe.Param())
	case "maxbytes":
		return fmt.Sprintf(i18n.T(lang, "FieldTooManyBytes"), label, fe.Param())
	}
	return fmt.Sprintf(i18n.T(lang, "FieldInvalid"), label)
}
