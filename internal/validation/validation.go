// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error описывает ошибку валидации входных данных; сообщение безопасно показывать клиенту.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Newf создаёт ошибку валидации с форматированным сообщением.
func Newf(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError сообщает, является ли ошибка ошибкой валидации.
func IsValidationError(err error) bool {
	var verr *Error
	return errors.As(err, &verr)
}

var pkPhone = regexp.MustCompile(`^(\+92|0092|0)3\d{9}$`)

// IsValidPhone проверяет номер мобильного телефона Пакистана.
func IsValidPhone(phone string) bool {
	return pkPhone.MatchString(strings.NewReplacer(" ", "", "-", "").Replace(phone))
}

// NormalizePhone приводит номер к виду +923XXXXXXXXX. Номер должен пройти IsValidPhone.
func NormalizePhone(phone string) string {
	p := strings.NewReplacer(" ", "", "-", "").Replace(phone)
	switch {
	case strings.HasPrefix(p, "+92"):
		return p
	case strings.HasPrefix(p, "0092"):
		return "+" + p[2:]
	case strings.HasPrefix(p, "0"):
		return "+92" + p[1:]
	}
	return p
}

// NormalizeEmail приводит адрес почты к нижнему регистру без пробелов.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validator проверяет структуры запросов по тегам validate.
type Validator struct {
	v *validator.Validate
}

// New создаёт валидатор, использующий имена полей из тегов json и правило pkphone.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("pkphone", func(fl validator.FieldLevel) bool {
		return IsValidPhone(fl.Field().String())
	})

	return &Validator{v: v}
}

// Struct проверяет структуру и возвращает *Error с описанием первого нарушения.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Message: "invalid request"}
	}

	return &Error{Message: describe(verrs[0])}
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "pkphone":
		return fmt.Sprintf("%s must be a valid Pakistani mobile number", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "required_if":
		return fmt.Sprintf("%s is required", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
