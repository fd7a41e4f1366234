// Package validation проверяет входные данные запросов по тегам validate.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/coffeeshop/internal/catalog"
	"github.com/mmeshcher/coffeeshop/internal/model"
)

// ErrInvalidRequest возвращается для некорректного запроса.
var ErrInvalidRequest = errors.New("invalid request")

// FieldError описывает нарушенное правило для одного поля.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Error перечисляет все некорректные поля запроса.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Rule))
	}
	return ErrInvalidRequest.Error() + ": " + strings.Join(parts, ", ")
}

// Is позволяет сравнивать ошибку с ErrInvalidRequest.
func (e *Error) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Validator проверяет структуры запросов.
type Validator struct {
	validate *validator.Validate
}

// New создаёт валидатор с правилами предметной области:
// milk проверяет вариант молока, orderstatus проверяет статус заказа.
// Поля decimal.Decimal сравниваются как числа.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})

	// Ошибки регистрации возможны только при пустом имени тега.
	_ = v.RegisterValidation("milk", func(fl validator.FieldLevel) bool {
		_, err := catalog.Milk(model.MilkOption(fl.Field().String()))
		return err == nil
	})
	_ = v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
		return model.OrderStatus(fl.Field().String()).Valid()
	})

	return &Validator{validate: v}
}

// Struct проверяет структуру и возвращает *Error со списком нарушений.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	res := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		res.Fields = append(res.Fields, FieldError{Field: fe.Field(), Rule: rule})
	}
	return res
}
