package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailAlreadyInUse возвращается при регистрации на занятый email.
	ErrEmailAlreadyInUse = errors.New("email already in use")
	// ErrNotAuthenticated возвращается, если операция требует вошедшего пользователя.
	ErrNotAuthenticated = errors.New("you must be logged in")
	// ErrInsufficientCredits возвращается, если на балансе не хватает кредитов.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrRemoteOperationFailed оборачивает любую ошибку удалённого хранилища.
	ErrRemoteOperationFailed = errors.New("remote operation failed")
	// ErrInvalidTransition возвращается при недопустимой смене статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrForbidden возвращается, если у пользователя нет прав на операцию.
	ErrForbidden = errors.New("operation not permitted")
	// ErrNegativeCredits возвращается при попытке установить отрицательный баланс.
	ErrNegativeCredits = errors.New("credits must not be negative")
)

// InsufficientCreditsError уточняет, сколько кредитов требуется и сколько доступно.
type InsufficientCreditsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: order costs %s, you have %s",
		e.Required.String(), e.Available.String())
}

// Is позволяет сравнивать ошибку с ErrInsufficientCredits через errors.Is.
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// InvalidTransitionError описывает отклонённый переход статуса.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// Is позволяет сравнивать ошибку с ErrInvalidTransition через errors.Is.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Remote оборачивает ошибку хранилища в ErrRemoteOperationFailed.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrRemoteOperationFailed, op, err)
}
