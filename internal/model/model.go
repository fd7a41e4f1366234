// Package model содержит доменные сущности кофейни.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InitialCredits задаёт баланс, с которым создаётся профиль при регистрации.
var InitialCredits = decimal.NewFromInt(5)

// Role описывает роль пользователя.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleBarista  Role = "barista"
	RoleAdmin    Role = "admin"
)

// IsStaff сообщает, относится ли роль к персоналу кофейни.
func (r Role) IsStaff() bool {
	return r == RoleBarista || r == RoleAdmin
}

// Profile представляет профиль пользователя с балансом кредитов.
type Profile struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Credits decimal.Decimal `json:"credits"`
	Role    Role            `json:"role"`
}

// Identity описывает учётную запись, по которой проверяется пароль.
type Identity struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// CoffeeType описывает позицию меню.
type CoffeeType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
}

// MilkOption описывает вариант молока.
type MilkOption string

const (
	MilkRegular MilkOption = "Regular"
	MilkTrim    MilkOption = "Trim"
	MilkOat     MilkOption = "Oat"
	MilkAlmond  MilkOption = "Almond"
)

// MilkPrice связывает вариант молока с доплатой.
type MilkPrice struct {
	Option    MilkOption      `json:"option"`
	ExtraCost decimal.Decimal `json:"extraCost"`
}

// Order описывает заказ пользователя.
type Order struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	UserName   string          `json:"userName"`
	CoffeeType CoffeeType      `json:"coffeeType"`
	MilkOption MilkOption      `json:"milkOption"`
	Status     OrderStatus     `json:"status"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
