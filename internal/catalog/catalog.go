// Package catalog содержит неизменяемый справочник напитков и вариантов молока.
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/coffeeshop/internal/model"
)

var (
	// ErrUnknownCoffee возвращается для отсутствующего в меню напитка.
	ErrUnknownCoffee = errors.New("unknown coffee type")
	// ErrUnknownMilk возвращается для неизвестного варианта молока.
	ErrUnknownMilk = errors.New("unknown milk option")
)

var coffees = []model.CoffeeType{
	{
		ID:          "espresso",
		Name:        "Espresso",
		Description: "Strong, concentrated coffee served in a small cup",
		Price:       decimal.NewFromInt(1),
		Image:       "☕",
	},
	{
		ID:          "americano",
		Name:        "Americano",
		Description: "Espresso diluted with hot water",
		Price:       decimal.NewFromInt(1),
		Image:       "🥤",
	},
	{
		ID:          "latte",
		Name:        "Latte",
		Description: "Espresso with steamed milk and a small layer of foam",
		Price:       decimal.NewFromInt(1),
		Image:       "🥛",
	},
	{
		ID:          "cappuccino",
		Name:        "Cappuccino",
		Description: "Equal parts espresso, steamed milk, and foam",
		Price:       decimal.NewFromInt(1),
		Image:       "☕",
	},
	{
		ID:          "flat-white",
		Name:        "Flat White",
		Description: "Espresso with steamed milk and minimal foam",
		Price:       decimal.NewFromInt(1),
		Image:       "🥛",
	},
	{
		ID:          "mocha",
		Name:        "Mocha",
		Description: "Espresso with chocolate and steamed milk",
		Price:       decimal.RequireFromString("1.5"),
		Image:       "🍫",
	},
}

var nonDairySurcharge = decimal.RequireFromString("0.5")

var milks = []model.MilkPrice{
	{Option: model.MilkRegular, ExtraCost: decimal.Zero},
	{Option: model.MilkTrim, ExtraCost: decimal.Zero},
	{Option: model.MilkOat, ExtraCost: nonDairySurcharge},
	{Option: model.MilkAlmond, ExtraCost: nonDairySurcharge},
}

// Coffees возвращает копию списка напитков.
func Coffees() []model.CoffeeType {
	out := make([]model.CoffeeType, len(coffees))
	copy(out, coffees)
	return out
}

// Coffee ищет напиток по идентификатору.
func Coffee(id string) (model.CoffeeType, error) {
	for _, c := range coffees {
		if c.ID == id {
			return c, nil
		}
	}
	return model.CoffeeType{}, fmt.Errorf("%w: %s", ErrUnknownCoffee, id)
}

// Milks возвращает копию списка вариантов молока.
func Milks() []model.MilkPrice {
	out := make([]model.MilkPrice, len(milks))
	copy(out, milks)
	return out
}

// Milk ищет вариант молока по названию.
func Milk(option model.MilkOption) (model.MilkPrice, error) {
	for _, m := range milks {
		if m.Option == option {
			return m, nil
		}
	}
	return model.MilkPrice{}, fmt.Errorf("%w: %s", ErrUnknownMilk, option)
}

// Surcharge возвращает доплату за молоко: 0.5 за Oat и Almond, иначе 0.
func Surcharge(option model.MilkOption) decimal.Decimal {
	if option == model.MilkOat || option == model.MilkAlmond {
		return nonDairySurcharge
	}
	return decimal.Zero
}

// Price считает итоговую стоимость напитка с учётом молока.
func Price(coffee model.CoffeeType, option model.MilkOption) decimal.Decimal {
	return coffee.Price.Add(Surcharge(option))
}
