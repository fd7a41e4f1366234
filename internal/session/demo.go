package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/coffeeshop/internal/model"
	"github.com/mmeshcher/coffeeshop/internal/repository"
)

// DemoPassword общий пароль демонстрационных учётных записей.
const DemoPassword = "password"

// AccountCreator создаёт учётные записи с заданной ролью.
type AccountCreator interface {
	CreateUserWithRole(ctx context.Context, name, email string, passwordHash []byte, initialCents int64, role model.Role) (*model.Profile, error)
}

// DemoAccount описывает демонстрационную учётную запись.
type DemoAccount struct {
	Name  string
	Email string
	Role  model.Role
}

// DemoAccounts по одной учётной записи на каждую роль.
var DemoAccounts = []DemoAccount{
	{Name: "Demo Customer", Email: "customer@example.com", Role: model.RoleCustomer},
	{Name: "Demo Barista", Email: "barista@example.com", Role: model.RoleBarista},
	{Name: "Demo Admin", Email: "admin@example.com", Role: model.RoleAdmin},
}

// SeedDemoAccounts создаёт недостающие демонстрационные учётные записи.
// Существующие записи не изменяются, повторный вызов безопасен.
func SeedDemoAccounts(ctx context.Context, repo AccountCreator, logger *zap.Logger) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	for _, a := range DemoAccounts {
		p, err := repo.CreateUserWithRole(ctx, a.Name, a.Email, hash, repository.ToCents(model.InitialCredits), a.Role)
		if err != nil {
			if errors.Is(err, repository.ErrUserExists) {
				continue
			}
			return fmt.Errorf("create demo %s: %w", a.Role, err)
		}
		logger.Info("demo account created", zap.String("email", a.Email), zap.String("role", string(a.Role)), zap.String("userID", p.ID))
	}

	return nil
}
