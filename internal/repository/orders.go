package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coffeeshop/internal/model"
)

const orderColumns = `id::text, user_id::text, coffee_type, milk_option, status, total_price, created_at, updated_at`

// PlaceOrder сохраняет заказ и списывает его стоимость с баланса владельца.
// Строка профиля блокируется на время транзакции, поэтому параллельные списания не превышают баланс.
func (r *PostgresRepository) PlaceOrder(ctx context.Context, o *model.Order) (*model.Profile, error) {
	coffee, err := json.Marshal(o.CoffeeType)
	if err != nil {
		return nil, fmt.Errorf("marshal coffee type: %w", err)
	}
	totalCents := ToCents(o.TotalPrice)

	var profile *model.Profile
	err = r.withRetry(ctx, func() error {
		var err error
		profile, err = r.placeOrderTx(ctx, o, coffee, totalCents)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *PostgresRepository) placeOrderTx(ctx context.Context, o *model.Order, coffee []byte, totalCents int64) (*model.Profile, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var available int64
	err = tx.QueryRow(ctx,
		`SELECT credits FROM profiles WHERE id = $1 FOR UPDATE`,
		o.UserID,
	).Scan(&available)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock profile for update: %w", err)
	}

	if available < totalCents {
		return nil, &BalanceError{AvailableCents: available}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, coffee_type, milk_option, status, total_price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, coffee, string(o.MilkOption), string(o.Status), totalCents, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	profile, err := scanProfile(tx.QueryRow(ctx,
		`UPDATE profiles SET credits = credits - $2 WHERE id = $1 RETURNING `+profileColumns,
		o.UserID, totalCents,
	))
	if err != nil {
		return nil, fmt.Errorf("debit credits: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return profile, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders возвращает все заказы, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus переводит заказ из статуса from в статус to.
// Если статус заказа уже отличается от from, возвращается ErrStatusConflict.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus, updatedAt time.Time) (*model.Order, error) {
	var o *model.Order
	err := r.withRetry(ctx, func() error {
		var err error
		o, err = scanOrder(r.pool.QueryRow(ctx,
			`UPDATE orders SET status = $3, updated_at = $4
			 WHERE id = $1 AND status = $2
			 RETURNING `+orderColumns,
			id, string(from), string(to), updatedAt,
		))
		return err
	})
	if err == nil {
		return o, nil
	}
	if isInvalidUUID(err) {
		return nil, ErrOrderNotFound
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if _, err := r.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrStatusConflict
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		coffee []byte
		milk   string
		status string
		total  int64
	)
	if err := row.Scan(&o.ID, &o.UserID, &coffee, &milk, &status, &total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(coffee, &o.CoffeeType); err != nil {
		return nil, fmt.Errorf("decode coffee type: %w", err)
	}
	o.MilkOption = model.MilkOption(milk)
	o.Status = model.OrderStatus(status)
	o.TotalPrice = FromCents(total)
	return &o, nil
}
