package repository

import (
	"context"
	"errors"
	"fmt"
)

// OrdersChannel задаёт канал NOTIFY, в который триггер сообщает об изменении таблицы orders.
const OrdersChannel = "orders_changed"

// ListenOrderChanges подписывается на изменения таблицы orders и вызывает onChange на каждое уведомление.
// Содержимое уведомления не разбирается. Блокирует до отмены контекста или ошибки соединения.
func (r *PostgresRepository) ListenOrderChanges(ctx context.Context, onChange func()) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN "+OrdersChannel)
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+OrdersChannel); err != nil {
		return fmt.Errorf("listen %s: %w", OrdersChannel, err)
	}

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait notification: %w", err)
		}
		onChange()
	}
}
