package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/coffeeshop/internal/model"
)

const profileColumns = `id::text, name, email, credits, role`

// CreateUser создаёт учётную запись покупателя и профиль с начальным балансом в одной транзакции.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email string, passwordHash []byte, initialCents int64) (*model.Profile, error) {
	return r.CreateUserWithRole(ctx, name, email, passwordHash, initialCents, model.RoleCustomer)
}

// CreateUserWithRole создаёт учётную запись с заданной ролью.
func (r *PostgresRepository) CreateUserWithRole(ctx context.Context, name, email string, passwordHash []byte, initialCents int64, role model.Role) (*model.Profile, error) {
	id := uuid.NewString()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		id, email, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	p, err := scanProfile(tx.QueryRow(ctx,
		`INSERT INTO profiles (id, name, email, credits, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+profileColumns,
		id, name, email, initialCents, string(role),
	))
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return p, nil
}

// GetIdentityByEmail возвращает учётную запись по email.
func (r *PostgresRepository) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id::text, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	)

	var u model.Identity
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// GetProfile возвращает профиль пользователя по идентификатору.
func (r *PostgresRepository) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetProfilesByIDs возвращает профили пачкой по идентификаторам пользователей.
func (r *PostgresRepository) GetProfilesByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	res := make(map[string]model.Profile, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1::uuid[])`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		res[p.ID] = *p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SetCredits устанавливает новый баланс профиля и возвращает обновлённый профиль.
func (r *PostgresRepository) SetCredits(ctx context.Context, id string, cents int64) (*model.Profile, error) {
	var p *model.Profile
	err := r.withRetry(ctx, func() error {
		var err error
		p, err = scanProfile(r.pool.QueryRow(ctx,
			`UPDATE profiles SET credits = $2 WHERE id = $1 RETURNING `+profileColumns,
			id, cents,
		))
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update credits: %w", err)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p       model.Profile
		credits int64
		role    string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &credits, &role); err != nil {
		return nil, err
	}
	p.Credits = FromCents(credits)
	p.Role = model.Role(role)
	return &p, nil
}
