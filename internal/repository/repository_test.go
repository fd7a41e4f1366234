package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCentsConversion(t *testing.T) {
	tests := []struct {
		credits string
		cents   int64
	}{
		{"0", 0},
		{"0.5", 50},
		{"1.5", 150},
		{"8.5", 850},
		{"5", 500},
	}

	for _, tt := range tests {
		t.Run(tt.credits, func(t *testing.T) {
			d := decimal.RequireFromString(tt.credits)
			assert.Equal(t, tt.cents, ToCents(d))
			assert.True(t, d.Equal(FromCents(tt.cents)))
		})
	}
}

func TestBalanceError(t *testing.T) {
	var err error = &BalanceError{AvailableCents: 120}

	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.True(t, errors.Is(fmt.Errorf("place order: %w", err), ErrInsufficientBalance))

	var be *BalanceError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, int64(120), be.AvailableCents)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: pgerrcode.SerializationFailure}))
	assert.True(t, isRetryable(&pgconn.PgError{Code: pgerrcode.DeadlockDetected}))
	assert.False(t, isRetryable(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.True(t, isRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryable(errors.New("syntax error")))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})
	assert.True(t, isUniqueViolation(err))
	assert.False(t, isUniqueViolation(errors.New("other")))
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: true},
		{name: "wrapped no rows", err: fmt.Errorf("get order: %w", pgx.ErrNoRows), want: true},
		{name: "malformed uuid", err: &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation}, want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}},
		{name: "connection error", err: errors.New("connection reset by peer")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}

	assert.True(t, isInvalidUUID(fmt.Errorf("select: %w", &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation})))
	assert.False(t, isInvalidUUID(pgx.ErrNoRows))
}
