package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signUp struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type order struct {
	CoffeeID string `json:"coffeeId" validate:"required"`
	Milk     string `json:"milkOption" validate:"required,milk"`
}

type status struct {
	Status string `json:"status" validate:"required,orderstatus"`
}

type credits struct {
	Credits *decimal.Decimal `json:"credits" validate:"required,gte=0"`
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestValidator_Struct(t *testing.T) {
	v := New()

	tests := []struct {
		name       string
		input      any
		wantFields []FieldError
	}{
		{
			name:  "valid sign up",
			input: signUp{Name: "Ann", Email: "ann@example.com", Password: "secret1"},
		},
		{
			name:  "bad email and short password",
			input: signUp{Name: "Ann", Email: "not-an-email", Password: "123"},
			wantFields: []FieldError{
				{Field: "email", Rule: "email"},
				{Field: "password", Rule: "min=6"},
			},
		},
		{
			name:       "missing name",
			input:      signUp{Email: "ann@example.com", Password: "secret1"},
			wantFields: []FieldError{{Field: "name", Rule: "required"}},
		},
		{
			name:  "known milk",
			input: order{CoffeeID: "latte", Milk: "Oat"},
		},
		{
			name:       "unknown milk",
			input:      order{CoffeeID: "latte", Milk: "Soy"},
			wantFields: []FieldError{{Field: "milkOption", Rule: "milk"}},
		},
		{
			name:  "known status",
			input: status{Status: "preparing"},
		},
		{
			name:       "unknown status",
			input:      status{Status: "brewing"},
			wantFields: []FieldError{{Field: "status", Rule: "orderstatus"}},
		},
		{
			name:  "zero credits",
			input: credits{Credits: dec("0")},
		},
		{
			name:  "fractional credits",
			input: credits{Credits: dec("12.5")},
		},
		{
			name:       "negative credits",
			input:      credits{Credits: dec("-1")},
			wantFields: []FieldError{{Field: "credits", Rule: "gte=0"}},
		},
		{
			name:       "missing credits",
			input:      credits{},
			wantFields: []FieldError{{Field: "credits", Rule: "required"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrInvalidRequest)
			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantFields, verr.Fields)
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Fields: []FieldError{{Field: "email", Rule: "email"}, {Field: "password", Rule: "min=6"}}}
	assert.Equal(t, "invalid request: email: email, password: min=6", err.Error())
}
