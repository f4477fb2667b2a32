package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(12.5), USD)
		require.NoError(t, err)
		assert.Equal(t, USD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(12.5)))
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.Zero, "")
		assert.Error(t, err)
	})
}

func TestMoney_Arithmetic(t *testing.T) {
	a := NewMoneyUSDFromFloat(10.00)
	b := NewMoneyUSDFromFloat(2.50)

	t.Run("add", func(t *testing.T) {
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.Equal(t, "12.50", sum.StringFixed())
	})

	t.Run("sub", func(t *testing.T) {
		diff, err := a.Sub(b)
		require.NoError(t, err)
		assert.Equal(t, "7.50", diff.StringFixed())
	})

	t.Run("mul", func(t *testing.T) {
		result := b.Mul(decimal.NewFromInt(3))
		assert.Equal(t, "7.50", result.StringFixed())
	})

	t.Run("add raw amount keeps currency", func(t *testing.T) {
		sum := a.AddAmount(decimal.NewFromFloat(0.25))
		assert.Equal(t, "10.25", sum.StringFixed())
		assert.Equal(t, USD, sum.Currency())
	})

	t.Run("sub raw amount keeps currency", func(t *testing.T) {
		diff := a.SubAmount(decimal.NewFromFloat(0.25))
		assert.Equal(t, "9.75", diff.StringFixed())
		assert.Equal(t, USD, diff.Currency())
	})

	t.Run("currency mismatch", func(t *testing.T) {
		eur, err := NewMoney(decimal.NewFromInt(1), EUR)
		require.NoError(t, err)
		_, err = a.Add(eur)
		assert.Error(t, err)
	})
}

func TestMoney_StringFixed(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{"whole number", 5, "5.00"},
		{"one decimal", 5.1, "5.10"},
		{"rounds half up", 5.125, "5.13"},
		{"zero", 0, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewMoneyUSDFromFloat(tt.amount).StringFixed())
		})
	}
}

func TestMoney_Predicates(t *testing.T) {
	assert.True(t, Zero().IsZero())
	assert.False(t, NewMoneyUSDFromFloat(1).IsZero())
	assert.True(t, NewMoneyUSDFromFloat(-1).IsNegative())
	assert.True(t, NewMoneyUSDFromFloat(3.3).Equals(NewMoneyUSDFromFloat(3.3)))
}
