package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorkit/creatorkit/pkg/money"
)

func TestSubUnit(t *testing.T) {
	t.Parallel()

	t.Run("rounds before scaling", func(t *testing.T) {
		t.Parallel()

		// 5.706 must become 5.71 -> 571, not truncate to 570.
		assert.Equal(t, int64(571), money.MustParse("5.706", "INR").SubUnit())
	})

	t.Run("whole amounts", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, int64(10000), money.MustParse("100", "INR").SubUnit())
		assert.Equal(t, int64(9900), money.MustParse("99.00", "USD").SubUnit())
	})

	t.Run("zero decimal currencies", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, int64(500), money.MustParse("500", "JPY").SubUnit())
	})
}

func TestFromSubUnit(t *testing.T) {
	t.Parallel()

	m, err := money.FromSubUnit(57100, "INR")
	require.NoError(t, err)
	assert.True(t, m.Equal(money.MustParse("571.00", "INR")))

	_, err = money.FromSubUnit(100, "XQZ")
	require.ErrorIs(t, err, money.ErrUnknownCurrency)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, amount := range []string{"1.00", "0.01", "4999.99", "123.45"} {
		m := money.MustParse(amount, "INR")
		back, err := money.FromSubUnit(m.SubUnit(), "INR")
		require.NoError(t, err)
		assert.True(t, back.Equal(m), "round trip of %s", amount)
	}
}

func TestDeductPlatformFee(t *testing.T) {
	t.Parallel()

	fee := decimal.NewFromInt(10)
	got := money.DeductPlatformFee(money.MustParse("100", "INR"), fee)
	assert.True(t, got.Equal(money.MustParse("90.00", "INR")))

	// fractional rates stay exact
	fee = decimal.RequireFromString("4.9")
	got = money.DeductPlatformFee(money.MustParse("500", "INR"), fee)
	assert.True(t, got.Equal(money.MustParse("475.50", "INR")))
}

func TestPercentChange(t *testing.T) {
	t.Parallel()

	assert.True(t, money.PercentChange(decimal.NewFromInt(5), decimal.NewFromInt(5)).IsZero())
	assert.True(t, money.PercentChange(decimal.NewFromInt(5), decimal.Zero).Equal(decimal.NewFromInt(100)))
	assert.True(t, money.PercentChange(decimal.NewFromInt(150), decimal.NewFromInt(100)).Equal(decimal.NewFromInt(50)))
	assert.True(t, money.PercentChange(decimal.NewFromInt(50), decimal.NewFromInt(100)).Equal(decimal.NewFromInt(-50)))
}
