package tender

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAmount(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"0", true},
		{"-5", true},
		{"12.5", true},
		{"12.3456", true},
		{"1.50000", true},
		{"99999999999999.9999", true},
		{"33.33333", false},
		{"0.00001", false},
		{"100000000000000", false},
		{"-100000000000000", false},
		{"1e15", false},
		{"1e300000000", false},
		{"1e-300000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := CheckAmount(decimal.RequireFromString(tt.in))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrAmountOutOfRange)
		})
	}
}

func TestHugeExponentFailsFast(t *testing.T) {
	start := time.Now()

	_, err := Decode("cash:1e300000000")
	require.ErrorIs(t, err, ErrMalformedLedger)
	assert.Less(t, len(err.Error()), 200)

	_, err = NewEntry("cash", decimal.RequireFromString("1e300000000"))
	require.ErrorIs(t, err, ErrMalformedLedger)
	assert.Less(t, len(err.Error()), 200)

	err = Breakdown{{Kind: KindCash, Amount: decimal.RequireFromString("-1e300000000")}}.Validate()
	require.ErrorIs(t, err, ErrAmountOutOfRange)
	assert.Less(t, len(err.Error()), 200)

	assert.Less(t, time.Since(start), time.Second)
}

func TestNewEntryRejectsExcessScale(t *testing.T) {
	_, err := NewEntry("cash", decimal.RequireFromString("33.33333"))
	assert.ErrorIs(t, err, ErrMalformedLedger)

	e, err := NewEntry("cash", decimal.RequireFromString("33.3333"))
	require.NoError(t, err)
	assert.Equal(t, "cash:33.3333", Encode(Breakdown{e}))
}
