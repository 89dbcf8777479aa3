package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestFirstNonNull(t *testing.T) {
	tests := []struct {
		name       string
		candidates []*string
		want       string
		ok         bool
	}{
		{name: "first numeric", candidates: []*string{str("120.50"), str("50"), nil}, want: "120.5", ok: true},
		{name: "skips nil", candidates: []*string{nil, str("50"), str("7")}, want: "50", ok: true},
		{name: "empty first field is zero", candidates: []*string{str(""), str("50"), nil}, want: "0", ok: true},
		{name: "non-numeric first field is zero", candidates: []*string{str("n/a"), str("50"), nil}, want: "0", ok: true},
		{name: "all nil", candidates: []*string{nil, nil, nil}, want: "0", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstNonNull(tt.candidates...)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, got.Equal(MustMoney(tt.want)), "got %s", got)
		})
	}
}

func TestCoerce(t *testing.T) {
	assert.True(t, Coerce(nil).IsZero())
	assert.True(t, Coerce(" 12.5 ").Equal(MustMoney("12.5")))
	assert.True(t, Coerce("abc").IsZero())
	assert.True(t, Coerce(str("3")).Equal(MustMoney("3")))
	assert.True(t, Coerce(int64(4)).Equal(MustMoney("4")))
}

func TestFitsScale(t *testing.T) {
	assert.True(t, FitsScale(MustMoney("12.65"), MoneyPlaces))
	assert.True(t, FitsScale(MustMoney("12.650"), MoneyPlaces))
	assert.True(t, FitsScale(MustMoney("100"), MoneyPlaces))
	assert.False(t, FitsScale(MustMoney("0.001"), MoneyPlaces))
	assert.True(t, FitsScale(MustMoney("10.125"), WeightPlaces))
	assert.False(t, FitsScale(MustMoney("10.1255"), WeightPlaces))
}

func TestSum(t *testing.T) {
	require.True(t, Sum().IsZero())
	assert.True(t, Sum(MustMoney("1.10"), MustMoney("2.20")).Equal(MustMoney("3.3")))
}
