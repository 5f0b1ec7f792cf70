package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"104.9376", "104.94"},
		{"104.935", "104.94"},
		{"104.934", "104.93"},
		{"-104.935", "-104.94"},
		{"100", "100"},
	}
	for _, tt := range tests {
		got := RoundMoney(decimal.RequireFromString(tt.in))
		require.True(t, got.Equal(decimal.RequireFromString(tt.want)),
			"RoundMoney(%s) = %s, want %s", tt.in, got, tt.want)
	}
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(1000), decimal.NewFromInt(10))
	require.True(t, got.Equal(decimal.NewFromInt(100)))

	got = Percent(decimal.RequireFromString("1234.56"), decimal.RequireFromString("8.5"))
	require.True(t, got.Equal(decimal.RequireFromString("104.9376")), "got %s", got)
}
