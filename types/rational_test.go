package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRationalFromString(t *testing.T) {
	for _, tc := range []struct {
		Input string
		Num   int
		Den   int
	}{
		{"30", 30, 1},
		{"30/1", 30, 1},
		{"30000/1001", 30000, 1001},
		{"~23.976", 24000, 1001},
		{"~29.97", 30000, 1001},
		{"~29.93", 2993, 100},
		{"~25", 25, 1},
		{"~119.88", 120000, 1001},
		{"~0.3", 3, 10},
		{"0.33333", 33333, 100000},
		{"29.97", 2997, 100},
		{"0/1", 0, 1},
	} {
		r, err := RationalFromString(tc.Input)
		require.NoError(t, err, tc.Input)
		require.Equal(t, Rational{Num: tc.Num, Den: tc.Den}, r, tc.Input)
	}

	for _, input := range []string{"", "1/0", "invalid", "10/invalid", "~x"} {
		_, err := RationalFromString(input)
		require.Error(t, err, input)
	}
}

func TestRationalFlagValue(t *testing.T) {
	r := Rational{Num: 25, Den: 1}
	require.NoError(t, r.Set("~59.94"))
	require.Equal(t, "60000/1001", r.String())
	require.Equal(t, Rational{Num: 1001, Den: 60000}, r.Reverse())
	require.Error(t, r.Set("nope"))
	require.Equal(t, "60000/1001", r.String())
}
