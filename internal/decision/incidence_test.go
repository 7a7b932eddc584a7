package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIncidence_Auto(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"0.92", 92},
		{"0.05", 5},
		{"92%", 92},
		{"0.5%", 0.5},
		{"92,5", 92.5},
		{"1", 100},
		{"28.6", 28.6},
		{"150", 100},
		{"-3", 0},
	}

	for _, tt := range tests {
		got, err := NormalizeIncidence(tt.raw, IncidenceAuto)
		require.NoError(t, err, tt.raw)
		assert.InDelta(t, tt.want, got, 1e-9, tt.raw)
	}
}

func TestNormalizeIncidence_ExplicitUnits(t *testing.T) {
	got, err := NormalizeIncidence("0.5", IncidencePercent)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)

	got, err = NormalizeIncidence("0.25", IncidenceFraction)
	require.NoError(t, err)
	assert.InDelta(t, 25, got, 1e-9)

	got, err = NormalizeIncidence("40%", IncidenceFraction)
	require.NoError(t, err)
	assert.InDelta(t, 40, got, 1e-9)
}

func TestNormalizeIncidence_Invalid(t *testing.T) {
	for _, raw := range []string{"", " % ", "abc", "NaN"} {
		_, err := NormalizeIncidence(raw, IncidenceAuto)
		assert.Error(t, err, raw)
	}
}

func TestParseIncidenceUnit(t *testing.T) {
	u, err := ParseIncidenceUnit("")
	require.NoError(t, err)
	assert.Equal(t, IncidenceAuto, u)

	u, err = ParseIncidenceUnit(" Percent ")
	require.NoError(t, err)
	assert.Equal(t, IncidencePercent, u)

	_, err = ParseIncidenceUnit("permille")
	assert.Error(t, err)
}
