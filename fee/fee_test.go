package fee

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptAll(string) bool { return true }

func newTestPolicy(t *testing.T, pct float64, flat int64, min int64) *Policy {
	t.Helper()
	p, err := NewPolicy(Schedule{
		Percentage:     pct,
		Flat:           big.NewInt(flat),
		Collector:      "collector",
		MinEnforceable: big.NewInt(min),
	}, acceptAll)
	require.NoError(t, err)
	return p
}

func TestNewPolicy_InvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		validate func(string) bool
	}{
		{"negative percentage", Schedule{Percentage: -0.1, Collector: "c"}, acceptAll},
		{"percentage above 100", Schedule{Percentage: 100.01, Collector: "c"}, acceptAll},
		{"NaN percentage", Schedule{Percentage: math.NaN(), Collector: "c"}, acceptAll},
		{"negative flat", Schedule{Flat: big.NewInt(-1), Collector: "c"}, acceptAll},
		{"negative minimum", Schedule{Collector: "c", MinEnforceable: big.NewInt(-5)}, acceptAll},
		{"bad collector", Schedule{Collector: "nope"}, func(string) bool { return false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.schedule, tt.validate)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidFeeConfig)
		})
	}
}

func TestNewPolicy_NilValidator(t *testing.T) {
	_, err := NewPolicy(Schedule{Collector: "c"}, nil)
	assert.ErrorIs(t, err, ErrNilValidator)
}

func TestNewPolicy_Bounds(t *testing.T) {
	for _, pct := range []float64{0, 100} {
		_, err := NewPolicy(Schedule{Percentage: pct, Collector: "c"}, acceptAll)
		assert.NoError(t, err, "percentage %v", pct)
	}
}

func TestPercentage_HalfPercentBelowDust(t *testing.T) {
	p := newTestPolicy(t, 0.5, 0, 546)

	d := p.EvaluateSats(ModePercentage, 100000)
	assert.Equal(t, uint64(500), d.Sats())
	assert.False(t, d.Required, "500 is below the 546 dust threshold")
	assert.Equal(t, int64(0), d.Charged().Int64())
}

func TestPercentage_Floors(t *testing.T) {
	p := newTestPolicy(t, 0.5, 0, 1)

	tests := []struct {
		value uint64
		want  uint64
	}{
		{0, 0},
		{199, 0},
		{200, 1},
		{399, 1},
		{1000000, 5000},
		{123456789, 617283},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.EvaluateSats(ModePercentage, tt.value).Sats(), "value %d", tt.value)
	}
}

func TestPercentage_ExactDecimalRate(t *testing.T) {
	// 0.1 and 0.7 are not exact in binary floating point.
	p := newTestPolicy(t, 0.7, 0, 1)
	assert.Equal(t, uint64(7), p.EvaluateSats(ModePercentage, 1000).Sats())

	p = newTestPolicy(t, 0.1, 0, 1)
	assert.Equal(t, uint64(1), p.EvaluateSats(ModePercentage, 1000).Sats())
}

func TestPercentage_Wei(t *testing.T) {
	p := newTestPolicy(t, 0.5, 0, 1)
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)

	d := p.Percentage(oneEther)
	want, _ := new(big.Int).SetString("5000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(d.Amount))
	assert.True(t, d.Required)
}

func TestPercentage_Monotonic(t *testing.T) {
	p := newTestPolicy(t, 2.75, 0, 546)
	prev := uint64(0)
	for v := uint64(0); v < 50000; v += 37 {
		got := p.EvaluateSats(ModePercentage, v).Sats()
		require.GreaterOrEqual(t, got, prev, "fee decreased at value %d", v)
		prev = got
	}
}

func TestFlat_IgnoresValue(t *testing.T) {
	p := newTestPolicy(t, 0.5, 10000, 546)

	for _, v := range []uint64{0, 1, 1 << 40} {
		d := p.EvaluateSats(ModeFlat, v)
		assert.Equal(t, uint64(10000), d.Sats())
		assert.True(t, d.Required)
	}
}

func TestFlat_ZeroNeverRequired(t *testing.T) {
	p := newTestPolicy(t, 0, 0, 0)
	d := p.Flat()
	assert.False(t, d.Required)
	assert.Equal(t, int64(0), d.Charged().Int64())
}

func TestSchedule_ReturnsCopy(t *testing.T) {
	flat := big.NewInt(10)
	p, err := NewPolicy(Schedule{Flat: flat, Collector: "c"}, acceptAll)
	require.NoError(t, err)

	flat.SetInt64(99)
	s := p.Schedule()
	assert.Equal(t, int64(10), s.Flat.Int64())
	s.Flat.SetInt64(42)
	assert.Equal(t, uint64(10), p.Flat().Sats())
	assert.Equal(t, int64(1), s.MinEnforceable.Int64())
	assert.Equal(t, "c", p.Collector())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "percentage", ModePercentage.String())
	assert.Equal(t, "flat", ModeFlat.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}
