package trends

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeDynamics_MomentumAndBurst(t *testing.T) {
	// 24 hourly bins with counts [0,…,0,5,10,15]: momentum (30−0)/1 = 30,
	// burst 15 / (30/24) = 12.
	start := time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var times []time.Time
	addAt := func(hour, n int) {
		for i := 0; i < n; i++ {
			times = append(times, start.Add(time.Duration(hour)*time.Hour+time.Minute))
		}
	}
	addAt(21, 5)
	addAt(22, 10)
	addAt(23, 15)

	d := ComputeDynamics(times, start, end)
	require.Equal(t, 30, d.Volume)
	require.InDelta(t, 30.0, d.Momentum, 1e-9)
	require.InDelta(t, 12.0, d.BurstIntensity, 1e-9)
}

func TestComputeDynamics_FlatClusterHasNoMomentum(t *testing.T) {
	start := time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var times []time.Time
	for h := 0; h < 24; h++ {
		times = append(times, start.Add(time.Duration(h)*time.Hour))
	}
	d := ComputeDynamics(times, start, end)
	require.Equal(t, 24, d.Volume)
	require.InDelta(t, 0.0, d.Momentum, 1e-9)
	require.InDelta(t, 1.0, d.BurstIntensity, 1e-9)
}

func TestComputeDynamics_Empty(t *testing.T) {
	start := time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)
	d := ComputeDynamics(nil, start, start.Add(24*time.Hour))
	require.Zero(t, d.Volume)
	require.Zero(t, d.Momentum)
	require.Zero(t, d.BurstIntensity)
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2026-07-06T10:30:00Z",
		"2026-07-06T10:30:00.123456789Z",
		"2026-07-06T10:30:00+00:00",
		"2026-07-06T10:30:00",
		"2026-07-06 10:30:00",
	} {
		got, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		require.Equal(t, time.July, got.Month())
		require.Equal(t, 30, got.Minute())
	}
	_, err := ParseTimestamp("last tuesday")
	require.Error(t, err)
}
