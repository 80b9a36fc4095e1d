package feeds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextBackoff(t *testing.T) {
	base := 5 * time.Minute
	cap := 6 * time.Hour

	require.Equal(t, 5*time.Minute, NextBackoff(1, base, cap))
	require.Equal(t, 10*time.Minute, NextBackoff(2, base, cap))
	require.Equal(t, 20*time.Minute, NextBackoff(3, base, cap))
	require.Equal(t, 160*time.Minute, NextBackoff(6, base, cap))
	// Failure 7 waits 5m·2^6 = 320m, still under the 6h cap; from failure 8
	// onward 5m·2^7 = 640m exceeds it and the cap applies.
	require.Equal(t, cap, NextBackoff(8, base, cap))
	require.Equal(t, cap, NextBackoff(50, base, cap))
	// Degenerate input clamps to one base interval.
	require.Equal(t, base, NextBackoff(0, base, cap))
}
