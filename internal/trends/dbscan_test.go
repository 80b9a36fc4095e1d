package trends

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// axis returns a unit vector along the given axis with a small perturbation
// on a second axis, still well inside eps=0.3 of its neighbors.
func axis(dim, main int, wobble float32) []float32 {
	v := make([]float32, dim)
	v[main] = 1
	if wobble != 0 {
		v[(main+1)%dim] = wobble
	}
	return UnitNormalize(v)
}

func TestDBSCAN_TwoClustersAndNoise(t *testing.T) {
	points := [][]float32{
		axis(8, 0, 0), axis(8, 0, 0.05), axis(8, 0, -0.05), axis(8, 0, 0.1), axis(8, 0, -0.1),
		axis(8, 3, 0), axis(8, 3, 0.05), axis(8, 3, -0.05), axis(8, 3, 0.1), axis(8, 3, -0.1),
		axis(8, 6, 0), // lone point, no neighborhood
	}
	labels := DBSCAN(points, 0.3, 5)

	require.Equal(t, labels[0], labels[1])
	require.Equal(t, labels[0], labels[4])
	require.Equal(t, labels[5], labels[9])
	require.NotEqual(t, labels[0], labels[5])
	require.Equal(t, Noise, labels[10])
}

func TestDBSCAN_ExactlyMinSamplesFormsOneCluster(t *testing.T) {
	points := [][]float32{
		axis(4, 0, 0), axis(4, 0, 0.05), axis(4, 0, -0.05), axis(4, 0, 0.1), axis(4, 0, -0.1),
	}
	labels := DBSCAN(points, 0.3, 5)
	for _, l := range labels {
		require.Equal(t, 0, l)
	}
}

func TestDBSCAN_BelowMinSamplesIsAllNoise(t *testing.T) {
	points := [][]float32{
		axis(4, 0, 0), axis(4, 0, 0.05), axis(4, 0, -0.05),
	}
	labels := DBSCAN(points, 0.3, 5)
	for _, l := range labels {
		require.Equal(t, Noise, l)
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	require.InDelta(t, 1.0, CosineDistance(a, b), 1e-6)
	require.InDelta(t, 0.0, CosineDistance(a, a), 1e-6)
}

func TestUnitNormalize(t *testing.T) {
	v := UnitNormalize([]float32{3, 4})
	require.InDelta(t, 0.6, float64(v[0]), 1e-6)
	require.InDelta(t, 0.8, float64(v[1]), 1e-6)
	// Zero vectors pass through untouched.
	z := UnitNormalize([]float32{0, 0})
	require.Equal(t, []float32{0, 0}, z)
}
