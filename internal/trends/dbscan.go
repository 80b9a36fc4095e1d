package trends

import "math"

// Noise is the label for points belonging to no cluster.
const Noise = -1

// UnitNormalize scales a vector to unit length. Zero vectors stay zero.
func UnitNormalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

// CosineDistance between two unit vectors: 1 − dot.
func CosineDistance(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot
}

// DBSCAN labels points by density: core points have at least minPts
// neighbors (self included) within eps; clusters grow from core points;
// everything unreachable is Noise. Labels are 0-based cluster ids in
// discovery order, so the result is deterministic for a fixed input order.
//
// The O(n²) neighbor scan is deliberate: the trends window is capped at a
// few hundred points.
func DBSCAN(points [][]float32, eps float64, minPts int) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	visited := make([]bool, n)
	cluster := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		neighbors := regionQuery(points, i, eps)
		if len(neighbors) < minPts {
			continue
		}
		labels[i] = cluster
		// Expand: queue holds candidate members; core members contribute
		// their own neighborhoods.
		queue := append([]int(nil), neighbors...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if !visited[j] {
				visited[j] = true
				jn := regionQuery(points, j, eps)
				if len(jn) >= minPts {
					queue = append(queue, jn...)
				}
			}
			if labels[j] == Noise {
				labels[j] = cluster
			}
		}
		cluster++
	}
	return labels
}

func regionQuery(points [][]float32, i int, eps float64) []int {
	var neighbors []int
	for j := range points {
		if CosineDistance(points[i], points[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
