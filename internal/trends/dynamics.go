package trends

import (
	"fmt"
	"strings"
	"time"
)

// Dynamics summarizes a cluster's temporal shape over the window.
type Dynamics struct {
	Volume         int     `json:"volume"`
	Momentum       float64 `json:"momentum"`
	BurstIntensity float64 `json:"burst_intensity"`
}

// ParseTimestamp accepts the ISO 8601 forms that leak out of feed payloads
// and JSON round-trips, trailing Z included. Timestamps must be parsed once
// at the boundary; nothing downstream does string arithmetic.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// ComputeDynamics bins member timestamps into hourly buckets across
// [windowStart, windowEnd) and derives:
//
//	momentum = (count in last ¼ − count in first ¼) / max(count in first ¼, 1)
//	burst    = max bucket count / mean bucket count
func ComputeDynamics(times []time.Time, windowStart, windowEnd time.Time) Dynamics {
	d := Dynamics{Volume: len(times)}
	hours := int(windowEnd.Sub(windowStart) / time.Hour)
	if hours < 1 || len(times) == 0 {
		return d
	}
	buckets := make([]int, hours)
	for _, t := range times {
		idx := int(t.Sub(windowStart) / time.Hour)
		if idx < 0 {
			idx = 0
		}
		if idx >= hours {
			idx = hours - 1
		}
		buckets[idx]++
	}

	quarter := hours / 4
	if quarter < 1 {
		quarter = 1
	}
	first, last, max, total := 0, 0, 0, 0
	for i, c := range buckets {
		total += c
		if c > max {
			max = c
		}
		if i < quarter {
			first += c
		}
		if i >= hours-quarter {
			last += c
		}
	}
	den := first
	if den < 1 {
		den = 1
	}
	d.Momentum = float64(last-first) / float64(den)
	mean := float64(total) / float64(hours)
	if mean > 0 {
		d.BurstIntensity = float64(max) / mean
	}
	return d
}
