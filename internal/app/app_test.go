package app

import (
	"testing"
	"time"
)

func TestWeekSince(t *testing.T) {
	start := time.Date(2024, 9, 4, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		now  time.Time
		want int
	}{
		{start.Add(-48 * time.Hour), 1},
		{start, 1},
		{start.Add(6*24*time.Hour + 23*time.Hour), 1},
		{start.Add(7 * 24 * time.Hour), 2},
		{start.Add(30 * 24 * time.Hour), 5},
	}
	for _, c := range cases {
		if got := WeekSince(start, c.now); got != c.want {
			t.Fatalf("для %v ожидали %d, получили %d", c.now, c.want, got)
		}
	}
}
