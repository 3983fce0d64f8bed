package schedule_test

import (
	"testing"
	"time"

	"github.com/glizzus/encore/internal/schedule"
	"github.com/google/go-cmp/cmp"
)

func TestNextRunTimesAfterSuccess(t *testing.T) {
	table := []struct {
		name  string
		cron  string
		after time.Time
		n     int
		want  []time.Time
	}{
		{
			name:  "default scratch sweep",
			cron:  "*/15 * * * *",
			after: time.Date(2024, 3, 4, 12, 7, 0, 0, time.UTC),
			n:     3,
			want: []time.Time{
				time.Date(2024, 3, 4, 12, 15, 0, 0, time.UTC),
				time.Date(2024, 3, 4, 12, 30, 0, 0, time.UTC),
				time.Date(2024, 3, 4, 12, 45, 0, 0, time.UTC),
			},
		},
		{
			name:  "history pruning crosses midnight",
			cron:  "0 4 * * *",
			after: time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC),
			n:     2,
			want: []time.Time{
				time.Date(2024, 3, 5, 4, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 6, 4, 0, 0, 0, time.UTC),
			},
		},
		{
			name:  "on the boundary is exclusive",
			cron:  "*/15 * * * *",
			after: time.Date(2024, 3, 4, 12, 15, 0, 0, time.UTC),
			n:     1,
			want:  []time.Time{time.Date(2024, 3, 4, 12, 30, 0, 0, time.UTC)},
		},
		{
			name:  "monthly macro",
			cron:  "@monthly",
			after: time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC),
			n:     2,
			want: []time.Time{
				time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tc := range table {
		t.Run(tc.name, func(t *testing.T) {
			got, err := schedule.NextRunTimesAfter(tc.cron, tc.after, tc.n)
			if err != nil {
				t.Fatalf("NextRunTimesAfter(%q, %v, %d) returned error: %v", tc.cron, tc.after, tc.n, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("NextRunTimesAfter(%q) mismatch (-want +got):\n%s", tc.cron, diff)
			}
		})
	}
}

func TestNextRunTimesAfterFailure(t *testing.T) {
	table := []struct {
		name string
		cron string
		n    int
	}{
		{name: "not a cron expression", cron: "every fifteen minutes", n: 3},
		{name: "non-positive count", cron: "*/15 * * * *", n: 0},
	}

	for _, tc := range table {
		t.Run(tc.name, func(t *testing.T) {
			got, err := schedule.NextRunTimesAfter(tc.cron, time.Now(), tc.n)
			if err == nil {
				t.Fatalf("NextRunTimesAfter(%q, %d) expected error but got result: %v", tc.cron, tc.n, got)
			}
		})
	}
}

func TestValidateCron(t *testing.T) {
	if err := schedule.ValidateCron("*/15 * * * *"); err != nil {
		t.Errorf("ValidateCron() returned error for a valid expression: %v", err)
	}
	if err := schedule.ValidateCron("*/15 * *"); err == nil {
		t.Error("ValidateCron() accepted a truncated expression")
	}
}
