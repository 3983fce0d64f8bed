package transcode_test

import (
	"errors"
	"math"
	"testing"

	"github.com/glizzus/encore/internal/transcode"
)

func TestPlanBitrate(t *testing.T) {
	tests := []struct {
		name       string
		duration   float64
		targetSize int64
		audio      int64
		overhead   float64
		floor      int64
		want       int64
	}{
		{
			name:       "one minute at seven megabytes",
			duration:   60,
			targetSize: 7_000_000,
			audio:      48_000,
			overhead:   0.95,
			floor:      80_000,
			// floor(7_000_000*8*0.95/60) = 886_666
			want: 838_666,
		},
		{
			name:       "no audio reservation",
			duration:   120,
			targetSize: 8_000_000,
			audio:      0,
			overhead:   1,
			floor:      0,
			want:       533_333,
		},
		{
			name:       "floor wins for long inputs",
			duration:   7200,
			targetSize: 1_000_000,
			audio:      96_000,
			overhead:   0.9,
			floor:      64_000,
			want:       64_000,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := transcode.PlanBitrate(tc.duration, tc.targetSize, tc.audio, tc.overhead, tc.floor)
			if err != nil {
				t.Fatalf("PlanBitrate() returned error: %v", err)
			}
			if got != tc.want {
				t.Errorf("PlanBitrate() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPlanBitrateRejectsNonPositiveDuration(t *testing.T) {
	for _, d := range []float64{0, -1, math.NaN()} {
		_, err := transcode.PlanBitrate(d, 7_000_000, 48_000, 0.95, 80_000)
		if !errors.Is(err, transcode.ErrInvalidInput) {
			t.Errorf("PlanBitrate(duration=%v) error = %v, want ErrInvalidInput", d, err)
		}
	}
}

func TestPlanBitrateNeverBelowFloor(t *testing.T) {
	const floor = 80_000
	for _, target := range []int64{0, 1, 1_000, 100_000, 1_000_000} {
		for _, duration := range []float64{1, 60, 3600, 86_400} {
			got, err := transcode.PlanBitrate(duration, target, 128_000, 0.85, floor)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got < floor {
				t.Errorf("PlanBitrate(%v, %d) = %d, below floor %d", duration, target, got, floor)
			}
		}
	}
}

func TestPlanBitrateMonotonic(t *testing.T) {
	const (
		audio    = 64_000
		overhead = 0.93
		floor    = 50_000
	)

	prev := int64(math.MinInt64)
	for target := int64(500_000); target <= 50_000_000; target += 1_250_000 {
		got, err := transcode.PlanBitrate(90, target, audio, overhead, floor)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got < prev {
			t.Fatalf("bitrate decreased as target grew: %d then %d at target %d", prev, got, target)
		}
		prev = got
	}

	prev = int64(math.MaxInt64)
	for duration := 5.0; duration <= 7200; duration *= 1.7 {
		got, err := transcode.PlanBitrate(duration, 8_000_000, audio, overhead, floor)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got > prev {
			t.Fatalf("bitrate increased as duration grew: %d then %d at duration %v", prev, got, duration)
		}
		prev = got
	}
}

func TestDefaultLadderIsValid(t *testing.T) {
	ladder := transcode.DefaultLadder()
	if err := ladder.Validate(); err != nil {
		t.Fatalf("DefaultLadder().Validate() = %v", err)
	}
	if ladder[0].MaxHeight != 0 || ladder[0].MaxFPS != 0 {
		t.Errorf("first rung must keep source resolution and frame rate, got %+v", ladder[0])
	}
	last := ladder[len(ladder)-1]
	if last.Codecs[0] != transcode.CodecHEVCOpus {
		t.Errorf("last rung should lead with the most efficient codec pair, got %s", last.Codecs[0])
	}
}

func TestLadderValidate(t *testing.T) {
	codecs := []transcode.CodecPair{transcode.CodecAVCAAC}
	tests := []struct {
		name   string
		ladder transcode.Ladder
	}{
		{name: "empty", ladder: transcode.Ladder{}},
		{
			name:   "no codecs",
			ladder: transcode.Ladder{{MinVideoBitrate: 1, Overhead: 0.9}},
		},
		{
			name:   "bad overhead",
			ladder: transcode.Ladder{{Codecs: codecs, Overhead: 1.2}},
		},
		{
			name: "not escalating",
			ladder: transcode.Ladder{
				{MaxHeight: 480, Codecs: codecs, MinVideoBitrate: 100, Overhead: 0.9},
				{MaxHeight: 720, Codecs: codecs, MinVideoBitrate: 100, Overhead: 0.9},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.ladder.Validate(); !errors.Is(err, transcode.ErrInvalidInput) {
				t.Errorf("Validate() = %v, want ErrInvalidInput", err)
			}
		})
	}
}
