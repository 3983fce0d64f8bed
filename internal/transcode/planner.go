package transcode

import (
	"fmt"
	"math"
)

// CodecPair names an ffmpeg video encoder and audio encoder used together.
type CodecPair struct {
	Video string
	Audio string
}

func (c CodecPair) String() string {
	return c.Video + "+" + c.Audio
}

var (
	CodecHEVCOpus = CodecPair{Video: "libx265", Audio: "libopus"}
	CodecAVCOpus  = CodecPair{Video: "libx264", Audio: "libopus"}
	CodecAVCAAC   = CodecPair{Video: "libx264", Audio: "aac"}
)

// DefaultCodecs is ordered from most to least efficient.
var DefaultCodecs = []CodecPair{CodecHEVCOpus, CodecAVCOpus, CodecAVCAAC}

// Rung is one step of compression aggressiveness.
type Rung struct {
	// MaxHeight caps the output height in pixels. Zero keeps the source resolution.
	MaxHeight int
	// MaxFPS caps the output frame rate. Zero keeps the source frame rate.
	MaxFPS           int
	Codecs           []CodecPair
	MinVideoBitrate  int64
	AudioBitrateKbps int
	// Overhead is the share of the byte budget available to the streams
	// once container overhead is accounted for.
	Overhead float64
}

func (r Rung) AudioBitrate() int64 {
	return int64(r.AudioBitrateKbps) * 1000
}

// Ladder is an ordered escalation of rungs, least aggressive first.
type Ladder []Rung

// DefaultLadder keeps the source resolution and frame rate on the first
// rung and only scales down once that has overshot.
func DefaultLadder() Ladder {
	return Ladder{
		{MaxHeight: 0, Codecs: DefaultCodecs, MinVideoBitrate: 200_000, AudioBitrateKbps: 96, Overhead: 0.95},
		{MaxHeight: 720, Codecs: DefaultCodecs, MinVideoBitrate: 150_000, AudioBitrateKbps: 64, Overhead: 0.93},
		{MaxHeight: 480, MaxFPS: 24, Codecs: DefaultCodecs, MinVideoBitrate: 100_000, AudioBitrateKbps: 48, Overhead: 0.90},
		{MaxHeight: 360, MaxFPS: 20, Codecs: DefaultCodecs, MinVideoBitrate: 64_000, AudioBitrateKbps: 32, Overhead: 0.85},
	}
}

// Validate checks that every rung is usable and that each rung is strictly
// more aggressive than the one before it.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("%w: ladder has no rungs", ErrInvalidInput)
	}
	for i, r := range l {
		if len(r.Codecs) == 0 {
			return fmt.Errorf("%w: rung %d has no codec pairs", ErrInvalidInput, i)
		}
		if r.Overhead <= 0 || r.Overhead > 1 {
			return fmt.Errorf("%w: rung %d overhead %v outside (0, 1]", ErrInvalidInput, i, r.Overhead)
		}
		if i == 0 {
			continue
		}
		prev := l[i-1]
		lowerHeight := heightRank(r.MaxHeight) < heightRank(prev.MaxHeight)
		lowerFloor := r.MinVideoBitrate < prev.MinVideoBitrate
		if !lowerHeight && !lowerFloor {
			return fmt.Errorf("%w: rung %d is not more aggressive than rung %d", ErrInvalidInput, i, i-1)
		}
	}
	return nil
}

func heightRank(h int) int {
	if h <= 0 {
		return math.MaxInt
	}
	return h
}

// PlanBitrate returns the video bitrate in bits per second that fills
// targetSize over durationSeconds once audio is reserved:
//
//	max(minVideo, floor(targetSize*8*overhead/duration) - audio)
func PlanBitrate(durationSeconds float64, targetSize int64, audioBitrate int64, overhead float64, minVideoBitrate int64) (int64, error) {
	if math.IsNaN(durationSeconds) || durationSeconds <= 0 {
		return 0, fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidInput, durationSeconds)
	}
	total := int64(math.Floor(float64(targetSize) * 8 * overhead / durationSeconds))
	return max(minVideoBitrate, total-audioBitrate), nil
}
