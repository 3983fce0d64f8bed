package transcode

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PassSpec describes one pass of a two-pass encode.
type PassSpec struct {
	Input        string
	Output       string
	PassLog      string
	Pass         int
	Codecs       CodecPair
	VideoBitrate int64
	AudioBitrate int64
	MaxHeight    int
	MaxFPS       int
	HasAudio     bool
}

// PassArgs builds the ffmpeg arguments, without the binary, for one pass.
// Pass 1 writes only the statistics file; pass 2 writes the artifact.
func PassArgs(s PassSpec) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-i", s.Input}

	if vf := videoFilters(s.MaxHeight, s.MaxFPS); vf != "" {
		args = append(args, "-vf", vf)
	}

	args = append(args,
		"-c:v", s.Codecs.Video,
		"-b:v", strconv.FormatInt(s.VideoBitrate, 10),
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
	)
	args = append(args, passFlags(s.Codecs.Video, s.Pass, s.PassLog)...)

	if s.Pass == 1 {
		return append(args, "-an", "-f", "null", os.DevNull)
	}

	if s.HasAudio {
		args = append(args, "-c:a", s.Codecs.Audio, "-b:a", strconv.FormatInt(s.AudioBitrate, 10))
	} else {
		args = append(args, "-an")
	}
	if s.Codecs.Video == "libx265" {
		args = append(args, "-tag:v", "hvc1")
	}
	return append(args, "-movflags", "+faststart", "-f", "mp4", s.Output)
}

func videoFilters(maxHeight, maxFPS int) string {
	var filters []string
	if maxHeight > 0 {
		filters = append(filters, fmt.Sprintf("scale=-2:'min(%d,ih)'", maxHeight))
	}
	if maxFPS > 0 {
		filters = append(filters, fmt.Sprintf("fps='min(%d,source_fps)'", maxFPS))
	}
	return strings.Join(filters, ",")
}

// libx265 keeps its own rate-control statistics and ignores -pass.
func passFlags(videoCodec string, pass int, passLog string) []string {
	if videoCodec == "libx265" {
		return []string{"-x265-params", fmt.Sprintf("pass=%d:stats=%s.log:log-level=error", pass, passLog)}
	}
	return []string{"-pass", strconv.Itoa(pass), "-passlogfile", passLog}
}
