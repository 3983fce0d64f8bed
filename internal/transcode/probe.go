package transcode

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProbeResult is the subset of ffprobe output the pipeline needs.
type ProbeResult struct {
	Duration   float64
	Size       int64
	FormatName string
	Width      int
	Height     int
	HasVideo   bool
	HasAudio   bool
	Streams    []Stream
}

type Stream struct {
	Index     int
	CodecType string
	CodecName string
}

// ParseProbeJSON converts raw ffprobe JSON output into a ProbeResult.
// When the container carries no duration, the longest stream duration is used.
func ParseProbeJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	pr := &ProbeResult{
		Duration:   parseFloat(raw.Format.Duration),
		Size:       parseInt64(raw.Format.Size),
		FormatName: raw.Format.FormatName,
	}

	var longest float64
	for _, s := range raw.Streams {
		pr.Streams = append(pr.Streams, Stream{
			Index:     s.Index,
			CodecType: s.CodecType,
			CodecName: s.CodecName,
		})
		longest = max(longest, parseFloat(s.Duration))

		switch s.CodecType {
		case "video":
			if s.Disposition["attached_pic"] == 1 || pr.HasVideo {
				continue
			}
			pr.HasVideo = true
			pr.Width = s.Width
			pr.Height = s.Height
		case "audio":
			pr.HasAudio = true
		}
	}

	if pr.Duration <= 0 {
		pr.Duration = longest
	}
	return pr, nil
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ffprobeStream struct {
	Index       int            `json:"index"`
	CodecName   string         `json:"codec_name"`
	CodecType   string         `json:"codec_type"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Duration    string         `json:"duration"`
	Disposition map[string]int `json:"disposition"`
}

// ffprobe reports numbers as strings.

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
