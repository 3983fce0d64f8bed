package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// Entry is one line of extractor output.
type Entry struct {
	StreamURL string
	PageURL   string
	Title     string
	Uploader  string
	Duration  int
	Thumbnail string
}

// Extractor looks media up with yt-dlp.
type Extractor interface {
	// Extract resolves target to playable entries, including stream URLs.
	Extract(ctx context.Context, target string) ([]Entry, error)
	// ExtractFlat lists up to limit playlist entries without resolving them.
	ExtractFlat(ctx context.Context, target string, limit int) ([]Entry, error)
}

const (
	detailTemplate = "%(url)s\t%(webpage_url)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(thumbnail)s"
	flatTemplate   = "%(url)s\t%(title)s\t%(uploader)s\t%(duration)s"
)

// YTDLPExtractor runs the yt-dlp binary.
type YTDLPExtractor struct {
	// Path to the yt-dlp executable. Empty means look it up on PATH.
	Path string
}

var _ Extractor = (*YTDLPExtractor)(nil)

func (x *YTDLPExtractor) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig()
	if x.Path != "" {
		cmd.SetExecutable(x.Path)
	}
	return cmd
}

func (x *YTDLPExtractor) Extract(ctx context.Context, target string) ([]Entry, error) {
	res, err := x.command().
		Format("bestaudio/best").
		Print(detailTemplate).
		NoPlaylist().
		Run(ctx, "--skip-download", target)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp lookup failed: %w", describe(err, res))
	}
	return parseDetail(res.Stdout), nil
}

func (x *YTDLPExtractor) ExtractFlat(ctx context.Context, target string, limit int) ([]Entry, error) {
	res, err := x.command().
		FlatPlaylist().
		Print(flatTemplate).
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		Run(ctx, "--yes-playlist", target)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp playlist failed: %w", describe(err, res))
	}
	return parseFlat(res.Stdout), nil
}

func describe(err error, res *ytdlp.Result) error {
	if res == nil || strings.TrimSpace(res.Stderr) == "" {
		return err
	}
	return fmt.Errorf("%w, stderr: %s", err, strings.TrimSpace(res.Stderr))
}

// field returns yt-dlp's value for a template field, mapping its "NA"
// placeholder to empty.
func field(parts []string, i int) string {
	if i >= len(parts) {
		return ""
	}
	v := strings.TrimSpace(parts[i])
	if v == "NA" {
		return ""
	}
	return v
}

func parseSeconds(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}

func parseDetail(stdout string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 3 || field(parts, 0) == "" {
			continue
		}
		entries = append(entries, Entry{
			StreamURL: field(parts, 0),
			PageURL:   field(parts, 1),
			Title:     field(parts, 2),
			Uploader:  field(parts, 3),
			Duration:  parseSeconds(field(parts, 4)),
			Thumbnail: field(parts, 5),
		})
	}
	return entries
}

func parseFlat(stdout string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 2 || field(parts, 0) == "" {
			continue
		}
		entries = append(entries, Entry{
			PageURL:  field(parts, 0),
			Title:    field(parts, 1),
			Uploader: field(parts, 2),
			Duration: parseSeconds(field(parts, 3)),
		})
	}
	return entries
}
