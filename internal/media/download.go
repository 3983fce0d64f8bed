package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// Downloader fetches the video behind a link into dest.
type Downloader interface {
	Download(ctx context.Context, rawURL, dest string) error
}

type YTDLPDownloader struct {
	// Path to the yt-dlp executable. Empty means look it up on PATH.
	Path string
}

var _ Downloader = (*YTDLPDownloader)(nil)

func (d *YTDLPDownloader) Download(ctx context.Context, rawURL, dest string) error {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		NoPlaylist().
		Format("best[ext=mp4]/best").
		Output(dest)
	if d.Path != "" {
		cmd.SetExecutable(d.Path)
	}

	res, err := cmd.Run(ctx, rawURL)
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return fmt.Errorf("yt-dlp download failed: %w, stderr: %s", err, strings.TrimSpace(res.Stderr))
		}
		return fmt.Errorf("yt-dlp download failed: %w", err)
	}
	return nil
}
