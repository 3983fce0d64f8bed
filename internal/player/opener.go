package player

import (
	"context"
	"fmt"

	"github.com/glizzus/encore/internal/music"
	"github.com/glizzus/encore/internal/opus"
	"github.com/glizzus/encore/internal/voice"
)

// StreamResolver returns a direct, playable URL for an item.
type StreamResolver interface {
	StreamURL(ctx context.Context, item *music.PlayableItem) (string, error)
}

// FFmpegOpener resolves an item's stream and encodes it to Opus with FFmpeg.
type FFmpegOpener struct {
	Resolver   StreamResolver
	FFmpegPath string
	Bitrate    int
}

var _ SourceOpener = (*FFmpegOpener)(nil)

func (o *FFmpegOpener) Open(ctx context.Context, item *music.PlayableItem, volume float64) (voice.Source, error) {
	url, err := o.Resolver.StreamURL(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stream for %q: %w", item.Title, err)
	}

	// The encode outlives the request that started it.
	stream, err := opus.Encode(context.WithoutCancel(ctx), opus.EncodeOptions{
		FFmpegPath: o.FFmpegPath,
		Input:      url,
		Volume:     volume,
		Bitrate:    o.Bitrate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start encoder for %q: %w", item.Title, err)
	}
	return stream, nil
}
