package player

import (
	"context"

	"github.com/glizzus/encore/internal/music"
)

type EventKind int

const (
	EventNowPlaying EventKind = iota
	EventQueueEmpty
	// EventSkipped means an item could not be opened and was dropped.
	EventSkipped
	// EventPlaybackFailed means a track stopped early because of an error.
	EventPlaybackFailed
)

func (k EventKind) String() string {
	switch k {
	case EventNowPlaying:
		return "now_playing"
	case EventQueueEmpty:
		return "queue_empty"
	case EventSkipped:
		return "skipped"
	case EventPlaybackFailed:
		return "playback_failed"
	default:
		return "unknown"
	}
}

type Event struct {
	GuildID string
	Kind    EventKind
	Item    *music.PlayableItem
	Err     error
}

// Listener is told about playback progress, usually to post it to a text
// channel.
type Listener interface {
	Notify(ctx context.Context, event Event)
}

type ListenerFunc func(ctx context.Context, event Event)

func (f ListenerFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}
