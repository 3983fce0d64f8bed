// Package music holds the playback data model: items and the bounded queue.
package music

import (
	"fmt"
	"time"
)

// PlayableItem describes something the voice session can play. StreamURL
// is a direct media locator that may expire; PageURL is the stable page it
// was resolved from and can be used to resolve a fresh StreamURL.
type PlayableItem struct {
	Title           string
	PageURL         string
	StreamURL       string
	StreamExpiresAt time.Time
	DurationSeconds int
	ThumbnailURL    string
	Uploader        string
	RequestedBy     string
}

// StreamValid reports whether StreamURL can be used at now.
func (p *PlayableItem) StreamValid(now time.Time) bool {
	if p.StreamURL == "" {
		return false
	}
	return p.StreamExpiresAt.IsZero() || now.Before(p.StreamExpiresAt)
}

func (p *PlayableItem) Duration() time.Duration {
	return time.Duration(p.DurationSeconds) * time.Second
}

func (p PlayableItem) String() string {
	return fmt.Sprintf("%s [%s]", p.Title, FormatDuration(p.DurationSeconds))
}

// FormatDuration renders seconds as MM:SS, or HH:MM:SS past an hour.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "Unknown"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
