// Package resolver turns search strings and URLs into playable items using
// yt-dlp, and refreshes expiring stream URLs on demand.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glizzus/encore/internal/config"
	"github.com/glizzus/encore/internal/music"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	ErrNoResults = errors.New("no results found")
	ErrTooLong   = errors.New("item is longer than the allowed duration")
)

type Options struct {
	MaxDuration      time.Duration
	MaxPlaylistItems int
	// StreamTTL bounds how long a stream URL is trusted when the URL itself
	// does not say when it expires.
	StreamTTL time.Duration
	Limiter   *rate.Limiter
	Cache     StreamCache
	Logger    *slog.Logger
}

// OptionsFromConfig builds resolver options from configuration. The cache is
// left for the caller to choose.
func OptionsFromConfig(resolverCfg *config.ResolverConfig, musicCfg *config.MusicConfig) Options {
	return Options{
		MaxDuration:      musicCfg.MaxSongDuration,
		MaxPlaylistItems: musicCfg.MaxPlaylistItems,
		StreamTTL:        resolverCfg.StreamURLTTL,
		Limiter:          rate.NewLimiter(rate.Limit(resolverCfg.Rate), resolverCfg.Burst),
	}
}

type Resolver struct {
	extractor Extractor
	opts      Options
	group     singleflight.Group
	now       func() time.Time
	logger    *slog.Logger
}

func New(extractor Extractor, opts Options) *Resolver {
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryStreamCache()
	}
	if opts.MaxPlaylistItems <= 0 {
		opts.MaxPlaylistItems = 50
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{extractor: extractor, opts: opts, now: time.Now, logger: logger}
}

// IsPlaylist reports whether query looks like a playlist link.
func IsPlaylist(query string) bool {
	lower := strings.ToLower(query)
	return isURL(query) && (strings.Contains(lower, "list=") || strings.Contains(lower, "/playlist"))
}

func isURL(query string) bool {
	u, err := url.Parse(strings.TrimSpace(query))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Resolve yields the items query refers to: one item for a URL or search,
// or the leading entries of a playlist. Playlist entries are resolved one at a
// time as the sequence is consumed. An entry that fails is yielded as an
// error and the sequence continues.
func (r *Resolver) Resolve(ctx context.Context, query string) iter.Seq2[music.PlayableItem, error] {
	query = strings.TrimSpace(query)
	if IsPlaylist(query) {
		return r.resolvePlaylist(ctx, query)
	}

	return func(yield func(music.PlayableItem, error) bool) {
		item, err := r.resolveOne(ctx, query)
		yield(item, err)
	}
}

func (r *Resolver) resolveOne(ctx context.Context, query string) (music.PlayableItem, error) {
	target := query
	if !isURL(query) {
		target = "ytsearch1:" + query
	}

	if err := r.opts.Limiter.Wait(ctx); err != nil {
		return music.PlayableItem{}, err
	}
	entries, err := r.extractor.Extract(ctx, target)
	if err != nil {
		return music.PlayableItem{}, err
	}
	if len(entries) == 0 {
		return music.PlayableItem{}, fmt.Errorf("%w for %q", ErrNoResults, query)
	}

	item := r.toItem(entries[0])
	if item.PageURL == "" {
		item.PageURL = query
	}
	if err := r.checkDuration(item); err != nil {
		return item, err
	}
	r.remember(ctx, item)
	return item, nil
}

func (r *Resolver) resolvePlaylist(ctx context.Context, query string) iter.Seq2[music.PlayableItem, error] {
	return func(yield func(music.PlayableItem, error) bool) {
		if err := r.opts.Limiter.Wait(ctx); err != nil {
			yield(music.PlayableItem{}, err)
			return
		}
		entries, err := r.extractor.ExtractFlat(ctx, query, r.opts.MaxPlaylistItems)
		if err != nil {
			yield(music.PlayableItem{}, err)
			return
		}
		if len(entries) == 0 {
			yield(music.PlayableItem{}, fmt.Errorf("%w in playlist %q", ErrNoResults, query))
			return
		}
		if len(entries) > r.opts.MaxPlaylistItems {
			entries = entries[:r.opts.MaxPlaylistItems]
		}

		for _, entry := range entries {
			// Flat entries carry a duration already; skip the lookup for ones
			// that are too long anyway.
			flat := r.toItem(entry)
			if err := r.checkDuration(flat); err != nil {
				if !yield(flat, err) {
					return
				}
				continue
			}

			item, err := r.resolveOne(ctx, entry.PageURL)
			if err != nil {
				r.logger.Warn("failed to resolve playlist entry", "url", entry.PageURL, "error", err)
				if item.Title == "" {
					item = flat
				}
			}
			if !yield(item, err) {
				return
			}
		}
	}
}

func (r *Resolver) toItem(e Entry) music.PlayableItem {
	item := music.PlayableItem{
		Title:           e.Title,
		PageURL:         e.PageURL,
		StreamURL:       e.StreamURL,
		DurationSeconds: e.Duration,
		ThumbnailURL:    e.Thumbnail,
		Uploader:        e.Uploader,
	}
	if item.Title == "" {
		item.Title = "Unknown Title"
	}
	if item.Uploader == "" {
		item.Uploader = "Unknown"
	}
	if item.StreamURL != "" {
		item.StreamExpiresAt = r.expiry(item.StreamURL)
	}
	return item
}

func (r *Resolver) checkDuration(item music.PlayableItem) error {
	if r.opts.MaxDuration > 0 && item.Duration() > r.opts.MaxDuration {
		return fmt.Errorf("%w: %s is %s, the limit is %s",
			ErrTooLong, item.Title, music.FormatDuration(item.DurationSeconds), music.FormatDuration(int(r.opts.MaxDuration.Seconds())))
	}
	return nil
}

// expiry reads the expire query parameter some hosts put on stream URLs and
// falls back to the configured TTL.
func (r *Resolver) expiry(streamURL string) time.Time {
	fallback := time.Time{}
	if r.opts.StreamTTL > 0 {
		fallback = r.now().Add(r.opts.StreamTTL)
	}

	u, err := url.Parse(streamURL)
	if err != nil {
		return fallback
	}
	unix, err := strconv.ParseInt(u.Query().Get("expire"), 10, 64)
	if err != nil || unix <= 0 {
		return fallback
	}
	expires := time.Unix(unix, 0)
	if !fallback.IsZero() && fallback.Before(expires) {
		return fallback
	}
	return expires
}

func (r *Resolver) remember(ctx context.Context, item music.PlayableItem) {
	if item.StreamURL == "" || item.PageURL == "" {
		return
	}
	ttl := time.Until(item.StreamExpiresAt)
	if item.StreamExpiresAt.IsZero() {
		ttl = r.opts.StreamTTL
	}
	if ttl <= 0 {
		return
	}
	if err := r.opts.Cache.Set(ctx, item.PageURL, item.StreamURL, ttl); err != nil {
		r.logger.Warn("failed to cache stream url", "url", item.PageURL, "error", err)
	}
}

// StreamURL returns a usable stream URL for item, re-resolving it from the
// page URL when the one it carries is missing or expired. Concurrent requests
// for the same page share a single lookup. The fresh URL is stored back on
// item.
func (r *Resolver) StreamURL(ctx context.Context, item *music.PlayableItem) (string, error) {
	if item.StreamValid(r.now()) {
		return item.StreamURL, nil
	}
	if item.PageURL == "" {
		return "", fmt.Errorf("%w: %q has no page to resolve from", ErrNoResults, item.Title)
	}

	if cached, ok, err := r.opts.Cache.Get(ctx, item.PageURL); err != nil {
		r.logger.Warn("stream cache lookup failed", "url", item.PageURL, "error", err)
	} else if ok {
		item.StreamURL = cached
		item.StreamExpiresAt = r.expiry(cached)
		return cached, nil
	}

	v, err, _ := r.group.Do(item.PageURL, func() (any, error) {
		fresh, err := r.resolveOne(ctx, item.PageURL)
		if err != nil {
			return music.PlayableItem{}, err
		}
		return fresh, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to refresh stream for %q: %w", item.Title, err)
	}

	fresh := v.(music.PlayableItem)
	if fresh.StreamURL == "" {
		return "", fmt.Errorf("%w: no stream for %q", ErrNoResults, item.Title)
	}
	item.StreamURL = fresh.StreamURL
	item.StreamExpiresAt = fresh.StreamExpiresAt
	return fresh.StreamURL, nil
}
