// Package player drives playback for each guild: it pulls the next item off
// the queue, opens an audio source for it, and hands it to the guild's voice
// session.
package player

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/glizzus/encore/internal/music"
	"github.com/glizzus/encore/internal/registry"
	"github.com/glizzus/encore/internal/voice"
)

// SourceOpener turns an item into a playable audio source.
type SourceOpener interface {
	Open(ctx context.Context, item *music.PlayableItem, volume float64) (voice.Source, error)
}

type Options struct {
	// IdleTimeout is how long a session may sit with an empty queue before it
	// disconnects.
	IdleTimeout time.Duration
	Listener    Listener
	Logger      *slog.Logger
}

type Player struct {
	registry    *registry.Registry
	opener      SourceOpener
	idleTimeout time.Duration
	listener    Listener
	logger      *slog.Logger
}

func New(reg *registry.Registry, opener SourceOpener, opts Options) *Player {
	listener := opts.Listener
	if listener == nil {
		listener = ListenerFunc(func(context.Context, Event) {})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Player{
		registry:    reg,
		opener:      opener,
		idleTimeout: opts.IdleTimeout,
		listener:    listener,
		logger:      logger,
	}
}

// Advance starts the next track for the guild unless something is already
// playing. Only one advance runs per guild at a time; a request that arrives
// while one is running makes that one go around again.
func (p *Player) Advance(ctx context.Context, guildID string) {
	g := p.registry.Guild(guildID)
	if !g.BeginAdvance() {
		return
	}
	for {
		p.advance(ctx, g)
		if !g.EndAdvance() {
			return
		}
	}
}

func (p *Player) advance(ctx context.Context, g *registry.Guild) {
	logger := p.logger.With("guildID", g.ID)
	session := g.Session

	for {
		if session.Playing() {
			return
		}
		if !session.Connected() {
			logger.Debug("not advancing a disconnected session")
			return
		}

		item, queued, ok := p.next(g)
		if !ok {
			session.StartDisconnectTimer(p.idleTimeout)
			p.listener.Notify(ctx, Event{GuildID: g.ID, Kind: EventQueueEmpty})
			return
		}

		src, err := p.opener.Open(ctx, &item, session.Volume())
		if err != nil {
			logger.Warn("skipping item that could not be opened", "title", item.Title, "error", err)
			session.SetRepeat(false)
			p.listener.Notify(ctx, Event{GuildID: g.ID, Kind: EventSkipped, Item: &item, Err: err})
			continue
		}

		err = session.Play(ctx, &item, src, func(err error) {
			p.finished(context.WithoutCancel(ctx), g, &item, err)
		})
		if err != nil {
			_ = src.Close()
			if queued && g.Queue.Requeue(item) {
				logger.Debug("returned item to the queue", "title", item.Title, "error", err)
				return
			}
			if !errors.Is(err, voice.ErrAlreadyPlaying) {
				logger.Warn("failed to start playback", "title", item.Title, "error", err)
			}
			if queued {
				p.listener.Notify(ctx, Event{GuildID: g.ID, Kind: EventSkipped, Item: &item, Err: err})
			}
			return
		}

		logger.Info("now playing", "title", item.Title, "requestedBy", item.RequestedBy)
		p.listener.Notify(ctx, Event{GuildID: g.ID, Kind: EventNowPlaying, Item: &item})
		return
	}
}

// next returns the current item again in repeat mode, otherwise the head of
// the queue. queued reports whether the item was taken off the queue.
func (p *Player) next(g *registry.Guild) (item music.PlayableItem, queued, ok bool) {
	skipped := g.TakeSkip()
	if !skipped && g.Session.Repeat() {
		if current := g.Session.Current(); current != nil {
			return *current, false, true
		}
	}
	item, ok = g.Queue.Next()
	return item, ok, ok
}

func (p *Player) finished(ctx context.Context, g *registry.Guild, item *music.PlayableItem, err error) {
	if err != nil {
		p.logger.Warn("playback failed", "guildID", g.ID, "title", item.Title, "error", err)
		g.RequestSkip()
		p.listener.Notify(ctx, Event{GuildID: g.ID, Kind: EventPlaybackFailed, Item: item, Err: err})
	}
	if !g.Session.Connected() {
		return
	}
	go p.Advance(ctx, g.ID)
}

// Skip stops the current track and moves on, even in repeat mode. It reports
// whether anything was playing.
func (p *Player) Skip(guildID string) bool {
	g := p.registry.Guild(guildID)
	g.RequestSkip()
	if !g.Session.Stop() {
		g.TakeSkip()
		return false
	}
	return true
}

// StopAll clears the queue, turns off repeat, and stops the current track.
func (p *Player) StopAll(guildID string) bool {
	g := p.registry.Guild(guildID)
	g.Queue.Clear()
	g.Session.SetRepeat(false)
	return g.Session.Stop()
}

// Leave clears the guild's queue and disconnects it.
func (p *Player) Leave(ctx context.Context, guildID string) {
	g := p.registry.Guild(guildID)
	g.Queue.Clear()
	g.Session.SetRepeat(false)
	g.Session.Disconnect(ctx, false)
}

// Reconnect brings the guild's session onto ch and resumes the queue. With
// force the session is torn down completely first; otherwise an existing
// connection is reused or moved.
func (p *Player) Reconnect(ctx context.Context, guildID string, ch voice.Channel, force bool) bool {
	g := p.registry.Guild(guildID)
	var ok bool
	if force {
		g.Session.Disconnect(ctx, true)
		ok = g.Session.Connect(ctx, ch)
	} else {
		ok = g.Session.EnsureConnection(ctx, ch)
	}
	if !ok {
		return false
	}
	if !g.Queue.IsEmpty() {
		go p.Advance(context.WithoutCancel(ctx), guildID)
	}
	return true
}

// Shutdown disconnects every guild.
func (p *Player) Shutdown(ctx context.Context) {
	for _, g := range p.registry.Guilds() {
		g.Queue.Clear()
		g.Session.Disconnect(ctx, false)
	}
}
