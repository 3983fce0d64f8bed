// Package registry keeps one voice session and one queue per guild.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/glizzus/encore/internal/config"
	"github.com/glizzus/encore/internal/music"
	"github.com/glizzus/encore/internal/voice"
)

// Guild is the playback state owned by one guild.
type Guild struct {
	ID      string
	Session *voice.Session
	Queue   *music.Queue

	advanceMu sync.Mutex
	advancing bool
	pending   bool

	skip atomic.Bool
}

// BeginAdvance claims the guild's advance path. When another advance is in
// flight it records the request for that owner and returns false. Callers
// that get true must call EndAdvance.
func (g *Guild) BeginAdvance() bool {
	g.advanceMu.Lock()
	defer g.advanceMu.Unlock()
	if g.advancing {
		g.pending = true
		return false
	}
	g.advancing = true
	return true
}

// EndAdvance releases the advance path. It returns true instead when another
// advance was requested meanwhile; the caller keeps the path and runs again.
func (g *Guild) EndAdvance() bool {
	g.advanceMu.Lock()
	defer g.advanceMu.Unlock()
	if g.pending {
		g.pending = false
		return true
	}
	g.advancing = false
	return false
}

// RequestSkip marks the current track as skipped so repeat mode does not
// replay it.
func (g *Guild) RequestSkip() {
	g.skip.Store(true)
}

// TakeSkip reports and clears a pending skip.
func (g *Guild) TakeSkip() bool {
	return g.skip.Swap(false)
}

// Registry lazily creates a Guild the first time an ID is seen and hands out
// the same instance afterwards.
type Registry struct {
	mu         sync.Mutex
	guilds     map[string]*Guild
	newSession func(guildID string) *voice.Session
	newQueue   func() *music.Queue
}

func New(newSession func(guildID string) *voice.Session, newQueue func() *music.Queue) *Registry {
	return &Registry{
		guilds:     make(map[string]*Guild),
		newSession: newSession,
		newQueue:   newQueue,
	}
}

// NewFromConfig builds sessions over transport and queues sized from the
// music configuration.
func NewFromConfig(transport voice.Transport, opts voice.Options, musicCfg *config.MusicConfig) *Registry {
	return New(
		func(guildID string) *voice.Session {
			return voice.NewSession(guildID, transport, opts)
		},
		func() *music.Queue {
			return music.NewQueue(musicCfg.MaxQueueSize, musicCfg.HistorySize)
		},
	)
}

// Guild returns the guild for id, creating it on first use.
func (r *Registry) Guild(id string) *Guild {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.guilds[id]; ok {
		return g
	}
	g := &Guild{
		ID:      id,
		Session: r.newSession(id),
		Queue:   r.newQueue(),
	}
	r.guilds[id] = g
	return g
}

func (r *Registry) Session(id string) *voice.Session {
	return r.Guild(id).Session
}

func (r *Registry) Queue(id string) *music.Queue {
	return r.Guild(id).Queue
}

// Lookup returns the guild for id without creating it.
func (r *Registry) Lookup(id string) (*Guild, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guilds[id]
	return g, ok
}

// Guilds returns every guild created so far.
func (r *Registry) Guilds() []*Guild {
	r.mu.Lock()
	defer r.mu.Unlock()

	guilds := make([]*Guild, 0, len(r.guilds))
	for _, g := range r.guilds {
		guilds = append(guilds, g)
	}
	return guilds
}
