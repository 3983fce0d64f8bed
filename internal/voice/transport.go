package voice

import "context"

// Channel identifies a voice channel.
type Channel struct {
	ID   string
	Name string
}

// Transport establishes voice connections for guilds.
type Transport interface {
	// Join connects to channelID in guildID. The returned Conn may still be
	// finishing its handshake; callers check Connected.
	Join(ctx context.Context, guildID, channelID string) (Conn, error)
	// Release drops whatever connection the transport itself still tracks
	// for the guild. It reports whether anything was released.
	Release(guildID string) bool
}

// Conn is one live voice connection.
type Conn interface {
	ChannelID() string
	Connected() bool
	Move(ctx context.Context, channelID string) error
	Speaking(speaking bool) error
	SendFrame(ctx context.Context, frame []byte) error
	Disconnect() error
}

// Source produces Opus frames for playback. ReadFrame returns io.EOF once the
// source is exhausted. Close may be called more than once.
type Source interface {
	ReadFrame() ([]byte, error)
	Close() error
}
