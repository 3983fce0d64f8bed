package voice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/opus"
)

// DiscordTransport joins voice channels through a discordgo session.
type DiscordTransport struct {
	session     *discordgo.Session
	sendTimeout time.Duration
}

var _ Transport = (*DiscordTransport)(nil)

func NewDiscordTransport(session *discordgo.Session, sendTimeout time.Duration) *DiscordTransport {
	return &DiscordTransport{session: session, sendTimeout: sendTimeout}
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

func (t *DiscordTransport) Join(ctx context.Context, guildID, channelID string) (Conn, error) {
	// ChannelVoiceJoin is not cancelable, so race it against ctx.
	result := make(chan joinResult, 1)
	go func() {
		vc, err := t.session.ChannelVoiceJoin(guildID, channelID, false, true)
		result <- joinResult{vc: vc, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return nil, fmt.Errorf("unable to join the voice channel: %w", r.err)
		}
		return &discordConn{vc: r.vc, sendTimeout: t.sendTimeout}, nil
	case <-ctx.Done():
		go func() {
			// Drop a join that completes after we gave up on it.
			if r := <-result; r.vc != nil {
				if err := r.vc.Disconnect(); err != nil {
					slog.Debug("failed to drop late voice connection", "guildID", guildID, "error", err)
				}
			}
		}()
		return nil, fmt.Errorf("%w: %w", ErrConnectionTimeout, ctx.Err())
	}
}

func (t *DiscordTransport) Release(guildID string) bool {
	t.session.RLock()
	vc, ok := t.session.VoiceConnections[guildID]
	t.session.RUnlock()
	if !ok || vc == nil {
		return false
	}

	if err := vc.Disconnect(); err != nil {
		slog.Warn("failed to release voice connection", "guildID", guildID, "error", err)
	}
	return true
}

type discordConn struct {
	vc          *discordgo.VoiceConnection
	sendTimeout time.Duration
}

func (c *discordConn) ChannelID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.ChannelID
}

func (c *discordConn) Connected() bool {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.Ready
}

func (c *discordConn) Move(ctx context.Context, channelID string) error {
	done := make(chan error, 1)
	go func() {
		done <- c.vc.ChangeChannel(channelID, false, true)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrConnectionTimeout, ctx.Err())
	}
}

func (c *discordConn) Speaking(speaking bool) error {
	return c.vc.Speaking(speaking)
}

func (c *discordConn) SendFrame(ctx context.Context, frame []byte) error {
	return opus.Send(ctx, c.vc.OpusSend, frame, c.sendTimeout)
}

func (c *discordConn) Disconnect() error {
	return c.vc.Disconnect()
}
