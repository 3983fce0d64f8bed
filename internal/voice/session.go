package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/glizzus/encore/internal/config"
	"github.com/glizzus/encore/internal/music"
	"github.com/glizzus/encore/internal/schedule"
)

// Options tune a Session.
type Options struct {
	ConnectTimeout time.Duration
	StabilityDelay time.Duration
	CleanupDelay   time.Duration
	SettleDelay    time.Duration
	MaxRetries     int
	Backoff        Backoff
	DefaultVolume  float64

	// CodecCheck reports whether audio can be encoded at all. A failure
	// aborts Connect without retrying.
	CodecCheck func() error
	// OnIdleDisconnect runs after the idle timer disconnects the session.
	OnIdleDisconnect func(guildID string)
	// Sleep waits for d or until ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// OptionsFromConfig builds session options from configuration.
func OptionsFromConfig(voiceCfg *config.VoiceConfig, musicCfg *config.MusicConfig) Options {
	return Options{
		ConnectTimeout: voiceCfg.ConnectTimeout,
		StabilityDelay: voiceCfg.StabilityDelay,
		CleanupDelay:   voiceCfg.CleanupDelay,
		SettleDelay:    voiceCfg.SettleDelay,
		MaxRetries:     voiceCfg.MaxRetries,
		Backoff:        BackoffFromConfig(voiceCfg),
		DefaultVolume:  musicCfg.DefaultVolume,
	}
}

// Status is a snapshot of a Session.
type Status struct {
	State      ConnectionState
	Connected  bool
	Playing    bool
	Paused     bool
	Volume     float64
	RepeatMode bool
	// CurrentItem is set only while a track is loaded.
	CurrentItem *music.PlayableItem
	ChannelID   string
	ChannelName string
}

// Session manages the voice connection and playback for one guild.
type Session struct {
	guildID   string
	transport Transport
	opts      Options
	logger    *slog.Logger

	// opMu serialises connection changes, playback starts, and idle
	// disconnects against each other.
	opMu sync.Mutex

	mu       sync.Mutex
	state    ConnectionState
	conn     Conn
	channel  Channel
	volume   float64
	repeat   bool
	current  *music.PlayableItem
	playback *playback
	lastErr  error
	idleStop func() bool
	idleGen  uint64
}

func NewSession(guildID string, transport Transport, opts Options) *Session {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		guildID:   guildID,
		transport: transport,
		opts:      opts,
		logger:    logger.With("guildID", guildID),
		volume:    clampVolume(opts.DefaultVolume),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.opts.Sleep(ctx, d)
}

func (s *Session) GuildID() string {
	return s.guildID
}

// Connect joins ch, retrying with backoff. It reports whether the session
// ended up connected; the last failure is available from LastError.
func (s *Session) Connect(ctx context.Context, ch Channel) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.connectLocked(ctx, ch, Connecting)
}

func (s *Session) connectLocked(ctx context.Context, ch Channel, via ConnectionState) bool {
	s.mu.Lock()
	s.cancelIdleLocked()
	s.state = via
	s.channel = ch
	s.lastErr = nil
	s.mu.Unlock()

	logger := s.logger.With("channelID", ch.ID)

	if s.opts.CodecCheck != nil {
		if err := s.opts.CodecCheck(); err != nil {
			err = fmt.Errorf("%w: %w", ErrFatalCodecUnavailable, err)
			logger.Error("cannot connect without an audio encoder", "error", err)
			s.teardown(ctx)
			s.fail(err)
			return false
		}
	}

	var prevErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		s.teardown(ctx)

		if delay := s.opts.Backoff.Delay(attempt, prevErr); delay > 0 {
			logger.Info("waiting before voice connect attempt", "attempt", attempt, "delay", delay)
			if err := s.sleep(ctx, delay); err != nil {
				s.fail(err)
				return false
			}
		}

		conn, err := s.attempt(ctx, ch)
		if err == nil {
			s.mu.Lock()
			s.conn = conn
			s.state = Connected
			s.cancelIdleLocked()
			s.mu.Unlock()
			logger.Info("voice connected", "attempt", attempt)
			return true
		}

		prevErr = err
		logger.Warn("voice connect attempt failed",
			"attempt", attempt,
			"maxAttempts", s.opts.MaxRetries,
			"sessionInvalidated", IsSessionInvalidated(err),
			"error", err,
		)
		if ctx.Err() != nil {
			break
		}
	}

	logger.Error("giving up on voice connection", "error", prevErr)
	s.fail(prevErr)
	return false
}

func (s *Session) attempt(ctx context.Context, ch Channel) (Conn, error) {
	joinCtx := ctx
	if s.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		joinCtx, cancel = context.WithTimeout(ctx, s.opts.ConnectTimeout)
		defer cancel()
	}

	conn, err := s.transport.Join(joinCtx, s.guildID, ch.ID)
	if err != nil {
		return nil, classify(err)
	}
	if !conn.Connected() {
		s.drop(conn)
		return nil, ErrConnectionTimeout
	}

	if err := s.sleep(ctx, s.opts.StabilityDelay); err != nil {
		s.drop(conn)
		return nil, err
	}
	if !conn.Connected() {
		s.drop(conn)
		return nil, ErrUnstableConnection
	}
	return conn, nil
}

func (s *Session) drop(conn Conn) {
	if err := conn.Disconnect(); err != nil {
		s.logger.Debug("failed to disconnect voice connection", "error", err)
	}
}

// teardown stops playback and forcibly releases any connection held by the
// session or still tracked by the transport.
func (s *Session) teardown(ctx context.Context) {
	s.Stop()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	released := false
	if conn != nil {
		s.drop(conn)
		released = true
	}
	if s.transport.Release(s.guildID) {
		released = true
	}
	if released {
		_ = s.sleep(ctx, s.opts.CleanupDelay)
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Disconnected
	s.conn = nil
	s.lastErr = err
}

// EnsureConnection makes sure the session is connected to ch, connecting,
// reconnecting, or moving as needed.
func (s *Session) EnsureConnection(ctx context.Context, ch Channel) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	logger := s.logger.With("channelID", ch.ID)

	if conn == nil {
		return s.connectLocked(ctx, ch, Connecting)
	}
	if !conn.Connected() {
		logger.Warn("stored voice connection is no longer connected, reconnecting")
		return s.connectLocked(ctx, ch, Reconnecting)
	}
	if conn.ChannelID() == ch.ID {
		s.mu.Lock()
		s.channel = ch
		s.state = Connected
		s.cancelIdleLocked()
		s.mu.Unlock()
		return true
	}

	err := s.move(ctx, conn, ch.ID)
	if err == nil {
		s.mu.Lock()
		s.channel = ch
		s.cancelIdleLocked()
		s.mu.Unlock()
		logger.Info("moved voice connection")
		return true
	}

	s.mu.Lock()
	s.state = Reconnecting
	s.mu.Unlock()

	if IsSessionInvalidated(err) {
		logger.Warn("voice session invalidated during move, reconnecting fresh", "error", err)
		s.teardown(ctx)
		if err := s.sleep(ctx, s.opts.Backoff.SessionInvalid); err != nil {
			s.fail(err)
			return false
		}
		return s.connectLocked(ctx, ch, Reconnecting)
	}

	logger.Warn("voice channel move failed, reconnecting", "error", err)
	s.teardown(ctx)
	return s.connectLocked(ctx, ch, Reconnecting)
}

func (s *Session) move(ctx context.Context, conn Conn, channelID string) error {
	if s.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ConnectTimeout)
		defer cancel()
	}

	if err := conn.Move(ctx, channelID); err != nil {
		return classify(err)
	}
	if !conn.Connected() {
		return ErrUnstableConnection
	}
	return nil
}

// Disconnect stops playback and leaves the voice channel. Calling it on a
// disconnected session does nothing. With force, any connection the transport
// still tracks is released too and the session waits for things to settle.
func (s *Session) Disconnect(ctx context.Context, force bool) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.disconnectLocked(ctx, force)
}

func (s *Session) disconnectLocked(ctx context.Context, force bool) {
	// Mark the session disconnected first so completion callbacks from the
	// stopped track see it and do not start another.
	s.mu.Lock()
	s.cancelIdleLocked()
	conn := s.conn
	s.conn = nil
	s.state = Disconnected
	s.current = nil
	s.mu.Unlock()

	s.Stop()

	if conn != nil {
		s.drop(conn)
		s.logger.Info("voice disconnected")
	}

	if force {
		released := s.transport.Release(s.guildID)
		if conn != nil || released {
			_ = s.sleep(ctx, s.opts.SettleDelay)
		}
	}
}

// StartDisconnectTimer arms the idle timer. When it fires and nothing is
// playing, the session disconnects. Arming replaces any pending timer.
func (s *Session) StartDisconnectTimer(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelIdleLocked()
	if timeout <= 0 {
		return
	}

	gen := s.idleGen
	s.idleStop = schedule.RunAt(context.Background(), time.Now().Add(timeout), func(context.Context) {
		s.fireIdle(gen)
	})
}

// CancelDisconnectTimer disarms the idle timer if one is pending.
func (s *Session) CancelDisconnectTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelIdleLocked()
}

func (s *Session) cancelIdleLocked() {
	s.idleGen++
	if s.idleStop != nil {
		s.idleStop()
		s.idleStop = nil
	}
}

func (s *Session) fireIdle(gen uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if gen != s.idleGen {
		// Cancelled or re-armed while the timer was firing.
		s.mu.Unlock()
		return
	}
	s.idleStop = nil
	idle := s.playback == nil && s.conn != nil
	s.mu.Unlock()

	if !idle {
		return
	}

	s.logger.Info("disconnecting idle voice session")
	s.disconnectLocked(context.Background(), false)
	if s.opts.OnIdleDisconnect != nil {
		s.opts.OnIdleDisconnect(s.guildID)
	}
}

// Play streams src for item. onComplete runs once the stream ends, with nil
// when it finished or was stopped and the failure otherwise. Transport errors
// during playback are not retried here.
func (s *Session) Play(ctx context.Context, item *music.PlayableItem, src Source, onComplete func(error)) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != Connected || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.playback != nil {
		s.mu.Unlock()
		return ErrAlreadyPlaying
	}

	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pb := newPlayback(cancel, src)
	s.playback = pb
	s.current = item
	conn := s.conn
	s.cancelIdleLocked()
	s.mu.Unlock()

	go s.stream(playCtx, conn, pb, onComplete)
	return nil
}

func (s *Session) stream(ctx context.Context, conn Conn, pb *playback, onComplete func(error)) {
	err := s.pump(ctx, conn, pb)
	_ = pb.src.Close()
	pb.cancel()

	s.mu.Lock()
	if s.playback == pb {
		s.playback = nil
	}
	s.mu.Unlock()
	close(pb.done)

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		s.logger.Warn("playback ended with an error", "error", err)
	}
	if onComplete != nil {
		onComplete(err)
	}
}

func (s *Session) pump(ctx context.Context, conn Conn, pb *playback) error {
	if err := conn.Speaking(true); err != nil {
		return fmt.Errorf("error setting speaking state to 'true': %w", err)
	}
	defer func() {
		if err := conn.Speaking(false); err != nil {
			s.logger.Debug("failed to stop speaking", "error", err)
		}
	}()

	for {
		if err := pb.wait(ctx); err != nil {
			return err
		}

		frame, err := pb.src.ReadFrame()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read audio frame: %w", err)
		}

		if err := conn.SendFrame(ctx, frame); err != nil {
			return fmt.Errorf("failed to send audio frame: %w", err)
		}
	}
}

func (s *Session) activePlayback() *playback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

// Stop ends the current playback and waits for it to wind down. It reports
// whether anything was playing.
func (s *Session) Stop() bool {
	pb := s.activePlayback()
	if pb == nil {
		return false
	}

	pb.cancel()
	pb.unpause()
	_ = pb.src.Close()
	<-pb.done
	return true
}

func (s *Session) Pause() bool {
	pb := s.activePlayback()
	return pb != nil && pb.pause()
}

func (s *Session) Resume() bool {
	pb := s.activePlayback()
	if pb == nil || !pb.unpause() {
		return false
	}
	s.CancelDisconnectTimer()
	return true
}

// SetVolume stores the playback volume, clamped to [0, 1], and returns the
// stored value. It applies from the next track.
func (s *Session) SetVolume(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = clampVolume(v)
	return s.volume
}

func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}

// ToggleRepeat flips repeat mode and returns the new value.
func (s *Session) ToggleRepeat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeat = !s.repeat
	return s.repeat
}

func (s *Session) SetRepeat(repeat bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeat = repeat
}

func (s *Session) Repeat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeat
}

// Current returns the item last handed to Play, or nil after a disconnect.
func (s *Session) Current() *music.PlayableItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Connected reports whether the session holds a live connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedLocked()
}

func (s *Session) connectedLocked() bool {
	return s.state == Connected && s.conn != nil && s.conn.Connected()
}

// Playing reports whether a track is loaded, paused or not.
func (s *Session) Playing() bool {
	return s.activePlayback() != nil
}

func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:      s.state,
		Connected:  s.connectedLocked(),
		Volume:     s.volume,
		RepeatMode: s.repeat,
	}
	if s.playback != nil {
		status.CurrentItem = s.current
		status.Paused = s.playback.isPaused()
		status.Playing = !status.Paused
	}
	if s.state != Disconnected {
		status.ChannelID = s.channel.ID
		status.ChannelName = s.channel.Name
	}
	return status
}
