package voice_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/glizzus/encore/internal/voice"
)

type fakeConn struct {
	mu          sync.Mutex
	channelID   string
	connected   bool
	checks      []bool
	moveErr     error
	sendErr     error
	frames      [][]byte
	speaking    []bool
	disconnects int
}

func (c *fakeConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

// Connected pops scripted answers before falling back to the steady state.
func (c *fakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.checks) > 0 {
		next := c.checks[0]
		c.checks = c.checks[1:]
		return next
	}
	return c.connected
}

func (c *fakeConn) Move(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.moveErr != nil {
		return c.moveErr
	}
	c.channelID = channelID
	return nil
}

func (c *fakeConn) Speaking(speaking bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speaking = append(c.speaking, speaking)
	return nil
}

func (c *fakeConn) SendFrame(_ context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.connected = false
	return nil
}

func (c *fakeConn) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

func (c *fakeConn) snapshot() (frames [][]byte, speaking []bool, disconnects int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...), append([]bool(nil), c.speaking...), c.disconnects
}

// joinStep scripts one Join call. A zero step succeeds with a fresh
// connection.
type joinStep struct {
	err   error
	conn  *fakeConn
	block bool
}

type fakeTransport struct {
	mu       sync.Mutex
	steps    []joinStep
	joins    []string
	conns    []*fakeConn
	releases int
}

func (t *fakeTransport) Join(ctx context.Context, _ string, channelID string) (voice.Conn, error) {
	t.mu.Lock()
	t.joins = append(t.joins, channelID)
	var step joinStep
	if len(t.steps) > 0 {
		step = t.steps[0]
		t.steps = t.steps[1:]
	}
	t.mu.Unlock()

	if step.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.err != nil {
		return nil, step.err
	}

	conn := step.conn
	if conn == nil {
		conn = &fakeConn{connected: true}
	}
	conn.mu.Lock()
	conn.channelID = channelID
	conn.mu.Unlock()

	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()
	return conn, nil
}

func (t *fakeTransport) Release(string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releases++
	return false
}

func (t *fakeTransport) joinCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.joins)
}

func (t *fakeTransport) lastConn() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

type sliceSource struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (s *sliceSource) ReadFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.frames) == 0 {
		return nil, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return frame, nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// blockingSource never yields a frame until closed.
type blockingSource struct {
	once   sync.Once
	closed chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{closed: make(chan struct{})}
}

func (b *blockingSource) ReadFrame() ([]byte, error) {
	<-b.closed
	return nil, io.ErrClosedPipe
}

func (b *blockingSource) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

var errFlaky = errors.New("websocket: bad handshake")
