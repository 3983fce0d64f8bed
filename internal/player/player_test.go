package player_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/encore/internal/music"
	"github.com/glizzus/encore/internal/player"
	"github.com/glizzus/encore/internal/registry"
	"github.com/glizzus/encore/internal/voice"
	"github.com/google/go-cmp/cmp"
)

type fakeConn struct {
	mu        sync.Mutex
	channelID string
	connected bool
}

func (c *fakeConn) ChannelID() string { return c.channelID }

func (c *fakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) Move(_ context.Context, id string) error {
	c.channelID = id
	return nil
}

func (c *fakeConn) Speaking(bool) error { return nil }

func (c *fakeConn) SendFrame(context.Context, []byte) error { return nil }

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

type fakeTransport struct{}

func (fakeTransport) Join(_ context.Context, _, channelID string) (voice.Conn, error) {
	return &fakeConn{channelID: channelID, connected: true}, nil
}

func (fakeTransport) Release(string) bool { return false }

// frameSource yields a fixed number of frames, or blocks until closed when
// block is set.
type frameSource struct {
	left   int
	block  bool
	once   sync.Once
	closed chan struct{}
}

func newFrameSource(frames int, block bool) *frameSource {
	return &frameSource{left: frames, block: block, closed: make(chan struct{})}
}

func (s *frameSource) ReadFrame() ([]byte, error) {
	if s.block {
		<-s.closed
		return nil, io.ErrClosedPipe
	}
	if s.left == 0 {
		return nil, io.EOF
	}
	s.left--
	return []byte{0xf8}, nil
}

func (s *frameSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	fail   map[string]error
	block  bool
	// onOpen runs before the source is returned, standing in for the time
	// spent resolving and starting ffmpeg.
	onOpen func(title string)
}

func (o *fakeOpener) Open(_ context.Context, item *music.PlayableItem, _ float64) (voice.Source, error) {
	if o.onOpen != nil {
		o.onOpen(item.Title)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, item.Title)
	if err := o.fail[item.Title]; err != nil {
		return nil, err
	}
	return newFrameSource(3, o.block), nil
}

func (o *fakeOpener) openedTitles() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

type fixture struct {
	registry *registry.Registry
	opener   *fakeOpener
	player   *player.Player
	events   chan player.Event
}

func newFixture(t *testing.T, opener *fakeOpener) *fixture {
	t.Helper()
	reg := registry.New(
		func(id string) *voice.Session {
			return voice.NewSession(id, fakeTransport{}, voice.Options{MaxRetries: 1, DefaultVolume: 0.5})
		},
		func() *music.Queue { return music.NewQueue(10, 5) },
	)
	events := make(chan player.Event, 64)
	p := player.New(reg, opener, player.Options{
		IdleTimeout: time.Hour,
		Listener: player.ListenerFunc(func(_ context.Context, e player.Event) {
			events <- e
		}),
	})

	if !reg.Session("g1").Connect(t.Context(), voice.Channel{ID: "vc"}) {
		t.Fatal("Connect() = false")
	}
	t.Cleanup(func() { reg.Session("g1").Disconnect(context.Background(), false) })

	return &fixture{registry: reg, opener: opener, player: p, events: events}
}

func (f *fixture) enqueue(titles ...string) {
	for _, title := range titles {
		f.registry.Queue("g1").Add(music.PlayableItem{Title: title})
	}
}

// await collects events until one of kind stop arrives.
func (f *fixture) await(t *testing.T, stop player.EventKind) []player.Event {
	t.Helper()
	var got []player.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-f.events:
			got = append(got, e)
			if e.Kind == stop {
				return got
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %v, got %v", stop, got)
		}
	}
}

func nowPlaying(events []player.Event) []string {
	var titles []string
	for _, e := range events {
		if e.Kind == player.EventNowPlaying {
			titles = append(titles, e.Item.Title)
		}
	}
	return titles
}

func TestAdvancePlaysQueueInOrder(t *testing.T) {
	f := newFixture(t, &fakeOpener{})
	f.enqueue("one", "two", "three")

	f.player.Advance(t.Context(), "g1")
	events := f.await(t, player.EventQueueEmpty)

	if diff := cmp.Diff([]string{"one", "two", "three"}, nowPlaying(events)); diff != "" {
		t.Errorf("play order mismatch (-want +got):\n%s", diff)
	}
	if !f.registry.Session("g1").Connected() {
		t.Error("expected the session to stay connected until the idle timer fires")
	}
}

func TestAdvanceSkipsItemsThatFailToOpen(t *testing.T) {
	f := newFixture(t, &fakeOpener{fail: map[string]error{"broken": errors.New("video unavailable")}})
	f.enqueue("broken", "fine")

	f.player.Advance(t.Context(), "g1")
	events := f.await(t, player.EventQueueEmpty)

	var kinds []player.EventKind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	want := []player.EventKind{player.EventSkipped, player.EventNowPlaying, player.EventQueueEmpty}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestRepeatReplaysCurrentItem(t *testing.T) {
	f := newFixture(t, &fakeOpener{})
	f.registry.Session("g1").SetRepeat(true)
	f.enqueue("loop", "after")

	f.player.Advance(t.Context(), "g1")

	var seen []string
	for len(seen) < 3 {
		select {
		case e := <-f.events:
			if e.Kind == player.EventNowPlaying {
				seen = append(seen, e.Item.Title)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	f.registry.Session("g1").SetRepeat(false)
	f.await(t, player.EventQueueEmpty)

	if diff := cmp.Diff([]string{"loop", "loop", "loop"}, seen); diff != "" {
		t.Errorf("repeat mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentAdvanceDequeuesOnce(t *testing.T) {
	f := newFixture(t, &fakeOpener{block: true})
	f.enqueue("first", "second")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.player.Advance(t.Context(), "g1")
		}()
	}
	wg.Wait()

	if got := f.opener.openedTitles(); !cmp.Equal([]string{"first"}, got) {
		t.Errorf("expected only the first item to be opened, got %v", got)
	}
	if n := f.registry.Queue("g1").Len(); n != 1 {
		t.Errorf("expected 1 item left in the queue, got %d", n)
	}
	f.player.StopAll("g1")
}

func TestSkipOverridesRepeat(t *testing.T) {
	f := newFixture(t, &fakeOpener{block: true})
	f.registry.Session("g1").SetRepeat(true)
	f.enqueue("stuck", "next")

	f.player.Advance(t.Context(), "g1")
	f.await(t, player.EventNowPlaying)

	if !f.player.Skip("g1") {
		t.Fatal("Skip() = false")
	}
	events := f.await(t, player.EventNowPlaying)
	if got := nowPlaying(events); !cmp.Equal([]string{"next"}, got) {
		t.Errorf("expected to skip to %q, got %v", "next", got)
	}

	f.player.StopAll("g1")
	if f.registry.Session("g1").Repeat() {
		t.Error("StopAll() left repeat on")
	}
}

func TestSkipWithNothingPlaying(t *testing.T) {
	f := newFixture(t, &fakeOpener{})
	if f.player.Skip("g1") {
		t.Error("Skip() = true with nothing playing")
	}
}

func TestAdvanceDoesNothingWhenDisconnected(t *testing.T) {
	f := newFixture(t, &fakeOpener{})
	f.registry.Session("g1").Disconnect(t.Context(), false)
	f.enqueue("waiting")

	f.player.Advance(t.Context(), "g1")

	if n := len(f.opener.openedTitles()); n != 0 {
		t.Errorf("expected nothing to be opened, got %d", n)
	}
	if n := f.registry.Queue("g1").Len(); n != 1 {
		t.Errorf("expected the item to stay queued, got %d items", n)
	}
}

func TestReconnectResumesQueue(t *testing.T) {
	for _, force := range []bool{false, true} {
		t.Run(fmt.Sprintf("force=%v", force), func(t *testing.T) {
			f := newFixture(t, &fakeOpener{})
			f.registry.Session("g1").Disconnect(t.Context(), false)
			f.enqueue("resumed")

			if !f.player.Reconnect(t.Context(), "g1", voice.Channel{ID: "vc2"}, force) {
				t.Fatal("Reconnect() = false")
			}
			events := f.await(t, player.EventQueueEmpty)

			if diff := cmp.Diff([]string{"resumed"}, nowPlaying(events)); diff != "" {
				t.Errorf("now playing mismatch (-want +got):\n%s", diff)
			}
			if got := f.registry.Session("g1").Status().ChannelID; got != "vc2" {
				t.Errorf("ChannelID = %q, want vc2", got)
			}
		})
	}
}

func TestDisconnectWhileOpeningKeepsItemQueued(t *testing.T) {
	opener := &fakeOpener{}
	f := newFixture(t, opener)
	var once sync.Once
	opener.onOpen = func(string) {
		once.Do(func() { f.registry.Session("g1").Disconnect(context.Background(), false) })
	}
	f.enqueue("a", "b")

	f.player.Advance(t.Context(), "g1")

	queue := f.registry.Queue("g1")
	if diff := cmp.Diff([]string{"a", "b"}, titlesOf(queue.Items())); diff != "" {
		t.Errorf("queue mismatch (-want +got):\n%s", diff)
	}
	if n := len(queue.History()); n != 0 {
		t.Errorf("expected no history for an item that never played, got %d", n)
	}

	if !f.player.Reconnect(t.Context(), "g1", voice.Channel{ID: "vc"}, false) {
		t.Fatal("Reconnect() = false")
	}
	events := f.await(t, player.EventQueueEmpty)
	if diff := cmp.Diff([]string{"a", "b"}, nowPlaying(events)); diff != "" {
		t.Errorf("now playing mismatch (-want +got):\n%s", diff)
	}
}

func titlesOf(items []music.PlayableItem) []string {
	var titles []string
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	return titles
}
