package handler_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/handler"
	"github.com/glizzus/encore/internal/media"
	"github.com/glizzus/encore/internal/music"
	"github.com/glizzus/encore/internal/voice"
	"github.com/glizzus/encore/internal/worker"
)

type sentMessage struct {
	ChannelID string
	Message   *discordgo.MessageSend
}

type mockSession struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	sent      []sentMessage
	// fileContents captures attachments as they are sent, since the
	// readers are closed afterwards.
	fileContents []string
}

var _ handler.DiscordSession = (*mockSession)(nil)

func (m *mockSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return nil
}

func (m *mockSession) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, edit)
	m.readFiles(edit.Files)
	return &discordgo.Message{}, nil
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChannelID: channelID, Message: data})
	m.readFiles(data.Files)
	return &discordgo.Message{}, nil
}

func (m *mockSession) readFiles(files []*discordgo.File) {
	for _, f := range files {
		data, _ := io.ReadAll(f.Reader)
		m.fileContents = append(m.fileContents, string(data))
	}
}

func (m *mockSession) lastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil
	}
	return m.responses[len(m.responses)-1]
}

func (m *mockSession) lastEdit() *discordgo.WebhookEdit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) == 0 {
		return nil
	}
	return m.edits[len(m.edits)-1]
}

type fakeConn struct {
	mu        sync.Mutex
	channelID string
	connected bool
}

func (c *fakeConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *fakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) Move(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
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

type fakeTransport struct {
	err error
}

func (t fakeTransport) Join(_ context.Context, _, channelID string) (voice.Conn, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &fakeConn{channelID: channelID, connected: true}, nil
}

func (fakeTransport) Release(string) bool { return false }

// endlessSource plays until it is closed.
type endlessSource struct {
	once   sync.Once
	closed chan struct{}
}

func (s *endlessSource) ReadFrame() ([]byte, error) {
	<-s.closed
	return nil, io.EOF
}

func (s *endlessSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type endlessOpener struct{}

func (endlessOpener) Open(context.Context, *music.PlayableItem, float64) (voice.Source, error) {
	return &endlessSource{closed: make(chan struct{})}, nil
}

type fakeLocator map[string]voice.Channel

func (l fakeLocator) UserVoiceChannel(_, userID string) (voice.Channel, bool) {
	ch, ok := l[userID]
	return ch, ok
}

type fakeResolver struct {
	items []music.PlayableItem
	errs  []error
}

func (r *fakeResolver) Resolve(context.Context, string) iter.Seq2[music.PlayableItem, error] {
	return func(yield func(music.PlayableItem, error) bool) {
		for _, item := range r.items {
			if !yield(item, nil) {
				return
			}
		}
		for _, err := range r.errs {
			if !yield(music.PlayableItem{}, err) {
				return
			}
		}
	}
}

type recordingSubmitter struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (s *recordingSubmitter) Submit(job worker.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

type fakeProcessor struct {
	delivery *media.Delivery
	err      error
	links    []media.Link
}

func (p *fakeProcessor) Process(_ context.Context, link media.Link) (*media.Delivery, error) {
	p.links = append(p.links, link)
	if p.err != nil {
		return nil, p.err
	}
	return p.delivery, nil
}

var errBoom = errors.New("boom")
