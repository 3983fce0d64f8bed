package handler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/generator"
)

func InstanceIDFromInteraction(i *discordgo.InteractionCreate) string {
	var customID string

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		customID = i.ModalSubmitData().CustomID
	default:
		return ""
	}

	return InstanceIDFromCustomID(customID)
}

func InstanceIDFromCustomID(customID string) string {
	parts := strings.SplitN(customID, ":", 2)
	if len(parts) != 2 {
		return ""
	}

	return parts[1]
}

// FlowContext is carried from one step of a flow to the next. GuildID is
// the guild the flow was started in.
type FlowContext struct {
	InstanceID string
	GuildID    string
	State      map[string]any
}

type Node struct {
	ID      string
	Matcher func(*discordgo.InteractionCreate) bool
	Handler func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error
	Next    []*Node
}

type Flow struct {
	ID   string
	Root *Node
}

type session struct {
	flow    *Flow
	node    *Node
	ctx     *FlowContext
	started time.Time
}

// FlowManager routes multi-step interactions: a command starts a flow and
// component interactions carrying the flow's instance ID advance it.
type FlowManager struct {
	flowsMu *sync.RWMutex
	flows   []*Flow

	sessionsMu *sync.RWMutex
	sessions   map[string]*session

	idGenerator generator.Generator[string]
	now         func() time.Time
}

func NewFlowManager(idGenerator generator.Generator[string]) *FlowManager {
	if idGenerator == nil {
		idGenerator = &generator.UUIDV4Generator{}
	}
	return &FlowManager{
		flowsMu:     &sync.RWMutex{},
		sessionsMu:  &sync.RWMutex{},
		sessions:    make(map[string]*session),
		idGenerator: idGenerator,
		now:         time.Now,
	}
}

func (fm *FlowManager) RegisterFlow(flow *Flow) {
	fm.flowsMu.Lock()
	defer fm.flowsMu.Unlock()

	for _, f := range fm.flows {
		if f.ID == flow.ID {
			panic("flow already registered")
		}
	}
	fm.flows = append(fm.flows, flow)
}

// Router hands i to the flow it belongs to. It reports whether any flow
// claimed the interaction.
func (fm *FlowManager) Router(s DiscordSession, i *discordgo.InteractionCreate) (bool, error) {
	instanceID := InstanceIDFromInteraction(i)
	if instanceID != "" {
		fm.sessionsMu.RLock()
		session, inFlow := fm.sessions[instanceID]
		fm.sessionsMu.RUnlock()
		if inFlow {
			return true, fm.advance(s, i, session)
		}
		if i.Type == discordgo.InteractionMessageComponent {
			return true, s.InteractionRespond(i.Interaction, expiredFlowResponse)
		}
	}

	return fm.initializeFlow(s, i)
}

var expiredFlowResponse = &discordgo.InteractionResponse{
	Type: discordgo.InteractionResponseUpdateMessage,
	Data: &discordgo.InteractionResponseData{
		Content:    "This menu has expired. Run the command again.",
		Components: []discordgo.MessageComponent{},
	},
}

// Sweep forgets flows started before cutoff and returns how many it removed.
func (fm *FlowManager) Sweep(cutoff time.Time) int {
	fm.sessionsMu.Lock()
	defer fm.sessionsMu.Unlock()

	var removed int
	for id, sess := range fm.sessions {
		if sess.started.Before(cutoff) {
			delete(fm.sessions, id)
			removed++
		}
	}
	return removed
}

func (fm *FlowManager) advance(
	s DiscordSession,
	i *discordgo.InteractionCreate,
	sess *session,
) error {
	finishFlow := func() {
		fm.sessionsMu.Lock()
		delete(fm.sessions, sess.ctx.InstanceID)
		fm.sessionsMu.Unlock()
	}

	if len(sess.node.Next) == 0 {
		finishFlow()
		return nil
	}

	var nextNode *Node
	for _, n := range sess.node.Next {
		if n.Matcher(i) {
			nextNode = n
			break
		}
	}
	if nextNode == nil {
		return nil
	}

	sess.node = nextNode
	if err := runHandler(s, i, sess); err != nil {
		return err
	}

	if len(nextNode.Next) == 0 {
		finishFlow()
	}
	return nil
}

func (fm *FlowManager) initializeFlow(s DiscordSession, i *discordgo.InteractionCreate) (bool, error) {
	var f *Flow
	fm.flowsMu.RLock()
	for _, flow := range fm.flows {
		if flow.Root.Matcher(i) {
			f = flow
			break
		}
	}
	fm.flowsMu.RUnlock()
	if f == nil {
		return false, nil
	}

	instanceID, err := fm.idGenerator.Next()
	if err != nil {
		return true, fmt.Errorf("failed to generate instance ID: %w", err)
	}

	ctx := &FlowContext{
		InstanceID: instanceID,
		GuildID:    i.GuildID,
		State:      make(map[string]any),
	}
	newSess := &session{flow: f, node: f.Root, ctx: ctx, started: fm.now()}

	if len(f.Root.Next) > 0 {
		fm.sessionsMu.Lock()
		fm.sessions[instanceID] = newSess
		fm.sessionsMu.Unlock()
	}

	return true, runHandler(s, i, newSess)
}

func runHandler(s DiscordSession, i *discordgo.InteractionCreate, sess *session) error {
	return sess.node.Handler(s, i, sess.ctx)
}

// commandMatcher matches the application command called name.
func commandMatcher(name string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionApplicationCommand {
			return false
		}
		return i.ApplicationCommandData().Name == name
	}
}

// componentMatcher matches component interactions whose custom ID starts
// with prefix followed by the instance separator.
func componentMatcher(prefix string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionMessageComponent {
			return false
		}
		return strings.HasPrefix(i.MessageComponentData().CustomID, prefix+":")
	}
}
