package handler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/generator"
	"github.com/glizzus/encore/internal/media"
	"github.com/glizzus/encore/internal/music"
	"github.com/glizzus/encore/internal/player"
	"github.com/glizzus/encore/internal/presenters"
	"github.com/glizzus/encore/internal/registry"
	"github.com/glizzus/encore/internal/repository"
	"github.com/glizzus/encore/internal/util"
	"github.com/glizzus/encore/internal/worker"
)

// ItemResolver turns a URL or search into playable items.
type ItemResolver interface {
	Resolve(ctx context.Context, query string) iter.Seq2[music.PlayableItem, error]
}

// MediaSubmitter queues media jobs. worker.Pool implements it.
type MediaSubmitter interface {
	Submit(job worker.Job) error
}

type BotOptions struct {
	Player   *player.Player
	Registry *registry.Registry
	Resolver ItemResolver
	Voice    VoiceLocator
	Notifier *ChannelNotifier
	// Media is nil when media processing is disabled.
	Media MediaSubmitter
	// MediaLinks turns on scanning chat messages for video links.
	MediaLinks bool
	// History is nil when transcode history is not persisted.
	History repository.JobHistory
	IDs     generator.Generator[string]
	// CommandTimeout bounds the work done for one command.
	CommandTimeout time.Duration
	Logger         *slog.Logger
}

type Bot struct {
	opts   BotOptions
	flows  *FlowManager
	ids    generator.Generator[string]
	logger *slog.Logger
}

func NewBot(opts BotOptions) *Bot {
	if opts.IDs == nil {
		opts.IDs = &generator.UUIDV4Generator{}
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 3 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bot{
		opts:   opts,
		flows:  NewFlowManager(opts.IDs),
		ids:    opts.IDs,
		logger: logger.With("component", "handler"),
	}
	b.flows.RegisterFlow(b.queueFlow())
	b.flows.RegisterFlow(b.jobHistoryFlow())
	return b
}

// Flows exposes the flow manager so abandoned menus can be swept.
func (b *Bot) Flows() *FlowManager {
	return b.flows
}

// Handlers wires the bot into a discordgo session.
func (b *Bot) Handlers() Handlers {
	h := Handlers{
		Ready: ReadyLog,
		InteractionCreate: func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			b.InteractionCreate(s, i)
		},
	}
	if b.opts.MediaLinks && b.opts.Media != nil {
		h.MessageCreate = func(s *discordgo.Session, m *discordgo.MessageCreate) {
			b.MessageCreate(s, m)
		}
	}
	return h
}

func (b *Bot) InteractionCreate(s DiscordSession, i *discordgo.InteractionCreate) {
	logger := b.logger.With("guildID", i.GuildID, "interactionID", i.ID)

	handled, err := b.flows.Router(s, i)
	if !handled && i.Type == discordgo.InteractionApplicationCommand {
		err = b.dispatch(s, i)
	}
	if err == nil {
		return
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		if err := s.InteractionRespond(i.Interaction, presenters.EphemeralMessage(userErr.Message)); err != nil {
			logger.Warn("Failed to respond with user error", "error", err)
		}
		return
	}
	logger.Error("Failed to handle interaction", "error", err)
}

func (b *Bot) dispatch(s DiscordSession, i *discordgo.InteractionCreate) error {
	command := i.ApplicationCommandData()
	if command.Name == "ping" {
		return s.InteractionRespond(i.Interaction, presenters.Message("Pong!"))
	}
	if i.GuildID == "" {
		return errGuildOnly
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.opts.CommandTimeout)
	defer cancel()

	g := b.opts.Registry.Guild(i.GuildID)
	options := optionMap(command.Options)
	respond := func(resp *discordgo.InteractionResponse) error {
		return s.InteractionRespond(i.Interaction, resp)
	}

	switch command.Name {
	case "play":
		return b.play(ctx, s, i, options["query"].StringValue())
	case "skip":
		if !b.opts.Player.Skip(g.ID) {
			return errNothingPlaying
		}
		return respond(presenters.Message("Skipped."))
	case "stop":
		b.opts.Player.StopAll(g.ID)
		return respond(presenters.Message("Stopped playback and cleared the queue."))
	case "pause":
		if !g.Session.Pause() {
			return errNothingPlaying
		}
		return respond(presenters.Message("Paused."))
	case "resume":
		if !g.Session.Resume() {
			return &UserError{Message: "Nothing is paused."}
		}
		return respond(presenters.Message("Resumed."))
	case "volume":
		level := options["level"].IntValue()
		v := g.Session.SetVolume(float64(level) / 100)
		return respond(presenters.Message(fmt.Sprintf("Volume set to %d%%. It applies from the next track.", int(v*100+0.5))))
	case "repeat":
		if g.Session.ToggleRepeat() {
			return respond(presenters.Message("Repeat is now on."))
		}
		return respond(presenters.Message("Repeat is now off."))
	case "nowplaying":
		return respond(presenters.BuildNowPlayingResponse(g.Session.Status()))
	case "history":
		return respond(presenters.BuildHistoryResponse(g.Queue.History()))
	case "shuffle":
		g.Queue.Shuffle()
		return respond(presenters.Message(fmt.Sprintf("Shuffled %d tracks.", g.Queue.Len())))
	case "clear":
		g.Queue.Clear()
		return respond(presenters.Message("Cleared the queue."))
	case "remove":
		position := int(options["position"].IntValue())
		item, ok := g.Queue.Remove(position - 1)
		if !ok {
			return &UserError{Message: fmt.Sprintf("There is no track at position %d.", position)}
		}
		return respond(presenters.Message(fmt.Sprintf("Removed **%s** from the queue.", item.Title)))
	case "move":
		from := int(options["from"].IntValue())
		to := int(options["to"].IntValue())
		if !g.Queue.Move(from-1, to-1) {
			return &UserError{Message: fmt.Sprintf("Can't move track %d to position %d.", from, to)}
		}
		return respond(presenters.Message(fmt.Sprintf("Moved track %d to position %d.", from, to)))
	case "status":
		return respond(presenters.BuildStatusResponse(g.Session.Status(), g.Queue.Info()))
	case "disconnect":
		b.opts.Player.Leave(ctx, g.ID)
		return respond(presenters.Message("Disconnected."))
	case "reconnect":
		var force bool
		if opt, ok := options["force"]; ok {
			force = opt.BoolValue()
		}
		return b.reconnect(ctx, s, i, force)
	case "convert":
		return b.submitAttachment(s, i, options["video"], worker.JobDeliver)
	case "mediainfo":
		return b.submitAttachment(s, i, options["file"], worker.JobInspect)
	default:
		b.logger.Warn("Unknown command", "command", command.Name)
		return nil
	}
}

func (b *Bot) play(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, query string) error {
	ch, ok := b.opts.Voice.UserVoiceChannel(i.GuildID, interactionUserID(i))
	if !ok {
		return errNotInVoice
	}
	if err := s.InteractionRespond(i.Interaction, presenters.Deferred()); err != nil {
		return err
	}
	edit := func(e *discordgo.WebhookEdit) error {
		_, err := s.InteractionResponseEdit(i.Interaction, e)
		return err
	}

	g := b.opts.Registry.Guild(i.GuildID)
	if !g.Session.EnsureConnection(ctx, ch) {
		return edit(presenters.EditContent(describeVoiceError(g.Session.LastError())))
	}
	b.opts.Notifier.Bind(i.GuildID, i.ChannelID)

	var added []music.PlayableItem
	var failed int
	var firstErr error
	var full bool
	for item, err := range b.opts.Resolver.Resolve(ctx, query) {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		item.RequestedBy = interactionUserID(i)
		if !g.Queue.Add(item) {
			full = true
			break
		}
		added = append(added, item)
		if len(added) == 1 {
			go b.opts.Player.Advance(context.WithoutCancel(ctx), i.GuildID)
		}
	}

	if len(added) == 0 && !full && failed == 1 {
		return edit(presenters.EditContent(describeResolveError(firstErr)))
	}
	return edit(presenters.BuildEnqueuedEdit(added, failed, full))
}

func (b *Bot) reconnect(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, force bool) error {
	ch, ok := b.opts.Voice.UserVoiceChannel(i.GuildID, interactionUserID(i))
	if !ok {
		return errNotInVoice
	}
	if err := s.InteractionRespond(i.Interaction, presenters.Deferred()); err != nil {
		return err
	}

	content := "Reconnected."
	if ch.Name != "" {
		content = fmt.Sprintf("Reconnected to **%s**.", ch.Name)
	}
	if !b.opts.Player.Reconnect(ctx, i.GuildID, ch, force) {
		content = describeVoiceError(b.opts.Registry.Session(i.GuildID).LastError())
	} else {
		b.opts.Notifier.Bind(i.GuildID, i.ChannelID)
	}
	_, err := s.InteractionResponseEdit(i.Interaction, presenters.EditContent(content))
	return err
}

func (b *Bot) submitAttachment(
	s DiscordSession,
	i *discordgo.InteractionCreate,
	option *discordgo.ApplicationCommandInteractionDataOption,
	kind worker.JobKind,
) error {
	if b.opts.Media == nil {
		return errMediaDisabled
	}
	if option == nil {
		return &UserError{Message: "Attach a file."}
	}

	attachments := i.ApplicationCommandData().Resolved.Attachments
	attachmentID, _ := option.Value.(string)
	attachment, ok := attachments[attachmentID]
	if !ok {
		var err error
		if attachment, err = util.GetOne(attachments); err != nil {
			return &UserError{Message: "Attach exactly one file."}
		}
	}

	id, err := b.ids.Next()
	if err != nil {
		return fmt.Errorf("failed to generate job ID: %w", err)
	}
	if err := s.InteractionRespond(i.Interaction, presenters.Deferred()); err != nil {
		return err
	}

	err = b.opts.Media.Submit(worker.Job{
		ID:          id,
		Kind:        kind,
		GuildID:     i.GuildID,
		ChannelID:   i.ChannelID,
		Link:        media.Link{URL: attachment.URL, Platform: media.PlatformAttachment},
		Interaction: i.Interaction,
	})
	if err != nil {
		_, editErr := s.InteractionResponseEdit(i.Interaction, presenters.EditContent(describeMediaError(err)))
		return errors.Join(err, editErr)
	}
	return nil
}

// MessageCreate queues a job for every supported video link in m.
func (b *Bot) MessageCreate(s DiscordSession, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" || b.opts.Media == nil {
		return
	}

	for _, link := range media.ExtractLinks(m.Content) {
		id, err := b.ids.Next()
		if err != nil {
			b.logger.Error("Failed to generate job ID", "error", err)
			return
		}
		err = b.opts.Media.Submit(worker.Job{
			ID:        id,
			Kind:      worker.JobDeliver,
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
			Link:      link,
		})
		if err != nil {
			b.logger.Warn("Dropped media link", "url", link.URL, "error", err)
		}
	}
}

func (b *Bot) queueFlow() *Flow {
	return &Flow{
		ID: "queue",
		Root: &Node{
			ID:      "queue",
			Matcher: commandMatcher("queue"),
			Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
				if i.GuildID == "" {
					return errGuildOnly
				}
				g := b.opts.Registry.Guild(i.GuildID)
				items := g.Queue.Items()
				ctx.State["items"] = items
				resp := presenters.BuildQueueResponse(g.Session.Current(), items, g.Queue.Info(), ctx.InstanceID)
				return s.InteractionRespond(i.Interaction, resp)
			},
			Next: []*Node{
				{
					ID:      "queue_remove",
					Matcher: componentMatcher(presenters.ComponentIDQueueRemove),
					Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
						snapshot, _ := ctx.State["items"].([]music.PlayableItem)
						values := i.MessageComponentData().Values
						if len(values) == 0 {
							return nil
						}
						index, err := strconv.Atoi(values[0])
						if err != nil || index < 0 || index >= len(snapshot) {
							return s.InteractionRespond(i.Interaction, presenters.BuildRemovedResponse(music.PlayableItem{}, false))
						}

						chosen := snapshot[index]
						queue := b.opts.Registry.Queue(ctx.GuildID)
						position := slices.IndexFunc(queue.Items(), func(item music.PlayableItem) bool {
							return item.Title == chosen.Title && item.PageURL == chosen.PageURL && item.RequestedBy == chosen.RequestedBy
						})
						removed, ok := queue.Remove(position)
						return s.InteractionRespond(i.Interaction, presenters.BuildRemovedResponse(removed, ok))
					},
				},
			},
		},
	}
}

const jobHistoryLimit = 25

func (b *Bot) jobHistoryFlow() *Flow {
	return &Flow{
		ID: "compressions",
		Root: &Node{
			ID:      "compressions",
			Matcher: commandMatcher("compressions"),
			Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
				if b.opts.History == nil {
					return errNoHistory
				}
				jobs, err := b.opts.History.List(context.Background(), jobHistoryLimit)
				if err != nil {
					return fmt.Errorf("failed to list transcode jobs: %w", err)
				}
				return s.InteractionRespond(i.Interaction, presenters.BuildJobHistoryResponse(jobs, ctx.InstanceID))
			},
			Next: []*Node{
				{
					ID:      "compressions_attempts",
					Matcher: componentMatcher(presenters.ComponentIDJobSelect),
					Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
						values := i.MessageComponentData().Values
						if len(values) == 0 {
							return nil
						}
						attempts, err := b.opts.History.Attempts(context.Background(), values[0])
						if err != nil {
							return fmt.Errorf("failed to load attempts for job %s: %w", values[0], err)
						}
						return s.InteractionRespond(i.Interaction, presenters.BuildJobAttemptsResponse(values[0], attempts))
					},
				},
			},
		},
	}
}
