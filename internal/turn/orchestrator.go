// Package turn coordinates one inbound chat turn end to end: validate,
// authorize, resolve the chat, persist the user message, register the
// resumable stream and drive generation, committing the final
// transcript once the engine completes.
package turn

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/loomlabs/chatloom/internal/ai"
	"github.com/loomlabs/chatloom/internal/apperr"
	"github.com/loomlabs/chatloom/internal/auth"
	"github.com/loomlabs/chatloom/internal/character"
	"github.com/loomlabs/chatloom/internal/chat"
	"github.com/loomlabs/chatloom/internal/common"
	"github.com/loomlabs/chatloom/internal/document"
	"github.com/loomlabs/chatloom/internal/engine"
	"github.com/loomlabs/chatloom/internal/stream"
	"github.com/loomlabs/chatloom/internal/tasks"
	"github.com/loomlabs/chatloom/internal/tools"
)

// EventPublisher notifies out-of-band consumers that a turn finished.
// Best-effort: failures are logged, never surfaced to the client.
type EventPublisher interface {
	PublishTurnFinished(ctx context.Context, chatID string) error
}

// ProviderFor resolves the provider instance backing a selected chat
// model ("chat-model", "chat-model-reasoning") or an internal role
// ("title-model", "artifact-model").
type ProviderFor func(ctx context.Context, selectedModel string) (ai.Provider, error)

type Orchestrator struct {
	repo       *chat.Repo
	gate       *chat.Gate
	characters *character.Resolver
	docRepo    *document.Repo
	providers  ProviderFor
	broker     stream.Broker
	tasks      *tasks.Registry
	events     EventPublisher
	maxSteps   int
}

func NewOrchestrator(
	repo *chat.Repo,
	gate *chat.Gate,
	characters *character.Resolver,
	docRepo *document.Repo,
	providers ProviderFor,
	broker stream.Broker,
	registry *tasks.Registry,
	events EventPublisher,
	maxSteps int,
) *Orchestrator {
	if maxSteps <= 0 {
		maxSteps = 5
	}
	return &Orchestrator{
		repo:       repo,
		gate:       gate,
		characters: characters,
		docRepo:    docRepo,
		providers:  providers,
		broker:     broker,
		tasks:      registry,
		events:     events,
		maxSteps:   maxSteps,
	}
}

// Input is one authorized turn submission.
type Input struct {
	Req      chat.TurnRequest
	UserID   uint64
	UserType auth.UserType
	Hints    RequestHints
}

// Handle is the caller's attachment to the turn's stream.
type Handle struct {
	StreamID string
	Frames   <-chan stream.Frame
}

// Start runs the turn protocol up to stream registration, spawns
// generation onto the background registry and attaches the caller to
// the stream. Once the user message is persisted it is never rolled
// back; a later failure surfaces as an error frame in the stream.
func (o *Orchestrator) Start(ctx context.Context, in Input) (*Handle, error) {
	// validating
	if err := in.Req.Validate(); err != nil {
		return nil, err
	}

	// authorizing: quota is a pure read and must precede the user
	// message insert so the in-flight message is not counted.
	if err := o.gate.Check(ctx, in.UserID, in.UserType); err != nil {
		return nil, err
	}

	// chat_resolving
	userText := in.Req.Message.Parts.PlainText()
	c, err := o.repo.GetChatByID(ctx, in.Req.ID)
	switch {
	case err == nil:
		if c.UserID != in.UserID {
			return nil, apperr.New(apperr.KindForbidden, "chat", "not the chat owner")
		}
	case apperr.Is(err, apperr.KindNotFound):
		title := fallbackTitle
		if p, perr := o.providers(ctx, "title-model"); perr == nil {
			title = generateTitle(ctx, p, userText)
		}
		var characterID *string
		if in.Req.CharacterID != "" {
			characterID = &in.Req.CharacterID
		}
		c = &chat.Chat{
			ID:          in.Req.ID,
			UserID:      in.UserID,
			Title:       title,
			Visibility:  in.Req.SelectedVisibilityType,
			CharacterID: characterID,
		}
		if err := o.repo.SaveChat(ctx, c); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	history, err := o.repo.GetMessagesByChatID(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	// persisting_user_msg
	partsJSON, err := json.Marshal(in.Req.Message.Parts)
	if err != nil {
		return nil, apperr.New(apperr.KindBadRequest, "api", "unencodable message parts")
	}
	attachments := in.Req.Message.Attachments
	if len(attachments) == 0 {
		attachments = json.RawMessage("[]")
	}
	userMsg := chat.Message{
		ID:          in.Req.Message.ID,
		ChatID:      c.ID,
		Role:        chat.RoleUser,
		Parts:       partsJSON,
		Attachments: attachments,
		CreatedAt:   time.Now(),
	}
	if err := o.repo.SaveMessages(ctx, []chat.Message{userMsg}); err != nil {
		return nil, err
	}

	// stream_registering
	streamID := common.NewUUID()
	if err := o.repo.CreateStreamID(ctx, streamID, c.ID); err != nil {
		return nil, err
	}
	producer, err := o.broker.NewProducer(ctx, streamID)
	if err != nil {
		return nil, apperr.New(apperr.KindBadRequest, "stream", "failed to register stream")
	}

	// Persona enrichment fails soft.
	var persona *character.Persona
	characterID := in.Req.CharacterID
	if characterID == "" && c.CharacterID != nil {
		characterID = *c.CharacterID
	}
	if characterID != "" {
		if p, ok := o.characters.Resolve(ctx, characterID); ok {
			persona = &p
		}
	}

	modelMsgs := toModelMessages(history)
	modelMsgs = append(modelMsgs, ai.Message{Role: chat.RoleUser, Content: userText})
	system := systemPrompt(in.Req.SelectedChatModel, in.Hints, persona)

	// generating → persisting_final runs detached from the request so a
	// disconnected client still gets a committed transcript to resume.
	chatID := c.ID
	selectedModel := in.Req.SelectedChatModel
	userID := in.UserID
	spawned := o.tasks.Go("turn:"+streamID, func(taskCtx context.Context) error {
		return o.generate(taskCtx, producer, chatID, selectedModel, userID, system, modelMsgs)
	})
	if !spawned {
		_ = producer.Close(ctx)
		return nil, apperr.New(apperr.KindBadRequest, "chat", "server shutting down")
	}

	frames, err := o.broker.Subscribe(ctx, streamID, 0)
	if err != nil {
		return nil, apperr.New(apperr.KindBadRequest, "stream", "failed to attach stream")
	}
	return &Handle{StreamID: streamID, Frames: frames}, nil
}

// generate drives the engine and commits the final transcript. The
// finish frame is written only after persistence so the stored
// transcript always matches what was streamed.
func (o *Orchestrator) generate(ctx context.Context, producer stream.Producer, chatID, selectedModel string, userID uint64, system string, history []ai.Message) error {
	defer func() {
		if err := producer.Close(ctx); err != nil {
			log.Printf("[turn] stream close chat=%s err=%v", chatID, err)
		}
	}()

	provider, err := o.providers(ctx, selectedModel)
	if err != nil {
		o.writeError(ctx, producer, chatID)
		return err
	}

	toolset := engine.Toolset{}
	if selectedModel != chat.ModelChatReasoning {
		artifactProvider, perr := o.providers(ctx, "artifact-model")
		if perr != nil {
			artifactProvider = provider
		}
		handlers := document.NewHandlers(artifactProvider)
		toolset["getWeather"] = tools.NewWeather()
		toolset["createDocument"] = &tools.CreateDocument{Repo: o.docRepo, Handlers: handlers, UserID: userID}
		toolset["updateDocument"] = &tools.UpdateDocument{Repo: o.docRepo, Handlers: handlers, UserID: userID}
		toolset["requestSuggestions"] = &tools.RequestSuggestions{Repo: o.docRepo, Provider: artifactProvider, UserID: userID}
	}

	eng := engine.New(provider, toolset, engine.Config{MaxSteps: o.maxSteps})
	res, err := eng.Run(ctx, system, history, producer)
	if err != nil {
		o.writeError(ctx, producer, chatID)
		return err
	}

	// persisting_final: every assistant message of the turn, in
	// emission order.
	now := time.Now()
	rows := make([]chat.Message, 0, len(res.Messages))
	for i, m := range res.Messages {
		partsJSON, err := json.Marshal(m.Parts)
		if err != nil {
			o.writeError(ctx, producer, chatID)
			return err
		}
		rows = append(rows, chat.Message{
			ID:          m.ID,
			ChatID:      chatID,
			Role:        chat.RoleAssistant,
			Parts:       partsJSON,
			Attachments: json.RawMessage("[]"),
			CreatedAt:   now.Add(time.Duration(i) * time.Millisecond),
		})
	}
	if err := o.repo.SaveMessages(ctx, rows); err != nil {
		o.writeError(ctx, producer, chatID)
		return err
	}

	if err := producer.Write(ctx, stream.Frame{Type: stream.FrameFinish}); err != nil {
		return err
	}

	if o.events != nil {
		if err := o.events.PublishTurnFinished(ctx, chatID); err != nil {
			log.Printf("[turn] publish turn finished chat=%s err=%v", chatID, err)
		}
	}
	return nil
}

// writeError surfaces a mid-stream failure as a terminal error frame;
// the HTTP status has already committed to 200 by the time generation
// runs.
func (o *Orchestrator) writeError(ctx context.Context, producer stream.Producer, chatID string) {
	if err := producer.Write(ctx, stream.Frame{Type: stream.FrameError, Message: "Oops, an error occurred!"}); err != nil {
		log.Printf("[turn] write error frame chat=%s err=%v", chatID, err)
	}
}

// Resume attaches to the most recent stream of a chat. Owners may
// always attach; anyone may attach to a public chat.
func (o *Orchestrator) Resume(ctx context.Context, userID uint64, chatID string, afterSeq int64) (*Handle, error) {
	c, err := o.repo.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID && c.Visibility != chat.VisibilityPublic {
		return nil, apperr.New(apperr.KindForbidden, "chat", "not the chat owner")
	}
	markers, err := o.repo.GetStreamIDsByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(markers) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "stream", "no stream for chat")
	}
	latest := markers[len(markers)-1]
	frames, err := o.broker.Subscribe(ctx, latest.ID, afterSeq)
	if err != nil {
		return nil, apperr.New(apperr.KindNotFound, "stream", "stream no longer available")
	}
	return &Handle{StreamID: latest.ID, Frames: frames}, nil
}

// DeleteChat removes a chat and everything owned by it. Only the owner
// may delete.
func (o *Orchestrator) DeleteChat(ctx context.Context, userID uint64, chatID string) (*chat.Chat, error) {
	c, err := o.repo.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, apperr.New(apperr.KindForbidden, "chat", "not the chat owner")
	}
	return o.repo.DeleteChatByID(ctx, chatID)
}

// toModelMessages flattens stored messages into the model-agnostic
// history. Tool plumbing parts are collapsed to their text content.
func toModelMessages(msgs []chat.Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != chat.RoleUser && m.Role != chat.RoleAssistant && m.Role != chat.RoleSystem {
			continue
		}
		parts, err := m.DecodedParts()
		if err != nil {
			log.Printf("[turn] skipping message with undecodable parts id=%s err=%v", m.ID, err)
			continue
		}
		text := parts.PlainText()
		if text == "" {
			continue
		}
		out = append(out, ai.Message{Role: m.Role, Content: text})
	}
	return out
}
