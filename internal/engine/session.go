package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/jjadal/steward/internal/action"
	"github.com/jjadal/steward/internal/chat"
	"github.com/jjadal/steward/internal/config"
	"github.com/jjadal/steward/internal/logging"
	"github.com/jjadal/steward/internal/prompt"
	"github.com/jjadal/steward/internal/provider"
	"github.com/jjadal/steward/internal/store"
)

// AdapterFactory builds a provider adapter. Overridable in tests.
type AdapterFactory func(cfg provider.Config, log *logging.Logger) (provider.Adapter, error)

// Manager owns the active chat session: one conversation, one adapter, at
// most one in-flight stream. All mutating operations reject while a stream
// is active except CancelActiveStream.
type Manager struct {
	cfg        config.Config
	store      *store.Conversations
	tools      *action.Registry
	prompts    *prompt.Provider
	tracker    UsageTracker
	sink       EventSink
	log        *logging.Logger
	newAdapter AdapterFactory

	mu           sync.Mutex
	conv         *chat.Conversation
	adapter      provider.Adapter
	personality  config.PersonalityEntry
	streaming    bool
	cancelStream context.CancelFunc
}

// NewManager creates a session manager. The sink receives all streaming
// events; pass nil to discard them.
func NewManager(cfg config.Config, conversations *store.Conversations, tools *action.Registry, prompts *prompt.Provider, tracker UsageTracker, sink EventSink, log *logging.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		store:      conversations,
		tools:      tools,
		prompts:    prompts,
		tracker:    tracker,
		sink:       sink,
		log:        log.Sub("session"),
		newAdapter: provider.New,
	}
}

// SetAdapterFactory overrides adapter construction, for tests.
func (m *Manager) SetAdapterFactory(f AdapterFactory) {
	m.mu.Lock()
	m.newAdapter = f
	m.mu.Unlock()
}

// Current returns a point-in-time copy of the active conversation, or nil
// when no chat is open. A copy so callers can read and marshal it while a
// stream is appending to the live conversation.
func (m *Manager) Current() *chat.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conv == nil {
		return nil
	}
	return m.conv.Snapshot()
}

// Streaming reports whether a stream is in flight.
func (m *Manager) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming
}

// ListChats returns persisted conversation summaries, most recent first.
func (m *Manager) ListChats() ([]store.ConversationSummary, error) {
	return m.store.List()
}

// buildAdapterLocked constructs an adapter for the model and personality.
// Caller holds the lock.
func (m *Manager) buildAdapterLocked(modelID string, personality config.PersonalityEntry) (provider.Adapter, error) {
	providerName, _, ok := m.cfg.Model(modelID)
	if !ok {
		return nil, &chat.ConfigurationError{Provider: "config", Message: "unknown model " + modelID}
	}
	entry := m.cfg.Providers[providerName]

	system, err := m.prompts.Compose(personality)
	if err != nil {
		return nil, err
	}

	return m.newAdapter(provider.Config{
		Provider:     providerName,
		Family:       entry.API,
		BaseURL:      entry.BaseURL,
		Model:        modelID,
		APIKey:       entry.APIKey,
		EnvVar:       entry.EnvVar,
		SystemPrompt: system,
	}, m.log)
}

// resolveModelLocked picks the effective model id: explicit, then the
// personality's override, then the configured default.
func (m *Manager) resolveModelLocked(modelID string, personality config.PersonalityEntry) (string, error) {
	if modelID == "" {
		modelID = personality.Model
	}
	if modelID == "" {
		modelID = m.cfg.Defaults.Model
	}
	if modelID == "" {
		return "", &chat.ConfigurationError{Provider: "config", Message: "no model configured"}
	}
	return modelID, nil
}

// releaseCurrentLocked discards the active conversation, deleting its
// persisted record when it never got past the first turn. Returns the
// deleted chat id, if any. Caller holds the lock.
func (m *Manager) releaseCurrentLocked() (string, error) {
	if m.conv == nil {
		return "", nil
	}
	deleted := ""
	if len(m.conv.Turns) <= 1 {
		if err := m.store.Delete(m.conv.ChatID); err != nil {
			return "", err
		}
		deleted = m.conv.ChatID
	}
	m.conv = nil
	m.adapter = nil
	return deleted, nil
}

// StartNewChat opens a fresh conversation. Empty model and personality ids
// resolve to the configured defaults. Returns the id of the previous chat
// if it was deleted as empty.
func (m *Manager) StartNewChat(modelID, personalityID string) (deletedChatID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startNewChatLocked(modelID, personalityID)
}

func (m *Manager) startNewChatLocked(modelID, personalityID string) (deletedChatID string, err error) {
	if m.streaming {
		return "", &chat.InvalidOperationError{Message: "cannot start a chat while a stream is active"}
	}

	personality, ok := m.cfg.Personality(personalityID)
	if !ok && personalityID != "" {
		return "", &chat.NotFoundError{Kind: "personality", ID: personalityID}
	}

	modelID, err = m.resolveModelLocked(modelID, personality)
	if err != nil {
		return "", err
	}

	adapter, err := m.buildAdapterLocked(modelID, personality)
	if err != nil {
		return "", err
	}

	deletedChatID, err = m.releaseCurrentLocked()
	if err != nil {
		return "", err
	}

	m.conv = chat.NewConversation(modelID, personality.ID)
	m.adapter = adapter
	m.personality = personality
	m.log.Info().Str("chatId", m.conv.ChatID).Str("model", modelID).Msg("new chat")
	return deletedChatID, nil
}

// LoadChat swaps the active conversation for a persisted one. The previous
// chat is deleted if it has at most one turn; its id is returned.
func (m *Manager) LoadChat(chatID string) (deletedChatID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streaming {
		return "", &chat.InvalidOperationError{Message: "cannot load a chat while a stream is active"}
	}

	conv, err := m.store.Load(chatID)
	if err != nil {
		return "", err
	}
	if conv == nil {
		return "", &chat.NotFoundError{Kind: "chat", ID: chatID}
	}

	personality, ok := m.cfg.Personality(conv.PersonalityID)
	if !ok {
		personality, _ = m.cfg.Personality("")
	}

	adapter, err := m.buildAdapterLocked(conv.ModelID, personality)
	if err != nil {
		return "", err
	}

	deletedChatID, err = m.releaseCurrentLocked()
	if err != nil {
		return "", err
	}

	m.conv = conv
	m.adapter = adapter
	m.personality = personality
	return deletedChatID, nil
}

// DeleteChat removes a persisted conversation. Deleting the active chat
// also closes it.
func (m *Manager) DeleteChat(chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streaming && m.conv != nil && m.conv.ChatID == chatID {
		return &chat.InvalidOperationError{Message: "cannot delete the chat while a stream is active"}
	}
	if err := m.store.Delete(chatID); err != nil {
		return err
	}
	if m.conv != nil && m.conv.ChatID == chatID {
		m.conv = nil
		m.adapter = nil
	}
	return nil
}

// SetActiveModel switches the active chat to another model. History is
// preserved; a fresh adapter is built.
func (m *Manager) SetActiveModel(modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streaming {
		return &chat.InvalidOperationError{Message: "cannot switch models while a stream is active"}
	}
	if m.conv == nil {
		return &chat.InvalidOperationError{Message: "no active chat"}
	}

	adapter, err := m.buildAdapterLocked(modelID, m.personality)
	if err != nil {
		return err
	}

	m.adapter = adapter
	m.conv.ModelID = modelID
	return m.store.Save(m.conv)
}

// SetActivePersonality switches the active chat to another personality.
// The system prompt is recomposed and a fresh adapter built; history is
// preserved.
func (m *Manager) SetActivePersonality(personalityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streaming {
		return &chat.InvalidOperationError{Message: "cannot switch personalities while a stream is active"}
	}
	if m.conv == nil {
		return &chat.InvalidOperationError{Message: "no active chat"}
	}

	personality, ok := m.cfg.Personality(personalityID)
	if !ok {
		return &chat.NotFoundError{Kind: "personality", ID: personalityID}
	}

	adapter, err := m.buildAdapterLocked(m.conv.ModelID, personality)
	if err != nil {
		return err
	}

	m.adapter = adapter
	m.personality = personality
	m.conv.PersonalityID = personality.ID
	return m.store.Save(m.conv)
}

// SendUserMessage appends a user turn and streams the model's response,
// blocking until the stream resolves. Events flow through the sink. A
// second concurrent send is rejected.
func (m *Manager) SendUserMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &chat.ValidationError{Field: "text", Message: "message is empty"}
	}

	m.mu.Lock()
	if m.streaming {
		m.mu.Unlock()
		return &chat.InvalidOperationError{Message: "a stream is already active"}
	}
	// Bootstrap stays inside this critical section so a concurrent send
	// cannot slip in between chat creation and the stream starting.
	if m.conv == nil {
		if _, err := m.startNewChatLocked("", ""); err != nil {
			m.mu.Unlock()
			return err
		}
	}

	m.conv.Append(chat.NewUserTurn(text))
	if m.conv.Title == "" {
		m.conv.Title = m.conv.DeriveTitle()
	}
	conv := m.conv
	coord, runCtx, done := m.beginStreamLocked(ctx)
	m.mu.Unlock()

	// Persist the user turn before streaming so it survives a crash or
	// transport failure mid-response.
	if err := m.store.Save(conv); err != nil {
		done()
		return err
	}

	return m.finishStream(coord.Run(runCtx, conv), conv, done)
}

// EditUserMessage replaces the text of a prior user turn, discards every
// turn after it, persists the truncated history, and regenerates the
// response from that point.
func (m *Manager) EditUserMessage(ctx context.Context, turnID, newText string) error {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return &chat.ValidationError{Field: "text", Message: "message is empty"}
	}

	m.mu.Lock()
	if m.streaming {
		m.mu.Unlock()
		return &chat.InvalidOperationError{Message: "a stream is already active"}
	}
	if m.conv == nil {
		m.mu.Unlock()
		return &chat.InvalidOperationError{Message: "no active chat"}
	}

	if err := m.conv.EditUserTurn(turnID, newText); err != nil {
		m.mu.Unlock()
		return err
	}
	conv := m.conv
	coord, runCtx, done := m.beginStreamLocked(ctx)
	m.mu.Unlock()

	// The truncated history must hit disk before regeneration starts.
	if err := m.store.Save(conv); err != nil {
		done()
		return err
	}

	return m.finishStream(coord.Run(runCtx, conv), conv, done)
}

// CancelActiveStream aborts the in-flight stream, if any. The partial
// response is kept and marked stopped by the coordinator.
func (m *Manager) CancelActiveStream() {
	m.mu.Lock()
	cancel := m.cancelStream
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// beginStreamLocked marks the session streaming and builds the coordinator
// for one run. Caller holds the lock; the returned done func clears the
// streaming state.
func (m *Manager) beginStreamLocked(ctx context.Context) (*Coordinator, context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	m.streaming = true
	m.cancelStream = cancel

	coord := NewCoordinator(m.adapter, m.tools, m.personality.Tools, m.tracker, m.sink, m.log)

	done := func() {
		cancel()
		m.mu.Lock()
		m.streaming = false
		m.cancelStream = nil
		m.mu.Unlock()
	}
	return coord, runCtx, done
}

// finishStream clears streaming state and persists whatever the run left
// in the conversation.
func (m *Manager) finishStream(runErr error, conv *chat.Conversation, done func()) error {
	done()
	if err := m.store.Save(conv); err != nil {
		m.log.Warn().Err(err).Str("chatId", conv.ChatID).Msg("persist after stream failed")
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
