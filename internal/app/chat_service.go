package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ragchat/internal/ai"
	"ragchat/internal/model"
	"ragchat/internal/repository"
	"ragchat/internal/vectorstore"
)

const emptyReplyNotice = "The model returned an empty response."

// Embedder turns text into fixed-dimension vectors. Batches succeed or fail
// as a unit.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for an assembled prompt.
type Generator interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

// HistoryCache is the read-through cache over recent conversation history.
type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID string, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID string) error
	MarkDirty(ctx context.Context, sessionID string) error
	IsDirty(ctx context.Context, sessionID string) (bool, error)
}

// ChatService runs one retrieval-augmented chat turn: validate the session,
// durably record the user's message, retrieve session-scoped context, call
// the generation provider and record the reply. The user message is
// persisted before any provider call, so an upstream failure leaves the
// conversation at "user spoke, no reply yet" rather than losing the turn.
type ChatService struct {
	registry     *SessionService
	messages     *repository.MessageRepository
	vectors      *vectorstore.Store
	embedder     Embedder
	generator    Generator
	historyCache HistoryCache
	locks        *sessionLocks

	topK         int
	historyLimit int
	maxAttempts  int
	backoff      time.Duration
}

func NewChatService(
	registry *SessionService,
	messages *repository.MessageRepository,
	vectors *vectorstore.Store,
	embedder Embedder,
	generator Generator,
	historyCache HistoryCache,
	topK, historyLimit, maxAttempts int,
	backoff time.Duration,
) *ChatService {
	if topK <= 0 {
		topK = 4
	}
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &ChatService{
		registry:     registry,
		messages:     messages,
		vectors:      vectors,
		embedder:     embedder,
		generator:    generator,
		historyCache: historyCache,
		locks:        newSessionLocks(),
		topK:         topK,
		historyLimit: historyLimit,
		maxAttempts:  maxAttempts,
		backoff:      backoff,
	}
}

// SendMessage runs one chat turn and returns the assistant's reply.
func (s *ChatService) SendMessage(ctx context.Context, sessionID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if _, err := s.registry.Validate(sessionID); err != nil {
		return nil, err
	}

	userMessage := &model.Message{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.append(ctx, userMessage); err != nil {
		return nil, err
	}

	// Everything from here on happens outside the session lock; a failure
	// surfaces to the caller while the user message stays recorded.
	var queryVector []float32
	err := retryWithBackoff(ctx, func() error {
		v, embedErr := s.embedder.Embed(ctx, content)
		if embedErr != nil {
			return embedErr
		}
		queryVector = v
		return nil
	}, s.maxAttempts, s.backoff)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUpstream, err)
	}

	hits, err := s.vectors.Search(sessionID, queryVector, s.topK)
	if err != nil {
		// An isolation violation is an invariant breach and propagates
		// untouched; anything else is a storage failure.
		return nil, err
	}

	history, err := s.messages.RecentBySessionID(sessionID, s.historyLimit)
	if err != nil {
		return nil, err
	}

	prompt := buildPromptMessages(hits, history, userMessage.ID, content)

	var reply string
	err = retryWithBackoff(ctx, func() error {
		r, genErr := s.generator.Complete(ctx, prompt)
		if genErr != nil {
			return genErr
		}
		reply = r
		return nil
	}, s.maxAttempts, s.backoff)
	if err != nil {
		return nil, fmt.Errorf("%w: generate reply: %v", ErrUpstream, err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = emptyReplyNotice
	}

	assistantMessage := &model.Message{
		SessionID: sessionID,
		Role:      model.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now(),
	}
	if err := s.append(ctx, assistantMessage); err != nil {
		return nil, err
	}
	return assistantMessage, nil
}

// History returns the session's recent messages in chronological order,
// read through the cache when it is clean.
func (s *ChatService) History(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	if _, err := s.registry.Validate(sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.historyLimit
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messages.RecentBySessionID(sessionID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

// append serializes conversation writes per session and invalidates the
// cached history. The lock covers only the append itself.
func (s *ChatService) append(ctx context.Context, msg *model.Message) error {
	lock := s.locks.get(msg.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, msg.SessionID)
		_ = s.historyCache.DeleteHistory(ctx, msg.SessionID)
	}
	return s.messages.Append(msg)
}

// buildPromptMessages assembles the bounded prompt: a system message
// carrying the retrieved context (most relevant chunk first), the recent
// history, then the new user message. The just-appended user message is
// excluded from the history section so it appears exactly once.
func buildPromptMessages(hits []vectorstore.ScoredChunk, history []model.Message, currentID uint, userContent string) []ai.ChatMessage {
	var systemContent string
	if len(hits) > 0 {
		var b strings.Builder
		for _, h := range hits {
			b.WriteString("\n---\n")
			b.WriteString(h.Record.Content)
		}
		b.WriteString("\n---")
		systemContent = "You are a helpful assistant. Use the following context from the session's uploaded documents to answer. " +
			"If the context does not contain the answer, say so. Do not make up facts.\n\nContext:" + b.String()
	} else {
		systemContent = "You are a helpful assistant. Answer the user's questions concisely and accurately."
	}

	messages := []ai.ChatMessage{{Role: string(model.RoleSystem), Content: systemContent}}
	for _, m := range history {
		if m.ID == currentID || m.Role == model.RoleSystem {
			continue
		}
		messages = append(messages, ai.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: string(model.RoleUser), Content: userContent})
	return messages
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
