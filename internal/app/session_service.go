package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/model"
	"ragchat/internal/repository"
)

// SessionService issues and validates the opaque session ids that scope
// every other operation, and owns cascade deletion of a session's
// dependents.
type SessionService struct {
	sessions     *repository.SessionRepository
	documents    *repository.DocumentRepository
	messages     *repository.MessageRepository
	embeddings   *repository.EmbeddingRepository
	historyCache HistoryCache
	locks        *sessionLocks
}

func NewSessionService(
	sessions *repository.SessionRepository,
	documents *repository.DocumentRepository,
	messages *repository.MessageRepository,
	embeddings *repository.EmbeddingRepository,
	historyCache HistoryCache,
) *SessionService {
	return &SessionService{
		sessions:     sessions,
		documents:    documents,
		messages:     messages,
		embeddings:   embeddings,
		historyCache: historyCache,
		locks:        newSessionLocks(),
	}
}

// Create mints a new session with a globally unique opaque id. No input is
// required; metadata is free-form and immutable afterwards.
func (s *SessionService) Create(metadata map[string]string) (*model.Session, error) {
	session := &model.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	session.SetMetadata(metadata)
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate resolves a session id, failing with ErrSessionNotFound for
// unknown ids so forged tokens are rejected at the boundary.
func (s *SessionService) Validate(id string) (*model.Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	session, err := s.sessions.GetByID(id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes the session and everything it owns: embeddings first, then
// documents and messages, then the session row and any cached history.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.Validate(id); err != nil {
		return err
	}
	if err := s.embeddings.DeleteBySessionID(id); err != nil {
		return err
	}
	if err := s.documents.DeleteBySessionID(id); err != nil {
		return err
	}
	if err := s.messages.DeleteBySessionID(id); err != nil {
		return err
	}
	if err := s.sessions.DeleteByID(id); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, id)
	}
	s.locks.release(id)
	return nil
}

// ListDocuments returns the session's documents with their ingestion
// status, which is how ingestion failures become visible to the caller.
func (s *SessionService) ListDocuments(id string) ([]model.Document, error) {
	if _, err := s.Validate(id); err != nil {
		return nil, err
	}
	return s.documents.ListBySessionID(id)
}
