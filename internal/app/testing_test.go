package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ragchat/internal/ai"
	"ragchat/internal/model"
	"ragchat/internal/repository"
	"ragchat/internal/vectorstore"
)

// keywordEmbedder is a deterministic stand-in for the embedding provider:
// each vector dimension counts occurrences of one vocabulary word, so texts
// sharing words land near each other under cosine similarity.
type keywordEmbedder struct {
	vocab    []string
	failWith error
	failOn   string // substring that triggers failWith for matching inputs
	calls    int
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{
		vocab: []string{"python", "released", "1991", "interpreted", "language", "garbage", "typing", "hello"},
	}
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.failWith != nil {
		for _, t := range texts {
			if e.failOn == "" || strings.Contains(strings.ToLower(t), e.failOn) {
				return nil, e.failWith
			}
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		vec := make([]float32, len(e.vocab))
		for j, w := range e.vocab {
			vec[j] = float32(strings.Count(lower, w))
		}
		out[i] = vec
	}
	return out, nil
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type stubGenerator struct {
	reply   string
	err     error
	prompts [][]ai.ChatMessage
}

func (g *stubGenerator) Complete(ctx context.Context, messages []ai.ChatMessage) (string, error) {
	g.prompts = append(g.prompts, messages)
	if g.err != nil {
		return "", g.err
	}
	if g.reply == "" {
		return "stub reply", nil
	}
	return g.reply, nil
}

type recordingQueue struct {
	published []string
}

func (q *recordingQueue) Publish(ctx context.Context, documentID string) error {
	q.published = append(q.published, documentID)
	return nil
}

type testEnv struct {
	db        *gorm.DB
	registry  *SessionService
	messages  *repository.MessageRepository
	documents *repository.DocumentRepository
	vectors   *vectorstore.Store
	embedder  *keywordEmbedder
	generator *stubGenerator
	queue     *recordingQueue
	chat      *ChatService
	ingest    *IngestService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Session{}, &model.Document{}, &model.Message{}, &model.Embedding{},
	))

	sessionRepo := repository.NewSessionRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	embeddingRepo := repository.NewEmbeddingRepository(db)
	vectors := vectorstore.New(embeddingRepo)

	registry := NewSessionService(sessionRepo, documentRepo, messageRepo, embeddingRepo, nil)
	embedder := newKeywordEmbedder()
	generator := &stubGenerator{}
	queue := &recordingQueue{}

	return &testEnv{
		db:        db,
		registry:  registry,
		messages:  messageRepo,
		documents: documentRepo,
		vectors:   vectors,
		embedder:  embedder,
		generator: generator,
		queue:     queue,
		chat: NewChatService(registry, messageRepo, vectors, embedder, generator, nil,
			4, 10, 2, time.Millisecond),
		ingest: NewIngestService(registry, documentRepo, embeddingRepo, vectors, embedder, queue,
			120, 20, 10, 2, time.Millisecond),
	}
}

func (env *testEnv) newSession(t *testing.T) *model.Session {
	t.Helper()
	session, err := env.registry.Create(nil)
	require.NoError(t, err)
	return session
}

// uploadAndProcess pushes a document through the whole pipeline inline.
func (env *testEnv) uploadAndProcess(t *testing.T, sessionID, filename, text string) *model.Document {
	t.Helper()
	doc, err := env.ingest.Upload(context.Background(), sessionID, filename, "text/plain", []byte(text))
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, doc.Status)
	require.NoError(t, env.ingest.Process(context.Background(), doc.ID))
	return doc
}

func (env *testEnv) documentStatus(t *testing.T, id string) model.DocumentStatus {
	t.Helper()
	doc, err := env.documents.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc.Status
}
