package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/model"
)

func TestUpload_CreatesPendingAndEnqueues(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)

	doc, err := env.ingest.Upload(context.Background(), session.ID, "notes.txt", "text/plain", []byte("some text"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, doc.Status)
	assert.Equal(t, session.ID, doc.SessionID)
	assert.Equal(t, []string{doc.ID}, env.queue.published)
}

func TestUpload_Validation(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)

	_, err := env.ingest.Upload(context.Background(), "nope", "a.txt", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = env.ingest.Upload(context.Background(), session.ID, "a.txt", "text/plain", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.ingest.Upload(context.Background(), session.ID, "a.gif", "image/gif", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestProcess_IndexesDocument(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)
	doc := env.uploadAndProcess(t, session.ID, "python.txt", pythonDoc)

	assert.Equal(t, model.StatusIndexed, env.documentStatus(t, doc.ID))

	hits, err := env.vectors.Search(session.ID, mustEmbed(t, env, "released 1991"), 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
	for _, h := range hits {
		assert.Equal(t, doc.ID, h.Record.DocumentID)
	}
}

func mustEmbed(t *testing.T, env *testEnv, text string) []float32 {
	t.Helper()
	v, err := env.embedder.Embed(context.Background(), text)
	require.NoError(t, err)
	return v
}

func TestProcess_StatusNeverRevisitsPending(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)
	doc := env.uploadAndProcess(t, session.ID, "a.txt", "Python released 1991.")
	require.Equal(t, model.StatusIndexed, env.documentStatus(t, doc.ID))

	// A duplicate delivery of the same task finds nothing to claim and
	// leaves the terminal status alone.
	require.NoError(t, env.ingest.Process(context.Background(), doc.ID))
	assert.Equal(t, model.StatusIndexed, env.documentStatus(t, doc.ID))
}

func TestProcess_ClaimExclusivity(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)
	doc, err := env.ingest.Upload(context.Background(), session.ID, "a.txt", "text/plain", []byte("text"))
	require.NoError(t, err)

	// Simulate a concurrent run that already claimed the document.
	claimed, err := env.documents.TransitionStatus(doc.ID, model.StatusPending, model.StatusProcessing, "")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, env.ingest.Process(context.Background(), doc.ID))
	assert.Equal(t, model.StatusProcessing, env.documentStatus(t, doc.ID),
		"a second run must not steal or advance another run's claim")
	assert.Zero(t, countEmbeddings(t, env, session.ID))
}

func countEmbeddings(t *testing.T, env *testEnv, sessionID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.db.Model(&model.Embedding{}).Where("session_id = ?", sessionID).Count(&count).Error)
	return count
}

func TestProcess_EmbedFailureMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)
	doc, err := env.ingest.Upload(context.Background(), session.ID, "a.txt", "text/plain", []byte("some text to embed"))
	require.NoError(t, err)

	env.embedder.failWith = errors.New("embedding quota exhausted")
	require.NoError(t, env.ingest.Process(context.Background(), doc.ID))

	got, err := env.documents.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "embedding quota exhausted")
	assert.Zero(t, countEmbeddings(t, env, session.ID), "no partial index for a failed document")
}

func TestProcess_FailureDoesNotTouchOtherDocuments(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)

	good := env.uploadAndProcess(t, session.ID, "good.txt", "Python released 1991.")

	env.embedder.failWith = errors.New("provider down")
	env.embedder.failOn = "poison"
	bad, err := env.ingest.Upload(context.Background(), session.ID, "bad.txt", "text/plain", []byte("poison text"))
	require.NoError(t, err)
	require.NoError(t, env.ingest.Process(context.Background(), bad.ID))

	assert.Equal(t, model.StatusFailed, env.documentStatus(t, bad.ID))
	assert.Equal(t, model.StatusIndexed, env.documentStatus(t, good.ID))
}

func TestProcess_WhitespaceOnlyDocumentFails(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)
	doc, err := env.ingest.Upload(context.Background(), session.ID, "blank.txt", "text/plain", []byte("   \n\t  "))
	require.NoError(t, err)

	require.NoError(t, env.ingest.Process(context.Background(), doc.ID))
	got, err := env.documents.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.NotEmpty(t, got.FailureReason)
}

func TestProcess_UnknownDocument(t *testing.T) {
	env := newTestEnv(t)
	err := env.ingest.Process(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestReingest_FailedDocument(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)
	doc, err := env.ingest.Upload(context.Background(), session.ID, "a.txt", "text/plain", []byte("retry me please"))
	require.NoError(t, err)

	env.embedder.failWith = errors.New("transient outage")
	require.NoError(t, env.ingest.Process(context.Background(), doc.ID))
	require.Equal(t, model.StatusFailed, env.documentStatus(t, doc.ID))

	env.embedder.failWith = nil
	require.NoError(t, env.ingest.Reingest(context.Background(), session.ID, doc.ID))
	assert.Equal(t, model.StatusPending, env.documentStatus(t, doc.ID))

	require.NoError(t, env.ingest.Process(context.Background(), doc.ID))
	assert.Equal(t, model.StatusIndexed, env.documentStatus(t, doc.ID))
}

func TestReingest_IsIdempotentOverChunks(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)
	doc := env.uploadAndProcess(t, session.ID, "a.txt", pythonDoc)
	first := countEmbeddings(t, env, session.ID)
	require.NotZero(t, first)

	require.NoError(t, env.ingest.Reingest(context.Background(), session.ID, doc.ID))
	require.NoError(t, env.ingest.Process(context.Background(), doc.ID))

	assert.Equal(t, first, countEmbeddings(t, env, session.ID),
		"re-running ingestion replaces chunks instead of duplicating them")
	assert.Equal(t, model.StatusIndexed, env.documentStatus(t, doc.ID))
}

func TestReingest_BusyDocument(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t)
	doc, err := env.ingest.Upload(context.Background(), session.ID, "a.txt", "text/plain", []byte("text"))
	require.NoError(t, err)

	claimed, err := env.documents.TransitionStatus(doc.ID, model.StatusPending, model.StatusProcessing, "")
	require.NoError(t, err)
	require.True(t, claimed)

	err = env.ingest.Reingest(context.Background(), session.ID, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentBusy)
}

func TestReingest_WrongSession(t *testing.T) {
	env := newTestEnv(t)
	sessionA := env.newSession(t)
	sessionB := env.newSession(t)
	doc := env.uploadAndProcess(t, sessionA.ID, "a.txt", "content here")

	err := env.ingest.Reingest(context.Background(), sessionB.ID, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound,
		"a session must not be able to touch another session's document")
}

func TestStatusTransitionEdges(t *testing.T) {
	cases := []struct {
		from, to model.DocumentStatus
		allowed  bool
	}{
		{model.StatusPending, model.StatusProcessing, true},
		{model.StatusProcessing, model.StatusIndexed, true},
		{model.StatusProcessing, model.StatusFailed, true},
		{model.StatusIndexed, model.StatusPending, true},
		{model.StatusFailed, model.StatusPending, true},
		{model.StatusPending, model.StatusIndexed, false},
		{model.StatusPending, model.StatusFailed, false},
		{model.StatusIndexed, model.StatusProcessing, false},
		{model.StatusFailed, model.StatusIndexed, false},
		{model.StatusProcessing, model.StatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}
