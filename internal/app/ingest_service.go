package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/chunker"
	"ragchat/internal/model"
	"ragchat/internal/pkg/pdfextract"
	"ragchat/internal/repository"
	"ragchat/internal/vectorstore"
)

const maxFailureReasonLen = 512

// IngestQueue hands a document id to the background ingestion worker.
type IngestQueue interface {
	Publish(ctx context.Context, documentID string) error
}

// IngestService drives a document from raw bytes to indexed embeddings.
// Upload records the document and enqueues it; Process runs the pipeline in
// the worker. Each document run is independent: one failing document never
// touches another's status, in this session or any other.
type IngestService struct {
	registry   *SessionService
	documents  *repository.DocumentRepository
	embeddings *repository.EmbeddingRepository
	vectors    *vectorstore.Store
	embedder   Embedder
	queue      IngestQueue

	chunkSize      int
	chunkOverlap   int
	embedBatchSize int
	maxAttempts    int
	backoff        time.Duration
}

func NewIngestService(
	registry *SessionService,
	documents *repository.DocumentRepository,
	embeddings *repository.EmbeddingRepository,
	vectors *vectorstore.Store,
	embedder Embedder,
	queue IngestQueue,
	chunkSize, chunkOverlap, embedBatchSize, maxAttempts int,
	backoff time.Duration,
) *IngestService {
	if embedBatchSize <= 0 {
		embedBatchSize = 10
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &IngestService{
		registry:       registry,
		documents:      documents,
		embeddings:     embeddings,
		vectors:        vectors,
		embedder:       embedder,
		queue:          queue,
		chunkSize:      chunkSize,
		chunkOverlap:   chunkOverlap,
		embedBatchSize: embedBatchSize,
		maxAttempts:    maxAttempts,
		backoff:        backoff,
	}
}

// Upload records the document in pending state and enqueues it for
// background ingestion. It returns as soon as the record is durable; the
// caller polls document status for the outcome.
func (s *IngestService) Upload(ctx context.Context, sessionID, filename, mimeType string, content []byte) (*model.Document, error) {
	if _, err := s.registry.Validate(sessionID); err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidInput)
	}
	if !supportedMimeType(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = "untitled"
	}

	doc := &model.Document{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Filename:  filename,
		MimeType:  mimeType,
		Size:      int64(len(content)),
		Status:    model.StatusPending,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.documents.Create(doc); err != nil {
		return nil, err
	}

	if err := s.queue.Publish(ctx, doc.ID); err != nil {
		// The record stays pending; a later re-ingest can pick it up.
		return nil, fmt.Errorf("enqueue document failed: %w", err)
	}
	return doc, nil
}

// Reingest resets a terminal document to pending and enqueues it again.
// This is the only sanctioned path back to pending.
func (s *IngestService) Reingest(ctx context.Context, sessionID, documentID string) error {
	if _, err := s.registry.Validate(sessionID); err != nil {
		return err
	}
	doc, err := s.documents.GetByIDAndSessionID(documentID, sessionID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if !doc.Status.Terminal() {
		if doc.Status == model.StatusPending {
			return s.queue.Publish(ctx, doc.ID)
		}
		return ErrDocumentBusy
	}
	reset, err := s.documents.TransitionStatus(doc.ID, doc.Status, model.StatusPending, "")
	if err != nil {
		return err
	}
	if !reset {
		return ErrDocumentBusy
	}
	return s.queue.Publish(ctx, doc.ID)
}

// Process runs the ingestion pipeline for one document. The pending →
// processing claim is a conditional update, so at most one run is ever
// active per document; a second consumer holding the same id sees the claim
// fail and walks away. A pipeline failure is recorded on the document and
// is not an error of Process itself.
func (s *IngestService) Process(ctx context.Context, documentID string) error {
	doc, err := s.documents.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	claimed, err := s.documents.TransitionStatus(doc.ID, model.StatusPending, model.StatusProcessing, "")
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("ingest: document %s not claimable (status %s), skipping", doc.ID, doc.Status)
		return nil
	}

	if pipeErr := s.runPipeline(ctx, doc); pipeErr != nil {
		reason := pipeErr.Error()
		if len(reason) > maxFailureReasonLen {
			reason = reason[:maxFailureReasonLen]
		}
		failed, markErr := s.documents.TransitionStatus(doc.ID, model.StatusProcessing, model.StatusFailed, reason)
		if markErr != nil {
			return markErr
		}
		if !failed {
			return fmt.Errorf("document %s left processing state mid-run", doc.ID)
		}
		log.Printf("ingest: document %s failed: %v", doc.ID, pipeErr)
		return nil
	}

	indexed, err := s.documents.TransitionStatus(doc.ID, model.StatusProcessing, model.StatusIndexed, "")
	if err != nil {
		return err
	}
	if !indexed {
		return fmt.Errorf("document %s left processing state mid-run", doc.ID)
	}
	log.Printf("ingest: document %s indexed", doc.ID)
	return nil
}

func (s *IngestService) runPipeline(ctx context.Context, doc *model.Document) error {
	text, err := extractText(doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("document has no extractable text")
	}

	chunks, err := chunker.Split(text, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return fmt.Errorf("chunk text: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("chunking produced no chunks for non-empty input")
	}

	// Drop any chunks from a previous run so re-processing is idempotent.
	if err := s.embeddings.DeleteByDocumentID(doc.ID); err != nil {
		return err
	}

	contents := make([]string, len(chunks))
	positions := make([]int, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
		positions[i] = c.Position
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(contents); start += s.embedBatchSize {
		end := start + s.embedBatchSize
		if end > len(contents) {
			end = len(contents)
		}
		batch := contents[start:end]

		var batchVectors [][]float32
		err := retryWithBackoff(ctx, func() error {
			v, embedErr := s.embedder.EmbedBatch(ctx, batch)
			if embedErr != nil {
				return embedErr
			}
			batchVectors = v
			return nil
		}, s.maxAttempts, s.backoff)
		if err != nil {
			return fmt.Errorf("%w: embed chunks %d-%d: %v", ErrUpstream, start, end-1, err)
		}
		vectors = append(vectors, batchVectors...)
	}

	return s.vectors.InsertBatch(doc.SessionID, doc.ID, contents, positions, vectors)
}

func extractText(doc *model.Document) (string, error) {
	switch doc.MimeType {
	case "application/pdf":
		return pdfextract.ExtractText(doc.Content)
	case "text/plain", "text/markdown":
		return string(doc.Content), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, doc.MimeType)
	}
}

func supportedMimeType(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "text/plain", "text/markdown":
		return true
	}
	return false
}
