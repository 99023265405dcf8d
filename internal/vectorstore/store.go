package vectorstore

import (
	"fmt"
	"sort"
	"time"

	"ragchat/internal/model"
	"ragchat/internal/repository"
)

// Store answers top-k cosine similarity queries over chunk embeddings,
// scoped to exactly one session. Scoping is structural: the session id is
// part of the SQL predicate in the embedding repository, so no record from
// another session can enter the candidate set in the first place. The
// post-scan ownership check exists to turn a hypothetical breach into a
// loud, typed error instead of a silent leak.
type Store struct {
	embeddings *repository.EmbeddingRepository
}

func New(embeddings *repository.EmbeddingRepository) *Store {
	return &Store{embeddings: embeddings}
}

// ScoredChunk is one search hit: the stored record and its cosine
// similarity to the query.
type ScoredChunk struct {
	Record model.Embedding
	Score  float64
}

// IsolationError reports a record that escaped its session scope. It is an
// internal-invariant breach, never retried and never filtered away.
type IsolationError struct {
	WantSessionID string
	GotSessionID  string
	RecordID      uint
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("isolation violation: record %d belongs to session %s, queried as session %s",
		e.RecordID, e.GotSessionID, e.WantSessionID)
}

// Insert stores one chunk vector tagged with its owning session and
// document. Records are immutable once written.
func (s *Store) Insert(sessionID, documentID, content string, position int, vector []float32) (uint, error) {
	records := []model.Embedding{{
		DocumentID: documentID,
		SessionID:  sessionID,
		Content:    content,
		Position:   position,
		CreatedAt:  time.Now(),
	}}
	records[0].SetVector(vector)
	if err := s.embeddings.CreateBatch(records); err != nil {
		return 0, err
	}
	return records[0].ID, nil
}

// InsertBatch stores all chunks of one document in a single write.
func (s *Store) InsertBatch(sessionID, documentID string, contents []string, positions []int, vectors [][]float32) error {
	if len(contents) != len(vectors) || len(contents) != len(positions) {
		return fmt.Errorf("insert batch length mismatch: %d contents, %d positions, %d vectors",
			len(contents), len(positions), len(vectors))
	}
	now := time.Now()
	records := make([]model.Embedding, len(contents))
	for i := range contents {
		records[i] = model.Embedding{
			DocumentID: documentID,
			SessionID:  sessionID,
			Content:    contents[i],
			Position:   positions[i],
			CreatedAt:  now,
		}
		records[i].SetVector(vectors[i])
	}
	return s.embeddings.CreateBatch(records)
}

// Search returns at most topK records of the given session ordered by
// descending cosine similarity to the query. Ties are broken by ascending
// insertion order, so results are deterministic. A session with no
// embeddings yields an empty result, not an error.
func (s *Store) Search(sessionID string, query []float32, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	records, err := s.embeddings.ListBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	scored := make([]ScoredChunk, 0, len(records))
	for i := range records {
		if records[i].SessionID != sessionID {
			return nil, &IsolationError{
				WantSessionID: sessionID,
				GotSessionID:  records[i].SessionID,
				RecordID:      records[i].ID,
			}
		}
		scored = append(scored, ScoredChunk{
			Record: records[i],
			Score:  CosineSimilarity(query, records[i].VectorSlice()),
		})
	}

	// Records arrive in id ASC order; the stable sort keeps earlier
	// insertions ahead on equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}
