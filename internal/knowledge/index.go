// Package knowledge loads the prebuilt knowledge-base index and retrieves
// reference passages for ticket text.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/embedding"
)

// Passage is an immutable unit of reference text owned by the index.
type Passage struct {
	ID         int64
	Source     string
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// Match is a passage ranked against a query.
type Match struct {
	Passage Passage
	Score   float64
}

// Index is the read-only set of embedded passages.
type Index struct {
	passages []Passage
	dims     int
}

// NewIndex builds an in-memory index. All embeddings must share one dimension.
func NewIndex(passages []Passage) (*Index, error) {
	idx := &Index{passages: make([]Passage, 0, len(passages))}
	for _, p := range passages {
		if len(p.Embedding) == 0 {
			return nil, fmt.Errorf("passage %d has no embedding", p.ID)
		}
		if idx.dims == 0 {
			idx.dims = len(p.Embedding)
		}
		if len(p.Embedding) != idx.dims {
			return nil, fmt.Errorf("passage %d has dimension %d, index uses %d", p.ID, len(p.Embedding), idx.dims)
		}
		idx.passages = append(idx.passages, p)
	}
	return idx, nil
}

// LoadIndex reads every passage of the SQLite index file at path. A missing
// file, a missing passages table or an empty table all mean the ingestion job
// never ran and yield domain.ErrIndexUnavailable.
func LoadIndex(ctx context.Context, path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", domain.ErrIndexUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrIndexUnavailable, path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT id, source, chunk_index, content, embedding FROM passages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query passages: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var (
			p       Passage
			rawJSON string
		)
		if err := rows.Scan(&p.ID, &p.Source, &p.ChunkIndex, &p.Content, &rawJSON); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		if err := json.Unmarshal([]byte(rawJSON), &p.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of passage %d: %w", p.ID, err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read passages: %w", err)
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: %s holds no passages", domain.ErrIndexUnavailable, path)
	}
	return NewIndex(passages)
}

// Len returns the number of passages.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.passages)
}

// Dimensions returns the embedding width of the index.
func (i *Index) Dimensions() int {
	if i == nil {
		return 0
	}
	return i.dims
}

// Search ranks passages by cosine similarity to query and returns at most k
// matches scoring at least minScore. Equal scores keep index order.
func (i *Index) Search(query []float32, k int, minScore float64) ([]Match, error) {
	if i.Len() == 0 {
		return nil, domain.ErrIndexUnavailable
	}
	if len(query) != i.dims {
		return nil, fmt.Errorf("query embedding has dimension %d, index uses %d", len(query), i.dims)
	}

	matches := make([]Match, 0, len(i.passages))
	for _, p := range i.passages {
		score, err := embedding.CosineSimilarity(query, p.Embedding)
		if err != nil {
			return nil, err
		}
		if score < minScore {
			continue
		}
		matches = append(matches, Match{Passage: p, Score: score})
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
