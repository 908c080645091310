package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/embedding"
)

// DefaultTopK is the number of passages returned when the caller passes k <= 0.
const DefaultTopK = 3

// passageSeparator joins retrieved passages in rank order.
const passageSeparator = "\n\n"

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query must not be empty")

// RetrieverOptions tunes ranking.
type RetrieverOptions struct {
	TopK     int
	MinScore float64
}

// Retriever embeds ticket text and returns the closest passages as context.
type Retriever struct {
	index    *Index
	engine   embedding.Engine
	topK     int
	minScore float64
	logger   *zap.Logger
}

// NewRetriever wires an index to the engine it was built with. A nil index is
// accepted so that the process can start and report the missing index.
func NewRetriever(index *Index, engine embedding.Engine, opts RetrieverOptions, logger *zap.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine != nil && embedding.IsRemote(engine) {
		logger.Warn("embedding engine is remote; ticket descriptions leave this host",
			zap.String("engine", engine.Name()))
	}
	return &Retriever{
		index:    index,
		engine:   engine,
		topK:     opts.TopK,
		minScore: opts.MinScore,
		logger:   logger,
	}
}

// Ready reports whether the index is loaded.
func (r *Retriever) Ready() error {
	if r == nil || r.index.Len() == 0 || r.engine == nil {
		return domain.ErrIndexUnavailable
	}
	return nil
}

// Retrieve returns the text of the k most similar passages joined by a blank
// line. It returns "" when no passage clears the relevance floor.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (string, error) {
	matches, err := r.Search(ctx, query, k)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Passage.Content)
	}
	return strings.Join(parts, passageSeparator), nil
}

// Search returns the ranked matches behind Retrieve.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if err := r.Ready(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = r.topK
	}

	vec, err := r.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query with %s: %w", r.engine.Name(), err)
	}
	matches, err := r.index.Search(vec, k, r.minScore)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("knowledge retrieved",
		zap.Int("requested", k),
		zap.Int("matched", len(matches)),
	)
	return matches, nil
}
