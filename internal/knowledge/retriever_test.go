package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

type fakeEngine struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEngine) Name() string { return "fake" }

type hostedEngine struct{ fakeEngine }

func (hostedEngine) Remote() bool { return true }

func writeIndexFile(t *testing.T, passages []Passage) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE passages (
		id INTEGER PRIMARY KEY,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding TEXT NOT NULL
	)`)
	require.NoError(t, err)
	for _, p := range passages {
		raw, err := json.Marshal(p.Embedding)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO passages (id, source, chunk_index, content, embedding) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Source, p.ChunkIndex, p.Content, string(raw))
		require.NoError(t, err)
	}
	return path
}

func samplePassages() []Passage {
	return []Passage{
		{ID: 1, Source: "refunds.pdf", Content: "Refunds are issued within 14 days.", Embedding: []float32{1, 0, 0}},
		{ID: 2, Source: "login.pdf", Content: "Reset your password from the login page.", Embedding: []float32{0, 1, 0}},
		{ID: 3, Source: "refunds.pdf", ChunkIndex: 1, Content: "Exchanges require the original receipt.", Embedding: []float32{0.8, 0.2, 0}},
		{ID: 4, Source: "shipping.pdf", Content: "Orders ship in two business days.", Embedding: []float32{0.5, 0.5, 0.1}},
	}
}

func TestLoadIndexReadsPassages(t *testing.T) {
	path := writeIndexFile(t, samplePassages())

	idx, err := LoadIndex(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 3, idx.Dimensions())
}

func TestLoadIndexMissingFile(t *testing.T) {
	_, err := LoadIndex(context.Background(), filepath.Join(t.TempDir(), "absent.db"))
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestLoadIndexEmptyTable(t *testing.T) {
	path := writeIndexFile(t, nil)

	_, err := LoadIndex(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestNewIndexRejectsMixedDimensions(t *testing.T) {
	_, err := NewIndex([]Passage{
		{ID: 1, Embedding: []float32{1, 0}},
		{ID: 2, Embedding: []float32{1, 0, 0}},
	})
	assert.Error(t, err)
}

func TestRetrieveReturnsTopKInRankOrder(t *testing.T) {
	idx, err := NewIndex(samplePassages())
	require.NoError(t, err)
	engine := &fakeEngine{vectors: map[string][]float32{"I want a refund": {1, 0, 0}}}
	r := NewRetriever(idx, engine, RetrieverOptions{}, nil)

	got, err := r.Retrieve(context.Background(), "I want a refund", 2)
	require.NoError(t, err)
	assert.Equal(t, "Refunds are issued within 14 days.\n\nExchanges require the original receipt.", got)
}

func TestRetrieveDefaultsKWhenNonPositive(t *testing.T) {
	idx, err := NewIndex(samplePassages())
	require.NoError(t, err)
	engine := &fakeEngine{vectors: map[string][]float32{"refund": {1, 0, 0}}}
	r := NewRetriever(idx, engine, RetrieverOptions{}, nil)

	matches, err := r.Search(context.Background(), "refund", 0)
	require.NoError(t, err)
	assert.Len(t, matches, DefaultTopK)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestRetrieveBelowFloorReturnsEmpty(t *testing.T) {
	idx, err := NewIndex(samplePassages())
	require.NoError(t, err)
	engine := &fakeEngine{vectors: map[string][]float32{"weather": {0, 0, 1}}}
	r := NewRetriever(idx, engine, RetrieverOptions{MinScore: 0.9}, nil)

	got, err := r.Retrieve(context.Background(), "weather", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieverReadiness(t *testing.T) {
	r := NewRetriever(nil, &fakeEngine{}, RetrieverOptions{}, nil)
	assert.ErrorIs(t, r.Ready(), domain.ErrIndexUnavailable)

	_, err := r.Retrieve(context.Background(), "refund", 3)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	idx, err := NewIndex(samplePassages())
	require.NoError(t, err)
	r := NewRetriever(idx, &fakeEngine{}, RetrieverOptions{}, nil)

	_, err = r.Retrieve(context.Background(), "   ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRetrievePropagatesEngineError(t *testing.T) {
	idx, err := NewIndex(samplePassages())
	require.NoError(t, err)
	r := NewRetriever(idx, &fakeEngine{err: errors.New("connection refused")}, RetrieverOptions{}, nil)

	_, err = r.Retrieve(context.Background(), "refund", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewRetrieverWarnsOnRemoteEngine(t *testing.T) {
	index, err := NewIndex(samplePassages())
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	NewRetriever(index, &fakeEngine{}, RetrieverOptions{}, zap.New(core))
	assert.Zero(t, logs.Len())

	NewRetriever(index, &hostedEngine{}, RetrieverOptions{}, zap.New(core))
	entries := logs.FilterMessage("embedding engine is remote; ticket descriptions leave this host").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "fake", entries[0].ContextMap()["engine"])
}
