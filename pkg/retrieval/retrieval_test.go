package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retry"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/vector"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }
func (f *fakeEmbedder) Model() string  { return "fake" }
func (f *fakeEmbedder) Close() error   { return nil }

func fastPolicy() retry.Policy {
	return retry.Policy{Timeout: time.Second, MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func newFixture(t *testing.T) (*Service, *fakeEmbedder) {
	t.Helper()
	ctx := context.Background()

	store := documents.NewMemoryStore()
	sections := []documents.Section{
		{SectionKey: "s10", SectionNumber: "10", Heading: "Annual leave", Content: "An employee is entitled to annual leave."},
		{SectionKey: "s11", SectionNumber: "11", Heading: "Sick leave", Content: "Sickness allowance is payable."},
	}
	doc := &documents.Document{DocNumber: "Cap. 57", DocName: "Employment Ordinance", Title: "Employment Ordinance"}
	require.NoError(t, store.CreateDocument(ctx, doc, sections))

	index, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	require.NoError(t, index.EnsureCollection(ctx, "hk_legal_sections", 3))
	require.NoError(t, index.Upsert(ctx, "hk_legal_sections",
		vector.Record{ID: "cap57-10", Vector: []float32{1, 0, 0}, Content: sections[0].Content,
			Metadata: map[string]any{"db_id": fmt.Sprint(sections[0].ID)}},
		vector.Record{ID: "cap57-11", Vector: []float32{0.8, 0.6, 0}, Content: sections[1].Content,
			Metadata: map[string]any{"db_id": fmt.Sprint(sections[1].ID)}},
		vector.Record{ID: "orphan", Vector: []float32{0, 1, 0}, Content: "Unrelated text",
			Metadata: map[string]any{"db_id": "999", "doc_number": "Cap. 1"}},
	))

	emb := &fakeEmbedder{vectors: map[string][]float32{"annual leave": {1, 0, 0}}}
	svc, err := NewService(emb, index, store, Options{Collection: "hk_legal_sections", Policy: fastPolicy(), Enrich: true})
	require.NoError(t, err)
	return svc, emb
}

func TestSearch_OrdersAndEnriches(t *testing.T) {
	svc, _ := newFixture(t)

	passages, err := svc.Search(context.Background(), "annual leave", 5, 0.3)
	require.NoError(t, err)
	require.Len(t, passages, 2)

	assert.Equal(t, "Cap. 57", passages[0].SourceID)
	assert.Equal(t, "10", passages[0].SubSectionID)
	assert.Equal(t, "Annual leave", passages[0].Metadata["section_heading"])
	assert.Equal(t, "Cap. 57, Section 10", passages[0].Citation())
	assert.Equal(t, "11", passages[1].SubSectionID)
	assert.GreaterOrEqual(t, passages[0].Score, passages[1].Score)
	for _, p := range passages {
		assert.GreaterOrEqual(t, p.Score, 0.3)
	}
}

func TestSearch_TopKAndFloor(t *testing.T) {
	svc, _ := newFixture(t)

	passages, err := svc.Search(context.Background(), "annual leave", 1, 0)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "10", passages[0].SubSectionID)

	passages, err = svc.Search(context.Background(), "annual leave", 5, 0.99)
	require.NoError(t, err)
	assert.Len(t, passages, 1)
}

func TestSearch_EmptyIsNotError(t *testing.T) {
	svc, _ := newFixture(t)

	passages, err := svc.Search(context.Background(), "nothing similar", 5, 0.9)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestSearch_MissingSectionKeepsRawHit(t *testing.T) {
	svc, _ := newFixture(t)

	emb := svc.embedder.(*fakeEmbedder)
	emb.vectors["unrelated"] = []float32{0, 1, 0}

	passages, err := svc.Search(context.Background(), "unrelated", 1, 0.9)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "Cap. 1", passages[0].SourceID)
	assert.Equal(t, "Unrelated text", passages[0].Text)
}

func TestSearch_InvalidArguments(t *testing.T) {
	svc, emb := newFixture(t)

	_, err := svc.Search(context.Background(), "q", 0, 0.3)
	assert.True(t, xerrors.IsInput(err))
	_, err = svc.Search(context.Background(), "q", 5, 1.5)
	assert.True(t, xerrors.IsInput(err))
	_, err = svc.Search(context.Background(), "", 5, 0.3)
	assert.True(t, errors.Is(err, xerrors.ErrMissingField))
	assert.Zero(t, emb.calls)
}

func TestSearch_UnavailableIsRetriedThenReported(t *testing.T) {
	svc, emb := newFixture(t)
	emb.err = errors.New("connection refused")

	_, err := svc.Search(context.Background(), "annual leave", 5, 0.3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrRetrievalUnavailable))
	assert.Equal(t, 2, emb.calls)
}

func TestRank_StableDescending(t *testing.T) {
	in := []Passage{
		{SourceID: "a", Score: 0.5},
		{SourceID: "b", Score: 0.9},
		{SourceID: "c", Score: 0.5},
		{SourceID: "d", Score: 0.1},
		{SourceID: "e", Score: 0.9},
	}
	out := Rank(in, 4, 0.2)

	ids := make([]string, len(out))
	for i, p := range out {
		ids[i] = p.SourceID
	}
	assert.Equal(t, []string{"b", "e", "a", "c"}, ids)
	assert.Equal(t, "a", in[0].SourceID)
}

func TestFunc_Adapter(t *testing.T) {
	var r Retriever = Func(func(_ context.Context, q string, topK int, _ float64) ([]Passage, error) {
		return []Passage{{SourceID: q, Score: float64(topK)}}, nil
	})
	out, err := r.Search(context.Background(), "x", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "x", out[0].SourceID)
}

func TestFormatContext(t *testing.T) {
	passages := []Passage{
		{SourceID: "Cap. 57", SubSectionID: "10", Text: "Leave text",
			Metadata: map[string]any{"doc_name": "Employment Ordinance", "doc_title": "Employment Ordinance", "section_heading": "Annual leave"}},
		{SourceID: "Cap. 282", Text: strings.Repeat("x", 100)},
	}

	out := FormatContext(passages, 0)
	assert.Contains(t, out, "--- Employment Ordinance ---\nSection 10: Annual leave\n\nLeave text")
	assert.Contains(t, out, "--- Cap. 282 ---\n")

	limited := FormatContext(passages, 80)
	assert.NotContains(t, limited, "Cap. 282")

	first := FormatContext(passages[1:], 20)
	assert.Len(t, first, 20)
}
