package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/vector"
)

const ordinanceXML = `<?xml version="1.0" encoding="UTF-8"?>
<ordinance xmlns="http://www.xml.gov.hk/schemas/hklm/1.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <meta>
    <docName>Employment Ordinance</docName>
    <docType>ordinance</docType>
    <docNumber>Cap. 57</docNumber>
    <docStatus>In effect</docStatus>
    <dc:identifier>/hk/cap57</dc:identifier>
    <dc:language>en</dc:language>
  </meta>
  <main>
    <docTitle>Employment Ordinance</docTitle>
    <longTitle>To provide for the protection of wages.</longTitle>
    <part>
      <section id="s6">
        <num>6.</num>
        <heading>Termination of contract by notice</heading>
        <subsection><num>(1)</num><content>Either party may <b>terminate</b> the contract by notice.</content></subsection>
      </section>
      <section id="s7">
        <num>7.</num>
        <heading>Payment in lieu of notice</heading>
        <content>Wages in lieu of notice are payable.</content>
      </section>
    </part>
  </main>
</ordinance>`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestXMLParser(t *testing.T) {
	path := writeFile(t, "cap57.xml", ordinanceXML)

	parsed, err := NewParsers(nil).Parse(context.Background(), path)
	require.NoError(t, err)

	doc := parsed.Document
	assert.Equal(t, "Cap. 57", doc.DocNumber)
	assert.Equal(t, "Employment Ordinance", doc.DocName)
	assert.Equal(t, "ordinance", doc.Category)
	assert.Equal(t, "/hk/cap57", doc.Identifier)
	assert.Equal(t, "To provide for the protection of wages.", doc.LongTitle)
	assert.Equal(t, 2, doc.TotalSections)
	assert.Equal(t, path, doc.SourceFile)

	require.Len(t, parsed.Sections, 2)
	s := parsed.Sections[0]
	assert.Equal(t, "s6", s.SectionKey)
	assert.Equal(t, "6", s.SectionNumber)
	assert.Equal(t, "Termination of contract by notice", s.Heading)
	assert.Contains(t, s.Content, "Either party may terminate the contract by notice.")
}

func TestXMLParser_Errors(t *testing.T) {
	parsers := NewParsers(nil)

	_, err := parsers.Parse(context.Background(), writeFile(t, "x.xml", `<unknown/>`))
	assert.ErrorContains(t, err, "unknown document type")

	_, err = parsers.Parse(context.Background(), writeFile(t, "y.xml", `<ordinance><meta>`))
	assert.ErrorContains(t, err, "invalid XML")

	_, err = parsers.Parse(context.Background(), writeFile(t, "z.rtf", `x`))
	assert.ErrorContains(t, err, "no parser")
}

func TestDocNumberFromName(t *testing.T) {
	assert.Equal(t, "Cap. 57", DocNumberFromName("cap57_employment"))
	assert.Equal(t, "Cap. 282B", DocNumberFromName("Cap. 282b"))
	assert.Equal(t, "handbook", DocNumberFromName("handbook"))
}

func TestStripDocxMarkup(t *testing.T) {
	xml := `<w:body><w:p><w:r><w:t>First</w:t></w:r></w:p><w:p><w:r><w:t>Second</w:t></w:r></w:p></w:body>`
	assert.Equal(t, "First\nSecond\n", stripDocxMarkup(xml))
}

func newSplitter(t *testing.T, maxTokens int) *Splitter {
	t.Helper()
	s, err := NewSplitter("", maxTokens)
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	return s
}

func TestSplitter_Headings(t *testing.T) {
	s := newSplitter(t, 512)
	text := "Preamble text.\n\n6. Termination of contract by notice\nEither party may terminate.\n\n7. Payment in lieu of notice\nWages are payable.\n"

	sections := s.Split(text)
	require.Len(t, sections, 2)
	assert.Equal(t, "6", sections[0].SectionNumber)
	assert.Equal(t, "Termination of contract by notice", sections[0].Heading)
	assert.Equal(t, "Either party may terminate.", sections[0].Content)
	assert.Equal(t, "7", sections[1].SectionNumber)
}

func TestSplitter_RepeatedNumbers(t *testing.T) {
	s := newSplitter(t, 512)
	text := "1. Short title\nA.\n\n2. Interpretation\nB.\n\n1. Schedule item\nC.\n"

	sections := s.Split(text)
	require.Len(t, sections, 3)
	assert.Equal(t, "1(2)", sections[2].SectionNumber)
}

func TestSplitter_ChunksWithoutHeadings(t *testing.T) {
	s := newSplitter(t, 20)
	para := strings.Repeat("word ", 15)
	text := strings.Join([]string{para, para, para}, "\n\n")

	sections := s.Split(text)
	require.Greater(t, len(sections), 1)
	for i, sec := range sections {
		assert.LessOrEqual(t, s.CountTokens(sec.Content), 20)
		assert.NotEmpty(t, sec.SectionNumber, "section %d", i)
	}
	assert.Equal(t, "1", sections[0].SectionNumber)
}

type fakeEmbedder struct {
	dim  int
	fail bool
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("embedder down")
	}
	v := make([]float32, e.dim)
	v[0] = float32(len(text))
	return v, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int { return e.dim }
func (e *fakeEmbedder) Model() string  { return "fake" }
func (e *fakeEmbedder) Close() error   { return nil }

type fakeIndex struct {
	mu      sync.Mutex
	records map[string][]vector.Record
	deleted []map[string]any
}

func newFakeIndex() *fakeIndex { return &fakeIndex{records: make(map[string][]vector.Record)} }

func (f *fakeIndex) Name() string { return "fake" }
func (f *fakeIndex) EnsureCollection(context.Context, string, int) error {
	return nil
}
func (f *fakeIndex) Upsert(_ context.Context, collection string, records ...vector.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[collection] = append(f.records[collection], records...)
	return nil
}
func (f *fakeIndex) Search(context.Context, vector.Query) ([]vector.Result, error) { return nil, nil }
func (f *fakeIndex) DeleteByFilter(_ context.Context, _ string, filter map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, filter)
	return nil
}
func (f *fakeIndex) Close() error { return nil }

func newIngester(t *testing.T, emb *fakeEmbedder, index *fakeIndex, store documents.Store) *Ingester {
	t.Helper()
	ing, err := New(Config{
		Parsers:    NewParsers(nil),
		Store:      store,
		Index:      index,
		Embedder:   emb,
		Collection: "sections",
		BatchSize:  1,
	})
	require.NoError(t, err)
	return ing
}

func TestIngestFile(t *testing.T) {
	store := documents.NewMemoryStore()
	index := newFakeIndex()
	ing := newIngester(t, &fakeEmbedder{dim: 4}, index, store)
	path := writeFile(t, "cap57.xml", ordinanceXML)

	res, err := ing.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sections)
	assert.Equal(t, "Cap. 57", res.DocNumber)

	records := index.records["sections"]
	require.Len(t, records, 2)
	md := records[0].Metadata
	assert.Equal(t, "Cap. 57", md["doc_number"])
	assert.Equal(t, "6", md["section_number"])
	assert.Equal(t, "Termination of contract by notice", md["section_heading"])

	ref, err := store.GetSection(context.Background(), md["db_id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, "Employment Ordinance", ref.DocName)

	again, err := ing.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Len(t, index.records["sections"], 2)
}

func TestIngestFile_RollsBackOnEmbedFailure(t *testing.T) {
	store := documents.NewMemoryStore()
	index := newFakeIndex()
	ing := newIngester(t, &fakeEmbedder{dim: 4, fail: true}, index, store)

	_, err := ing.IngestFile(context.Background(), writeFile(t, "cap57.xml", ordinanceXML))
	require.ErrorContains(t, err, "embedder down")

	_, err = store.DocumentByNumber(context.Background(), "Cap. 57")
	assert.ErrorIs(t, err, documents.ErrNotFound)
	require.Len(t, index.deleted, 1)
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte(ordinanceXML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xml"), []byte(`<bogus/>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.rtf"), []byte(`ignored`), 0o644))

	ing := newIngester(t, &fakeEmbedder{dim: 4}, newFakeIndex(), documents.NewMemoryStore())
	report, err := ing.IngestDir(context.Background(), dir, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Sections)
	require.Len(t, report.Files, 2)
	assert.NotEmpty(t, report.Files[1].Error)
}
