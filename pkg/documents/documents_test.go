package documents

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	cfg := &config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "vault.db")}
	cfg.SetDefaults()

	pool := config.NewDBPool()
	t.Cleanup(func() { _ = pool.Close() })

	db, err := pool.Get(context.Background(), cfg)
	require.NoError(t, err)

	store, err := NewSQLStore(context.Background(), db, cfg)
	require.NoError(t, err)
	return store
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func sampleDocument() (*Document, []Section) {
	doc := &Document{DocNumber: "Cap. 57", DocName: "Employment Ordinance", Title: "Employment Ordinance", Category: "ordinance"}
	sections := []Section{
		{SectionNumber: "10", Heading: "Annual leave", Content: "An employee is entitled to annual leave..."},
		{SectionNumber: "11", Heading: "Sick leave", Content: "Sickness allowance..."},
	}
	return doc, sections
}

func TestStore_CreateAndGetSection(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc, sections := sampleDocument()

			require.NoError(t, store.CreateDocument(ctx, doc, sections))
			require.NotZero(t, doc.ID)
			assert.Equal(t, 2, doc.TotalSections)
			require.NotZero(t, sections[1].ID)

			ref, err := store.GetSection(ctx, sections[1].ID)
			require.NoError(t, err)
			assert.Equal(t, "Sick leave", ref.Heading)
			assert.Equal(t, "Cap. 57", ref.DocNumber)
			assert.Equal(t, "Employment Ordinance", ref.DocTitle)
			assert.Equal(t, "Cap. 57, Section 11", ref.Citation())

			byNumber, err := store.DocumentByNumber(ctx, "Cap. 57")
			require.NoError(t, err)
			assert.Equal(t, doc.ID, byNumber.ID)

			got, err := store.GetDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, "ordinance", got.Category)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.GetSection(ctx, 999)
			assert.True(t, errors.Is(err, ErrNotFound))

			_, err = store.DocumentByNumber(ctx, "Cap. 1")
			assert.True(t, errors.Is(err, ErrNotFound))

			assert.True(t, errors.Is(store.DeleteDocument(ctx, 999), ErrNotFound))
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, firstSections := sampleDocument()
			require.NoError(t, store.CreateDocument(ctx, first, firstSections))
			second := &Document{DocNumber: "Cap. 7", DocName: "Landlord and Tenant (Consolidation) Ordinance"}
			require.NoError(t, store.CreateDocument(ctx, second, nil))

			docs, err := store.ListDocuments(ctx, 0)
			require.NoError(t, err)
			require.Len(t, docs, 2)
			assert.Equal(t, "Cap. 57", docs[0].DocNumber)

			limited, err := store.ListDocuments(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			require.NoError(t, store.DeleteDocument(ctx, first.ID))
			_, err = store.GetSection(ctx, firstSections[0].ID)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestSectionRef_CitationWithoutNumber(t *testing.T) {
	ref := SectionRef{DocNumber: "Cap. 7"}
	assert.Equal(t, "Cap. 7", ref.Citation())
}
