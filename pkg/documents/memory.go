// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu        sync.RWMutex
	nextDoc   int64
	nextSec   int64
	documents map[int64]Document
	sections  map[int64]Section
	workflows map[string]WorkflowDefinition
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[int64]Document),
		sections:  make(map[int64]Section),
		workflows: make(map[string]WorkflowDefinition),
	}
}

func (s *MemoryStore) CreateDocument(_ context.Context, doc *Document, sections []Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDoc++
	now := time.Now().UTC()
	doc.ID = s.nextDoc
	doc.CreatedAt, doc.UpdatedAt = now, now
	if doc.TotalSections == 0 {
		doc.TotalSections = len(sections)
	}
	s.documents[doc.ID] = *doc

	for i := range sections {
		s.nextSec++
		sections[i].ID = s.nextSec
		sections[i].DocumentID = doc.ID
		s.sections[sections[i].ID] = sections[i]
	}
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id int64) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) DocumentByNumber(_ context.Context, docNumber string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.documents {
		if doc.DocNumber == docNumber {
			return &doc, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetSection(_ context.Context, id int64) (*SectionRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, ok := s.sections[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc := s.documents[sec.DocumentID]
	return &SectionRef{Section: sec, DocNumber: doc.DocNumber, DocName: doc.DocName, DocTitle: doc.Title}, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, 0, len(s.documents))
	for _, doc := range s.documents {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return ErrNotFound
	}
	delete(s.documents, id)
	for sid, sec := range s.sections {
		if sec.DocumentID == id {
			delete(s.sections, sid)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
