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

// Package documents is the persistence collaborator holding ordinances and
// their sections. Retrieval enriches vector hits with document titles and
// section headings from here; ingestion writes to it.
package documents

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a document or section does not exist.
var ErrNotFound = errors.New("not found")

// Document is an ordinance or piece of subsidiary legislation.
type Document struct {
	ID            int64
	DocNumber     string // e.g. "Cap. 57"
	DocName       string // e.g. "Employment Ordinance"
	Identifier    string
	Category      string // ordinance or subsidiary_legislation
	DocType       string
	Status        string
	Language      string
	Title         string
	LongTitle     string
	TotalSections int
	WordCount     int
	SourceFile    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Section is one numbered section of a document.
type Section struct {
	ID            int64
	DocumentID    int64
	SectionKey    string
	SectionNumber string
	Heading       string
	Content       string
}

// SectionRef is a section joined with its document.
type SectionRef struct {
	Section
	DocNumber string
	DocName   string
	DocTitle  string
}

// Citation renders "Cap. 57, Section 10".
func (r SectionRef) Citation() string {
	if r.SectionNumber == "" {
		return r.DocNumber
	}
	return fmt.Sprintf("%s, Section %s", r.DocNumber, r.SectionNumber)
}

// Store persists documents and sections.
type Store interface {
	// CreateDocument inserts doc and its sections and assigns their IDs.
	CreateDocument(ctx context.Context, doc *Document, sections []Section) error

	GetDocument(ctx context.Context, id int64) (*Document, error)
	DocumentByNumber(ctx context.Context, docNumber string) (*Document, error)
	GetSection(ctx context.Context, id int64) (*SectionRef, error)
	ListDocuments(ctx context.Context, limit int) ([]Document, error)

	// DeleteDocument removes a document and its sections.
	DeleteDocument(ctx context.Context, id int64) error

	Close() error
}
