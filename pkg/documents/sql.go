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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// SQLStore implements Store on SQLite, PostgreSQL or MySQL.
type SQLStore struct {
	db     *sql.DB
	driver string
	ph     func(int) string
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates the schema if needed. db is owned by the caller.
func NewSQLStore(ctx context.Context, db *sql.DB, cfg *config.DatabaseConfig) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: cfg.DriverName(), ph: cfg.Placeholder}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	timeCol := "TIMESTAMP"
	keyCol := "TEXT"
	switch s.driver {
	case "postgres":
		idCol = "BIGSERIAL PRIMARY KEY"
	case "mysql":
		idCol = "BIGINT AUTO_INCREMENT PRIMARY KEY"
		timeCol = "DATETIME"
		keyCol = "VARCHAR(191)"
	}
	refCol := "BIGINT"
	if s.driver == "sqlite3" {
		refCol = "INTEGER"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS hk_legal_documents (
	id %s,
	doc_number %s NOT NULL,
	doc_name TEXT NOT NULL,
	identifier TEXT,
	category TEXT,
	doc_type TEXT,
	doc_status TEXT,
	language TEXT,
	title TEXT,
	long_title TEXT,
	total_sections INTEGER NOT NULL DEFAULT 0,
	word_count INTEGER NOT NULL DEFAULT 0,
	source_file TEXT,
	created_at %s NOT NULL,
	updated_at %s NOT NULL
)`, idCol, keyCol, timeCol, timeCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS hk_legal_sections (
	id %s,
	document_id %s NOT NULL REFERENCES hk_legal_documents(id) ON DELETE CASCADE,
	section_key TEXT,
	section_number TEXT,
	heading TEXT,
	content TEXT NOT NULL
)`, idCol, refCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS custom_workflows (
	id %s,
	workflow_id %s NOT NULL UNIQUE,
	name TEXT NOT NULL,
	category TEXT,
	definition TEXT NOT NULL,
	is_active BOOLEAN NOT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL
)`, idCol, keyCol, timeCol, timeCol),
	}
	if s.driver != "mysql" {
		stmts = append(stmts,
			"CREATE INDEX IF NOT EXISTS idx_documents_doc_number ON hk_legal_documents(doc_number)",
			"CREATE INDEX IF NOT EXISTS idx_sections_document_id ON hk_legal_sections(document_id)")
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "failed to migrate document schema", xerrors.WithRetryable(false))
		}
	}
	return nil
}

// bind rewrites "?" placeholders for the driver.
func (s *SQLStore) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.ph(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) insert(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if s.driver == "postgres" {
		var id int64
		err := tx.QueryRowContext(ctx, s.bind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, s.bind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func storageErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return xerrors.Wrap(xerrors.CodeStorageFailure, err, msg)
}

func (s *SQLStore) CreateDocument(ctx context.Context, doc *Document, sections []Section) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if doc.TotalSections == 0 {
		doc.TotalSections = len(sections)
	}

	docID, err := s.insert(ctx, tx, `INSERT INTO hk_legal_documents
(doc_number, doc_name, identifier, category, doc_type, doc_status, language, title, long_title, total_sections, word_count, source_file, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.DocNumber, doc.DocName, doc.Identifier, doc.Category, doc.DocType, doc.Status, doc.Language,
		doc.Title, doc.LongTitle, doc.TotalSections, doc.WordCount, doc.SourceFile, now, now)
	if err != nil {
		return storageErr(err, "failed to insert document")
	}

	for i := range sections {
		sections[i].DocumentID = docID
		secID, err := s.insert(ctx, tx, `INSERT INTO hk_legal_sections
(document_id, section_key, section_number, heading, content) VALUES (?, ?, ?, ?, ?)`,
			docID, sections[i].SectionKey, sections[i].SectionNumber, sections[i].Heading, sections[i].Content)
		if err != nil {
			return storageErr(err, fmt.Sprintf("failed to insert section %s", sections[i].SectionNumber))
		}
		sections[i].ID = secID
	}

	if err := tx.Commit(); err != nil {
		return storageErr(err, "failed to commit document")
	}
	doc.ID = docID
	doc.CreatedAt, doc.UpdatedAt = now, now
	return nil
}

const documentColumns = `id, doc_number, doc_name, COALESCE(identifier, ''), COALESCE(category, ''), COALESCE(doc_type, ''),
COALESCE(doc_status, ''), COALESCE(language, ''), COALESCE(title, ''), COALESCE(long_title, ''),
total_sections, word_count, COALESCE(source_file, ''), created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.DocNumber, &d.DocName, &d.Identifier, &d.Category, &d.DocType,
		&d.Status, &d.Language, &d.Title, &d.LongTitle,
		&d.TotalSections, &d.WordCount, &d.SourceFile, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLStore) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, s.bind("SELECT "+documentColumns+" FROM hk_legal_documents WHERE id = ?"), id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, storageErr(err, "failed to load document")
	}
	return doc, nil
}

func (s *SQLStore) DocumentByNumber(ctx context.Context, docNumber string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		s.bind("SELECT "+documentColumns+" FROM hk_legal_documents WHERE doc_number = ? ORDER BY id DESC LIMIT 1"), docNumber)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, storageErr(err, "failed to load document")
	}
	return doc, nil
}

func (s *SQLStore) GetSection(ctx context.Context, id int64) (*SectionRef, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT s.id, s.document_id, COALESCE(s.section_key, ''), COALESCE(s.section_number, ''),
COALESCE(s.heading, ''), s.content, d.doc_number, d.doc_name, COALESCE(d.title, '')
FROM hk_legal_sections s JOIN hk_legal_documents d ON d.id = s.document_id
WHERE s.id = ?`), id)

	var ref SectionRef
	err := row.Scan(&ref.ID, &ref.DocumentID, &ref.SectionKey, &ref.SectionNumber,
		&ref.Heading, &ref.Content, &ref.DocNumber, &ref.DocName, &ref.DocTitle)
	if err != nil {
		return nil, storageErr(err, "failed to load section")
	}
	return &ref, nil
}

func (s *SQLStore) ListDocuments(ctx context.Context, limit int) ([]Document, error) {
	query := "SELECT " + documentColumns + " FROM hk_legal_documents ORDER BY id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, storageErr(err, "failed to list documents")
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, storageErr(err, "failed to scan document")
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "failed to list documents")
	}
	return out, nil
}

func (s *SQLStore) DeleteDocument(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.bind("DELETE FROM hk_legal_sections WHERE document_id = ?"), id); err != nil {
		return storageErr(err, "failed to delete sections")
	}
	res, err := tx.ExecContext(ctx, s.bind("DELETE FROM hk_legal_documents WHERE id = ?"), id)
	if err != nil {
		return storageErr(err, "failed to delete document")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err, "failed to commit delete")
	}
	return nil
}

// Close is a no-op; the *sql.DB belongs to the config.DBPool.
func (s *SQLStore) Close() error { return nil }
