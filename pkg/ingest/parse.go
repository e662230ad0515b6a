// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ingest loads legislation files into the document store and the
// vector index.
//
// HK e-Legislation XML keeps its section structure. PDF, Word, Excel and
// plain-text files are reduced to text and split into sections by their
// numbered headings, or into token-bounded chunks when they have none.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
)

// Parsed is a document and its sections, ready to be stored.
type Parsed struct {
	Document documents.Document
	Sections []documents.Section
}

// Parser reads one file format.
type Parser interface {
	Extensions() []string
	Parse(ctx context.Context, path string) (*Parsed, error)
}

// Parsers maps file extensions to parsers.
type Parsers struct {
	byExt map[string]Parser
}

// NewParsers returns the built-in parsers. Text formats are split with
// splitter.
func NewParsers(splitter *Splitter) *Parsers {
	p := &Parsers{byExt: make(map[string]Parser)}
	p.Add(&xmlParser{})
	p.Add(&textParser{splitter: splitter, extract: pdfText, exts: []string{".pdf"}})
	p.Add(&textParser{splitter: splitter, extract: docxText, exts: []string{".docx"}})
	p.Add(&textParser{splitter: splitter, extract: xlsxText, exts: []string{".xlsx"}})
	p.Add(&textParser{splitter: splitter, extract: plainText, exts: []string{".txt", ".md"}})
	return p
}

// Add registers parser for its extensions, replacing earlier ones.
func (p *Parsers) Add(parser Parser) {
	for _, ext := range parser.Extensions() {
		p.byExt[strings.ToLower(ext)] = parser
	}
}

// Supports reports whether path has a registered extension.
func (p *Parsers) Supports(path string) bool {
	_, ok := p.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the registered extensions, sorted.
func (p *Parsers) Extensions() []string {
	out := make([]string, 0, len(p.byExt))
	for ext := range p.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (p *Parsers) Parse(ctx context.Context, path string) (*Parsed, error) {
	parser, ok := p.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("no parser for %q files", filepath.Ext(path))
	}
	parsed, err := parser.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	parsed.Document.SourceFile = path
	parsed.Document.TotalSections = len(parsed.Sections)
	if parsed.Document.WordCount == 0 {
		for _, s := range parsed.Sections {
			parsed.Document.WordCount += len(strings.Fields(s.Content))
		}
	}
	return parsed, nil
}

// textParser extracts plain text and splits it into sections.
type textParser struct {
	splitter *Splitter
	extract  func(ctx context.Context, path string) (string, error)
	exts     []string
}

func (p *textParser) Extensions() []string { return p.exts }

func (p *textParser) Parse(ctx context.Context, path string) (*Parsed, error) {
	text, err := p.extract(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text content")
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	number := DocNumberFromName(base)
	return &Parsed{
		Document: documents.Document{
			DocNumber:  number,
			DocName:    base,
			Identifier: number,
			Category:   "document",
			DocType:    strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			Title:      base,
		},
		Sections: p.splitter.Split(text),
	}, nil
}

func plainText(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func pdfText(ctx context.Context, path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	var parts []string
	for n := 1; n <= reader.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n, err)
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func docxText(_ context.Context, path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open Word document: %w", err)
	}
	defer doc.Close()
	return stripDocxMarkup(doc.Editable().GetContent()), nil
}

// stripDocxMarkup turns the document XML body into paragraphs of text.
func stripDocxMarkup(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	var b strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func xlsxText(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line != "" {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}
