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

package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
)

const (
	DefaultEncoding  = "cl100k_base"
	DefaultMaxTokens = 512
)

var (
	headingRe   = regexp.MustCompile(`(?m)^[ \t]*(?:[Ss]ection[ \t]+)?(\d{1,4}[A-Z]{0,2})\.?[ \t]+([A-Z][^\n]{0,150})[ \t]*$`)
	docNumberRe = regexp.MustCompile(`(?i)cap\.?[ _-]*(\d+[A-Z]{0,2})`)

	encodingMu    sync.Mutex
	encodingCache = make(map[string]*tiktoken.Tiktoken)
)

// DocNumberFromName extracts "Cap. N" from a file name, or returns the
// name unchanged.
func DocNumberFromName(name string) string {
	if m := docNumberRe.FindStringSubmatch(name); m != nil {
		return "Cap. " + strings.ToUpper(m[1])
	}
	return name
}

// Splitter turns free text into sections.
type Splitter struct {
	encoding  *tiktoken.Tiktoken
	maxTokens int
}

// NewSplitter returns a splitter whose chunks hold at most maxTokens tokens
// of the named tiktoken encoding.
func NewSplitter(encodingName string, maxTokens int) (*Splitter, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	encodingMu.Lock()
	defer encodingMu.Unlock()
	enc, ok := encodingCache[encodingName]
	if !ok {
		var err error
		enc, err = tiktoken.GetEncoding(encodingName)
		if err != nil {
			return nil, fmt.Errorf("failed to load encoding %q: %w", encodingName, err)
		}
		encodingCache[encodingName] = enc
	}
	return &Splitter{encoding: enc, maxTokens: maxTokens}, nil
}

// CountTokens returns the token count of text.
func (s *Splitter) CountTokens(text string) int {
	return len(s.encoding.Encode(text, nil, nil))
}

// Split returns one section per numbered heading when the text has at
// least two, otherwise sequentially numbered chunks. Sections longer than
// the token limit are chunked further and numbered "N-1", "N-2" and so on.
func (s *Splitter) Split(text string) []documents.Section {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	matches := headingRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) < 2 {
		var out []documents.Section
		for i, chunk := range s.chunk(text) {
			n := strconv.Itoa(i + 1)
			out = append(out, documents.Section{SectionKey: "chunk-" + n, SectionNumber: n, Content: chunk})
		}
		return out
	}

	var out []documents.Section
	seen := make(map[string]int)
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		number := text[m[2]:m[3]]
		heading := strings.TrimSpace(text[m[4]:m[5]])
		body := strings.TrimSpace(text[m[1]:end])
		if body == "" {
			body = heading
		}

		// Repeated numbers (schedules, amendments) get a suffix so the
		// (document, section) key stays unique.
		seen[number]++
		if seen[number] > 1 {
			number = fmt.Sprintf("%s(%d)", number, seen[number])
		}

		chunks := s.chunk(body)
		for j, chunk := range chunks {
			num := number
			if len(chunks) > 1 {
				num = fmt.Sprintf("%s-%d", number, j+1)
			}
			out = append(out, documents.Section{
				SectionKey:    "s" + num,
				SectionNumber: num,
				Heading:       heading,
				Content:       chunk,
			})
		}
	}
	return out
}

// chunk splits text on paragraph boundaries into pieces under the token
// limit. A single oversized paragraph is cut by tokens.
func (s *Splitter) chunk(text string) []string {
	var (
		out    []string
		cur    strings.Builder
		tokens int
	)
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			out = append(out, t)
		}
		cur.Reset()
		tokens = 0
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := s.CountTokens(para)
		if n > s.maxTokens {
			flush()
			out = append(out, s.cut(para)...)
			continue
		}
		if tokens+n > s.maxTokens {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
		tokens += n
	}
	flush()
	return out
}

func (s *Splitter) cut(text string) []string {
	ids := s.encoding.Encode(text, nil, nil)
	var out []string
	for start := 0; start < len(ids); start += s.maxTokens {
		end := min(start+s.maxTokens, len(ids))
		if piece := strings.TrimSpace(s.encoding.Decode(ids[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
