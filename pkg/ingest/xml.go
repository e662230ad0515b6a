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
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/documents"
)

var xmlCategories = map[string]string{
	"ordinance": "ordinance",
	"subLeg":    "subsidiary_legislation",
	"lawDoc":    "law_document",
}

// xmlParser reads HK e-Legislation XML (ordinance, subLeg and lawDoc roots).
type xmlParser struct{}

func (p *xmlParser) Extensions() []string { return []string{".xml"} }

func (p *xmlParser) Parse(ctx context.Context, path string) (*Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := readXML(f)
	if err != nil {
		return nil, err
	}
	category, ok := xmlCategories[root.name]
	if !ok {
		return nil, fmt.Errorf("unknown document type %q", root.name)
	}

	doc := documents.Document{Category: category}
	if meta := root.child("meta"); meta != nil {
		doc.DocName = meta.childText("docName")
		doc.DocType = meta.childText("docType")
		doc.DocNumber = meta.childText("docNumber")
		doc.Status = meta.childText("docStatus")
		doc.Identifier = meta.childText("identifier")
		doc.Title = meta.childText("title")
		doc.Language = meta.childText("language")
	}

	var sections []documents.Section
	if main := root.child("main"); main != nil {
		if t := main.childText("docTitle"); t != "" {
			doc.Title = t
		}
		doc.LongTitle = main.childText("longTitle")

		for _, s := range main.descendants("section") {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			content := s.text()
			if content == "" {
				continue
			}
			sections = append(sections, documents.Section{
				SectionKey:    s.attr("id"),
				SectionNumber: strings.TrimSuffix(s.childText("num"), "."),
				Heading:       s.childText("heading"),
				Content:       content,
			})
		}
	}

	if doc.DocNumber == "" {
		doc.DocNumber = doc.Identifier
	}
	if doc.DocNumber == "" {
		return nil, fmt.Errorf("document has no number or identifier")
	}
	if doc.Identifier == "" {
		doc.Identifier = doc.DocNumber
	}
	return &Parsed{Document: doc, Sections: sections}, nil
}

// xmlNode is an element with its text and children in document order.
type xmlNode struct {
	name  string
	attrs []xml.Attr
	parts []any // string or *xmlNode
}

func readXML(r io.Reader) (*xmlNode, error) {
	dec := xml.NewDecoder(r)
	var stack []*xmlNode
	var root *xmlNode

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local, attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.parts = append(parent.parts, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				n := stack[len(stack)-1]
				n.parts = append(n.parts, string(t))
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty XML document")
	}
	return root, nil
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) child(name string) *xmlNode {
	for _, p := range n.parts {
		if c, ok := p.(*xmlNode); ok && c.name == name {
			return c
		}
	}
	return nil
}

func (n *xmlNode) childText(name string) string {
	if c := n.child(name); c != nil {
		return c.text()
	}
	return ""
}

// descendants returns matching elements in document order, without
// descending into a match.
func (n *xmlNode) descendants(name string) []*xmlNode {
	var out []*xmlNode
	for _, p := range n.parts {
		c, ok := p.(*xmlNode)
		if !ok {
			continue
		}
		if c.name == name {
			out = append(out, c)
			continue
		}
		out = append(out, c.descendants(name)...)
	}
	return out
}

// text is the element's text with whitespace collapsed.
func (n *xmlNode) text() string {
	var b strings.Builder
	n.writeText(&b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func (n *xmlNode) writeText(b *strings.Builder) {
	for _, p := range n.parts {
		switch v := p.(type) {
		case string:
			b.WriteString(v)
		case *xmlNode:
			b.WriteString(" ")
			v.writeText(b)
			b.WriteString(" ")
		}
	}
}
