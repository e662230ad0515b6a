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

package retrieval

import (
	"strings"
)

// FormatContext renders passages as a prompt context block, stopping before
// maxChars is exceeded. The first passage is always included, truncated if
// necessary. maxChars <= 0 disables the limit.
func FormatContext(passages []Passage, maxChars int) string {
	var b strings.Builder
	for i, p := range passages {
		block := formatPassage(p)
		if i > 0 {
			block = "\n\n" + block
		}
		if maxChars > 0 && b.Len()+len(block) > maxChars {
			if i == 0 {
				b.WriteString(block[:maxChars])
			}
			break
		}
		b.WriteString(block)
	}
	return b.String()
}

func formatPassage(p Passage) string {
	var b strings.Builder
	b.WriteString("--- ")
	b.WriteString(p.Title())
	b.WriteString(" ---\n")
	if p.SubSectionID != "" {
		b.WriteString("Section ")
		b.WriteString(p.SubSectionID)
		if heading, _ := p.Metadata["section_heading"].(string); heading != "" {
			b.WriteString(": ")
			b.WriteString(heading)
		}
		b.WriteString("\n\n")
	}
	b.WriteString(p.Text)
	return b.String()
}
