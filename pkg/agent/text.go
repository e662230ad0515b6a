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

package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON finds a JSON object in model output. It accepts a bare
// object, a fenced code block, or the longest balanced object embedded in
// surrounding prose.
func ExtractJSON(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if obj, ok := parseObject(text); ok {
		return obj, true
	}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if obj, ok := parseObject(m[1]); ok {
			return obj, true
		}
	}

	candidates := balancedObjects(text)
	sort.SliceStable(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })
	for _, c := range candidates {
		if obj, ok := parseObject(c); ok {
			return obj, true
		}
	}
	return nil, false
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// balancedObjects returns every top-level {...} span, honouring strings.
func balancedObjects(text string) []string {
	var (
		out      []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				out = append(out, text[start:i+1])
				start = -1
			}
		}
	}
	return out
}

// ExtractSection returns the text following marker up to the next of the
// given stop markers, or "" when marker is absent.
func ExtractSection(text, marker string, stops ...string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(marker):]
	end := len(rest)
	for _, stop := range stops {
		if stop == marker {
			continue
		}
		if i := strings.Index(rest, stop); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(rest[:end])
}

// BulletPoints returns up to limit "-" or "*" list items from text.
func BulletPoints(text string, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") {
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(line, "-* "))
		if item == "" {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// StringList collects the string items of a decoded JSON array. Objects
// contribute the value of field when set.
func StringList(v any, field string) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if t != "" {
				out = append(out, t)
			}
		case map[string]any:
			if s, ok := t[field].(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Truncate cuts s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// FormatData renders arbitrary task data for a prompt: strings verbatim,
// lists separated by rules, anything else as indented JSON.
func FormatData(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = FormatData(item)
		}
		return strings.Join(parts, "\n\n---\n\n")
	case []string:
		return strings.Join(v, "\n\n---\n\n")
	case nil:
		return ""
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
