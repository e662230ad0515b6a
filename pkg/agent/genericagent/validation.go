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

package genericagent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

const (
	VerdictPassed  = "passed"
	VerdictPartial = "partial"
	VerdictFailed  = "failed"

	defaultDimensionScore = 50
)

type validationTask struct {
	Content        any      `json:"content,omitempty" jsonschema:"description=Content to validate. Falls back to documents"`
	Documents      []any    `json:"documents,omitempty"`
	ValidationType string   `json:"validation_type,omitempty" jsonschema:"default=comprehensive,enum=comprehensive,enum=accuracy,enum=completeness,enum=consistency"`
	Sources        []any    `json:"sources,omitempty" jsonschema:"description=Reference material for accuracy checks"`
	Requirements   []string `json:"requirements,omitempty"`
	Question       string   `json:"question,omitempty"`
}

// dimension describes one validation check and the JSON it expects back.
type dimension struct {
	name      string
	system    string
	scoreKey  string
	issueKeys []string
}

var (
	accuracyDimension = dimension{
		name:      "accuracy",
		system:    "You are a fact-checker. Verify accuracy objectively and thoroughly. You MUST respond with valid JSON only, no additional text.",
		scoreKey:  "accuracy_score",
		issueKeys: []string{"unsupported_claims", "factual_errors", "misleading_statements"},
	}
	completenessDimension = dimension{
		name:      "completeness",
		system:    "You are a quality assurance expert. Evaluate completeness objectively. You MUST respond with valid JSON only, no additional text.",
		scoreKey:  "completeness_score",
		issueKeys: []string{"missing_elements", "unaddressed_requirements"},
	}
	consistencyDimension = dimension{
		name:      "consistency",
		system:    "You are a logic and consistency checker. Identify inconsistencies precisely. You MUST respond with valid JSON only, no additional text.",
		scoreKey:  "consistency_score",
		issueKeys: []string{"contradictions", "logical_issues", "terminology_issues"},
	}
)

// Check is the outcome of one validation dimension.
type Check struct {
	Verdict         string         `json:"validation_result"`
	Score           int            `json:"quality_score"`
	Issues          []string       `json:"issues"`
	Recommendations []string       `json:"recommendations"`
	Details         map[string]any `json:"details,omitempty"`

	// Parsed is false when the reply was read by the text fallback.
	Parsed bool `json:"-"`
}

// Verdict maps a 0-100 score to passed (80+), partial (60+) or failed.
func Verdict(score int) string {
	switch {
	case score >= 80:
		return VerdictPassed
	case score >= 60:
		return VerdictPartial
	default:
		return VerdictFailed
	}
}

// Validation checks content for accuracy, completeness and consistency.
//
// Confidence reflects how much of the model output was machine-readable:
// high when every dimension replied with JSON, medium when some did, low
// when all of them fell back to text extraction.
type Validation struct {
	*agent.Base
}

var _ agent.Agent = (*Validation)(nil)

func NewValidation(deps Deps) (*Validation, error) {
	b, err := deps.base(NameValidation, "Validates results for accuracy, completeness and consistency")
	if err != nil {
		return nil, err
	}
	a := &Validation{Base: b}
	b.SetTaskSchema(agent.TaskSchema[validationTask]())

	tools := []agent.Tool{
		agent.MustTool("check_accuracy", "Verify accuracy of content against sources", a.accuracyTool),
		agent.MustTool("check_completeness", "Check whether a response is complete", a.completenessTool),
		agent.MustTool("check_consistency", "Check content for internal consistency", a.consistencyTool),
	}
	for _, t := range tools {
		if err := b.AddTool(t); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Validation) Execute(ctx context.Context, task agent.Task) agent.Result {
	return agent.Run(ctx, a.Base, task, validationTask{ValidationType: "comprehensive"}, a.execute)
}

func (a *Validation) execute(ctx context.Context, task validationTask) (*agent.Outcome, error) {
	content := contentText(task.Content)
	if content == "" && len(task.Documents) > 0 {
		content = agent.FormatData(task.Documents)
	}
	if strings.TrimSpace(content) == "" {
		return nil, xerrors.New(xerrors.CodeMissingField, "missing required field: content",
			xerrors.WithMetadata("field", "content"))
	}

	var (
		result *Check
		checks []*Check
		err    error
	)
	switch task.ValidationType {
	case "accuracy":
		result, err = a.accuracy(ctx, content, task.Sources, task.Question)
		checks = []*Check{result}
	case "completeness":
		result, err = a.completeness(ctx, content, task.Question, task.Requirements)
		checks = []*Check{result}
	case "consistency":
		result, err = a.consistency(ctx, content)
		checks = []*Check{result}
	case "comprehensive":
		result, checks, err = a.comprehensive(ctx, content, task)
	default:
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "unknown validation type: %s", task.ValidationType)
	}
	if err != nil {
		return nil, err
	}

	return &agent.Outcome{
		Output: map[string]any{
			"validation_type":   task.ValidationType,
			"validation_result": result.Verdict,
			"quality_score":     result.Score,
			"issues":            result.Issues,
			"recommendations":   result.Recommendations,
			"details":           result.Details,
		},
		Confidence: parsedConfidence(checks),
		Remember:   map[string]any{"validation_type": task.ValidationType, "result": result.Verdict},
	}, nil
}

func parsedConfidence(checks []*Check) agent.Confidence {
	parsed := 0
	for _, c := range checks {
		if c.Parsed {
			parsed++
		}
	}
	switch {
	case parsed == len(checks) && parsed > 0:
		return agent.ConfidenceHigh
	case parsed > 0:
		return agent.ConfidenceMedium
	default:
		return agent.ConfidenceLow
	}
}

func (a *Validation) comprehensive(ctx context.Context, content string, task validationTask) (*Check, []*Check, error) {
	accuracy, err := a.accuracy(ctx, content, task.Sources, task.Question)
	if err != nil {
		return nil, nil, err
	}
	completeness, err := a.completeness(ctx, content, task.Question, task.Requirements)
	if err != nil {
		return nil, nil, err
	}
	consistency, err := a.consistency(ctx, content)
	if err != nil {
		return nil, nil, err
	}

	score := int(float64(accuracy.Score)*0.4 + float64(completeness.Score)*0.3 + float64(consistency.Score)*0.3)

	issues := make([]string, 0, len(accuracy.Issues)+len(completeness.Issues)+len(consistency.Issues))
	issues = append(issues, accuracy.Issues...)
	issues = append(issues, completeness.Issues...)
	issues = append(issues, consistency.Issues...)

	var recommendations []string
	seen := make(map[string]bool)
	for _, c := range []*Check{accuracy, completeness, consistency} {
		for _, r := range c.Recommendations {
			if !seen[r] {
				seen[r] = true
				recommendations = append(recommendations, r)
			}
		}
	}

	combined := &Check{
		Verdict:         Verdict(score),
		Score:           score,
		Issues:          issues,
		Recommendations: limit(recommendations, 5),
		Details: map[string]any{
			"accuracy":     checkDetails(accuracy),
			"completeness": checkDetails(completeness),
			"consistency":  checkDetails(consistency),
		},
	}
	return combined, []*Check{accuracy, completeness, consistency}, nil
}

func checkDetails(c *Check) map[string]any {
	return map[string]any{
		"validation_result": c.Verdict,
		"quality_score":     c.Score,
		"issues":            c.Issues,
		"recommendations":   c.Recommendations,
	}
}

func (a *Validation) accuracy(ctx context.Context, content string, sources []any, question string) (*Check, error) {
	prompt := fmt.Sprintf(`Validate the accuracy of the following content against the provided sources.

Original Question: %s

Content to Validate:
%s

Sources for Verification:
%s

Check whether every claim is supported, and list factual errors,
misleading statements and inaccurate citations. Respond in JSON:
{"is_accurate": true, "unsupported_claims": [], "factual_errors": [], "misleading_statements": [], "accuracy_score": 85, "recommendations": []}`,
		question, agent.Truncate(content, 2000), sourcesText(sources))
	return a.check(ctx, accuracyDimension, prompt)
}

func (a *Validation) completeness(ctx context.Context, content, question string, requirements []string) (*Check, error) {
	reqs := "N/A"
	if len(requirements) > 0 {
		reqs = "- " + strings.Join(requirements, "\n- ")
	}
	prompt := fmt.Sprintf(`Evaluate the completeness of the following content.

Original Question: %s

Requirements:
%s

Content to Validate:
%s

Check whether it fully answers the question, addresses every requirement
and gives an appropriate level of detail. Respond in JSON:
{"is_complete": true, "missing_elements": [], "unaddressed_requirements": [], "completeness_score": 85, "recommendations": []}`,
		question, reqs, agent.Truncate(content, maxContentChars))
	return a.check(ctx, completenessDimension, prompt)
}

func (a *Validation) consistency(ctx context.Context, content string) (*Check, error) {
	prompt := fmt.Sprintf(`Check the following content for internal consistency.

Content:
%s

Look for contradictions, logical inconsistencies and inconsistent
terminology. Respond in JSON:
{"is_consistent": true, "contradictions": [], "logical_issues": [], "terminology_issues": [], "consistency_score": 85, "recommendations": []}`,
		agent.Truncate(content, maxContentChars))
	return a.check(ctx, consistencyDimension, prompt)
}

func (a *Validation) check(ctx context.Context, d dimension, prompt string) (*Check, error) {
	response, err := a.Think(ctx, prompt, agent.WithSystem(d.system), agent.WithTemperature(0.1), agent.WithJSON())
	if err != nil {
		return nil, err
	}

	parsed, ok := agent.ExtractJSON(response)
	if !ok {
		slog.Warn("Validation reply is not JSON, using text extraction", "agent", a.Name(), "dimension", d.name)
		return FallbackCheck(response, d.name), nil
	}

	var issues []string
	for _, key := range d.issueKeys {
		issues = append(issues, agent.StringList(parsed[key], "")...)
	}
	score := defaultDimensionScore
	if s, ok := toScore(parsed[d.scoreKey]); ok {
		score = s
	}
	return &Check{
		Verdict:         Verdict(score),
		Score:           score,
		Issues:          orEmpty(issues),
		Recommendations: limit(agent.StringList(parsed["recommendations"], ""), 5),
		Details:         parsed,
		Parsed:          true,
	}, nil
}

func toScore(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return clampScore(int(f)), true
}

func clampScore(s int) int {
	return min(100, max(0, s))
}

var (
	scorePattern      = regexp.MustCompile(`(?i)(?:score|rating)[:\s]*(\d+)`)
	issueHeader       = regexp.MustCompile(`(?i)(issue|problem|error|concern|found|identified)`)
	recommendHeader   = regexp.MustCompile(`(?i)(recommend|suggest|should|improve)`)
	listItem          = regexp.MustCompile(`^(?:[-•*]|\d+[.)])\s*(.+)$`)
	sentenceBoundary  = regexp.MustCompile(`[.!?]\s+`)
	problemVocabulary = []string{"error", "issue", "problem", "incorrect", "missing"}
)

// FallbackCheck reads a free-text validation reply: a "score: N" mention,
// list items under issue or recommendation headings, and problem sentences
// when no list is found. The verdict is then adjusted to the issue count.
func FallbackCheck(response, dimension string) *Check {
	score := defaultDimensionScore
	if m := scorePattern.FindStringSubmatch(response); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			score = clampScore(n)
		}
	}

	var issues, recommendations []string
	var current *[]string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := listItem.FindStringSubmatch(line); m != nil {
			if current != nil {
				if item := strings.TrimSpace(m[1]); item != "" {
					*current = append(*current, item)
				}
			}
			continue
		}
		switch {
		case recommendHeader.MatchString(line):
			current = &recommendations
		case issueHeader.MatchString(line):
			current = &issues
		default:
			current = nil
		}
	}

	if len(issues) == 0 && mentionsProblem(response) {
		for _, s := range sentenceBoundary.Split(response, 3) {
			if s = strings.TrimSpace(s); len(s) > 20 {
				issues = append(issues, s)
			}
		}
	}

	var verdict string
	switch {
	case len(issues) == 0:
		verdict = VerdictPassed
		score = max(score, 80)
	case len(issues) <= 2:
		verdict = VerdictPartial
		score = min(max(score, 60), 79)
	default:
		verdict = VerdictFailed
		score = min(score, 59)
	}

	if len(issues) == 0 {
		issues = []string{fmt.Sprintf("Unable to parse %s validation fully - review may be incomplete", dimension)}
	}
	return &Check{
		Verdict:         verdict,
		Score:           score,
		Issues:          issues,
		Recommendations: limit(recommendations, 5),
		Details: map[string]any{
			"raw_response_preview": agent.Truncate(response, 500),
			"extraction_method":    "fallback",
		},
	}
}

func mentionsProblem(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range problemVocabulary {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// contentText extracts the text to validate from a string, a prior agent
// result or arbitrary data.
func contentText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case map[string]any:
		return contentOf(c)
	default:
		return agent.FormatData(c)
	}
}

func sourcesText(sources []any) string {
	if len(sources) == 0 {
		return "No sources provided"
	}
	parts := make([]string, 0, len(sources))
	for i, s := range ToSourceTexts(sources) {
		parts = append(parts, fmt.Sprintf("Source %d: %s", i+1, agent.Truncate(s.Content, 500)))
	}
	return agent.Truncate(strings.Join(parts, "\n\n"), 2000)
}

type accuracyArgs struct {
	Content string   `json:"content" jsonschema:"required"`
	Sources []string `json:"sources,omitempty"`
}

func (a *Validation) accuracyTool(ctx context.Context, args accuracyArgs) (map[string]any, error) {
	sources := make([]any, len(args.Sources))
	for i, s := range args.Sources {
		sources[i] = s
	}
	c, err := a.accuracy(ctx, args.Content, sources, "")
	if err != nil {
		return nil, err
	}
	return map[string]any{"accurate": c.Verdict == VerdictPassed, "score": c.Score, "issues": c.Issues}, nil
}

type completenessArgs struct {
	Content      string   `json:"content" jsonschema:"required"`
	Question     string   `json:"question,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
}

func (a *Validation) completenessTool(ctx context.Context, args completenessArgs) (map[string]any, error) {
	c, err := a.completeness(ctx, args.Content, args.Question, args.Requirements)
	if err != nil {
		return nil, err
	}
	return map[string]any{"complete": c.Verdict == VerdictPassed, "score": c.Score, "missing": c.Issues}, nil
}

type consistencyArgs struct {
	Content string `json:"content" jsonschema:"required"`
}

func (a *Validation) consistencyTool(ctx context.Context, args consistencyArgs) (map[string]any, error) {
	c, err := a.consistency(ctx, args.Content)
	if err != nil {
		return nil, err
	}
	return map[string]any{"consistent": c.Verdict == VerdictPassed, "score": c.Score, "issues": c.Issues}, nil
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
