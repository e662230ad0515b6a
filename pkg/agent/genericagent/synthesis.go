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
	"strings"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

type synthesisTask struct {
	Sources       []any  `json:"sources" jsonschema:"required,description=Sources to combine: {title, content} objects, prior results or text"`
	SynthesisType string `json:"synthesis_type,omitempty" jsonschema:"default=merge,enum=merge,enum=reconcile,enum=report,enum=summary"`
	Focus         string `json:"focus,omitempty" jsonschema:"default=comprehensive"`
	Format        string `json:"format,omitempty" jsonschema:"default=text,enum=text,enum=structured,enum=markdown"`
	Question      string `json:"question,omitempty" jsonschema:"description=Original question or goal"`
}

// SynthesisRequest is one call of the synthesis behaviour.
type SynthesisRequest struct {
	Type     string
	Sources  []SourceText
	Focus    string
	Format   string
	Question string
}

// SynthesisOutput is the product of a synthesis.
type SynthesisOutput struct {
	Text              string
	ConflictsResolved int
	Conflicts         []any
	Unresolved        []string

	// Quality grades the structure of the reply.
	Quality agent.Confidence
}

// Synthesis combines several sources into one output.
//
// Quality, reported as confidence:
//   - merge: high when the reply spans several lines and integrates more
//     than one source, medium with one of the two, low otherwise or under
//     100 characters.
//   - reconcile: high when the JSON reply lists resolved conflicts, medium
//     when it parses without any, low when it does not parse.
//   - report: high when summary, findings and conclusion sections are all
//     present, medium with some, low with none.
//   - summary: high under 1000 characters, medium otherwise.
type Synthesis struct {
	*agent.Base
}

var _ agent.Agent = (*Synthesis)(nil)

func NewSynthesis(deps Deps) (*Synthesis, error) {
	b, err := deps.base(NameSynthesis, "Combines multiple sources into reports, summaries and reconciled answers")
	if err != nil {
		return nil, err
	}
	return newSynthesis(b)
}

// NewSynthesisWithBase builds the synthesis behaviour on an existing base,
// for agents that extend it.
func NewSynthesisWithBase(b *agent.Base) (*Synthesis, error) {
	return newSynthesis(b)
}

func newSynthesis(b *agent.Base) (*Synthesis, error) {
	a := &Synthesis{Base: b}
	b.SetTaskSchema(agent.TaskSchema[synthesisTask]())

	tools := []agent.Tool{
		agent.MustTool("merge_sources", "Merge multiple text sources into unified content", a.mergeTool),
		agent.MustTool("reconcile_conflicts", "Reconcile conflicting information from sources", a.reconcileTool),
		agent.MustTool("generate_report", "Generate a report from multiple inputs", a.reportTool),
	}
	for _, t := range tools {
		if err := b.AddTool(t); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Synthesis) Execute(ctx context.Context, task agent.Task) agent.Result {
	defaults := synthesisTask{SynthesisType: "merge", Focus: "comprehensive", Format: "text"}
	return agent.Run(ctx, a.Base, task, defaults, a.execute)
}

func (a *Synthesis) execute(ctx context.Context, task synthesisTask) (*agent.Outcome, error) {
	out, err := a.Synthesize(ctx, SynthesisRequest{
		Type:     task.SynthesisType,
		Sources:  ToSourceTexts(task.Sources),
		Focus:    task.Focus,
		Format:   task.Format,
		Question: task.Question,
	})
	if err != nil {
		return nil, err
	}

	output := out.Payload(len(task.Sources))
	output["synthesis_type"] = task.SynthesisType
	return &agent.Outcome{
		Output:     output,
		Confidence: out.Quality,
		Remember:   map[string]any{"synthesis_type": task.SynthesisType, "sources_count": len(task.Sources)},
	}, nil
}

// Payload renders the output fields of a synthesis result.
func (o *SynthesisOutput) Payload(sourcesUsed int) map[string]any {
	payload := map[string]any{
		"synthesized_output": o.Text,
		"sources_used":       sourcesUsed,
		"conflicts_resolved": o.ConflictsResolved,
		"quality_score":      string(o.Quality),
	}
	if len(o.Conflicts) > 0 {
		payload["conflicts_detail"] = o.Conflicts
	}
	if len(o.Unresolved) > 0 {
		payload["unresolved_conflicts"] = o.Unresolved
	}
	return payload
}

// Synthesize runs one synthesis over req.Sources with a single model call.
func (a *Synthesis) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisOutput, error) {
	if len(req.Sources) == 0 {
		return nil, xerrors.New(xerrors.CodeMissingField, "no sources provided for synthesis",
			xerrors.WithMetadata("field", "sources"))
	}
	if req.Focus == "" {
		req.Focus = "comprehensive"
	}
	if req.Format == "" {
		req.Format = "text"
	}

	switch req.Type {
	case "", "merge":
		return a.merge(ctx, req)
	case "reconcile":
		return a.reconcile(ctx, req)
	case "report":
		return a.report(ctx, req)
	case "summary":
		return a.summary(ctx, req)
	default:
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "unknown synthesis type: %s", req.Type)
	}
}

func (a *Synthesis) merge(ctx context.Context, req SynthesisRequest) (*SynthesisOutput, error) {
	prompt := fmt.Sprintf(`Merge the following sources into a unified, coherent output.

Focus: %s
Output Format: %s

Sources:
%s

Combine the relevant information, remove redundancy, keep important details
from each source, structure the result logically and cite sources.`,
		req.Focus, req.Format, formatSources(req.Sources, maxSourcesChars))

	text, err := a.Think(ctx, prompt,
		agent.WithSystem("You are an expert at synthesizing information from multiple sources. Create coherent, comprehensive outputs."),
		agent.WithTemperature(0.3))
	if err != nil {
		return nil, err
	}
	return &SynthesisOutput{Text: text, Quality: mergeQuality(text, len(req.Sources))}, nil
}

func mergeQuality(text string, sources int) agent.Confidence {
	if len(text) < 100 {
		return agent.ConfidenceLow
	}
	lower := strings.ToLower(text)
	integrated := sources > 1 &&
		(strings.Contains(lower, "both") || strings.Contains(lower, "multiple") || strings.Contains(lower, "sources"))
	structured := strings.Count(text, "\n") > 3

	switch {
	case integrated && structured:
		return agent.ConfidenceHigh
	case integrated || structured:
		return agent.ConfidenceMedium
	default:
		return agent.ConfidenceLow
	}
}

func (a *Synthesis) reconcile(ctx context.Context, req SynthesisRequest) (*SynthesisOutput, error) {
	prompt := fmt.Sprintf(`Analyze the following sources and reconcile any conflicting information.

Focus: %s

Sources:
%s

Identify conflicts, weigh the reliability of each source, and explain how
each conflict was resolved. Respond in JSON:
{"conflicts_identified": [{"conflict": "...", "sources": ["..."], "resolution": "..."}], "reconciled_output": "the reconciled answer", "unresolved_conflicts": ["..."]}`,
		req.Focus, formatSources(req.Sources, maxSourcesChars))

	text, err := a.Think(ctx, prompt,
		agent.WithSystem("You are an expert at reconciling conflicting information objectively."),
		agent.WithTemperature(0.2), agent.WithJSON())
	if err != nil {
		return nil, err
	}

	parsed, ok := agent.ExtractJSON(text)
	if !ok {
		return &SynthesisOutput{Text: text, Quality: agent.ConfidenceLow}, nil
	}
	out := &SynthesisOutput{Text: text, Quality: agent.ConfidenceMedium}
	if s, ok := parsed["reconciled_output"].(string); ok && s != "" {
		out.Text = s
	}
	if conflicts, ok := parsed["conflicts_identified"].([]any); ok {
		out.Conflicts = conflicts
		out.ConflictsResolved = len(conflicts)
	}
	out.Unresolved = agent.StringList(parsed["unresolved_conflicts"], "conflict")
	if out.ConflictsResolved > 0 {
		out.Quality = agent.ConfidenceHigh
	}
	return out, nil
}

func (a *Synthesis) report(ctx context.Context, req SynthesisRequest) (*SynthesisOutput, error) {
	prompt := fmt.Sprintf(`Generate a comprehensive report based on the following sources.

Original Question: %s
Focus: %s
Output Format: %s

Sources:
%s

Include an Executive Summary, Key Findings, Detailed Analysis,
Conclusions and Recommendations, and the Sources Referenced.`,
		req.Question, req.Focus, req.Format, formatSources(req.Sources, maxSourcesChars))

	text, err := a.Think(ctx, prompt,
		agent.WithSystem("You are an expert report writer. Create clear, comprehensive, well-structured reports."),
		agent.WithTemperature(0.3))
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(text)
	sections := 0
	for _, marker := range []string{"summary", "findings", "conclusion"} {
		if strings.Contains(lower, marker) {
			sections++
		}
	}
	quality := agent.ConfidenceLow
	switch {
	case sections == 3:
		quality = agent.ConfidenceHigh
	case sections > 0:
		quality = agent.ConfidenceMedium
	}
	return &SynthesisOutput{Text: text, Quality: quality}, nil
}

func (a *Synthesis) summary(ctx context.Context, req SynthesisRequest) (*SynthesisOutput, error) {
	prompt := fmt.Sprintf(`Create an executive summary based on the following sources.

Question: %s
Focus: %s

Sources:
%s

Provide a 3-5 sentence executive summary, the top 3 key insights and the
main recommendation if one applies.`, req.Question, req.Focus, formatSources(req.Sources, maxSourcesChars))

	text, err := a.Think(ctx, prompt,
		agent.WithSystem("You are an expert at creating concise, actionable executive summaries."),
		agent.WithTemperature(0.3))
	if err != nil {
		return nil, err
	}

	quality := agent.ConfidenceMedium
	if len(text) < 1000 {
		quality = agent.ConfidenceHigh
	}
	return &SynthesisOutput{Text: text, Quality: quality}, nil
}

type textSourcesArgs struct {
	Sources []string `json:"sources" jsonschema:"required"`
}

func textSources(items []string) []SourceText {
	out := make([]SourceText, len(items))
	for i, s := range items {
		out[i] = SourceText{Title: fmt.Sprintf("Source %d", i+1), Content: s}
	}
	return out
}

func (a *Synthesis) mergeTool(ctx context.Context, args textSourcesArgs) (map[string]any, error) {
	out, err := a.merge(ctx, SynthesisRequest{Sources: textSources(args.Sources), Focus: "comprehensive", Format: "text"})
	if err != nil {
		return nil, err
	}
	return map[string]any{"merged": out.Text}, nil
}

func (a *Synthesis) reconcileTool(ctx context.Context, args textSourcesArgs) (map[string]any, error) {
	out, err := a.reconcile(ctx, SynthesisRequest{Sources: textSources(args.Sources), Focus: "conflict_resolution", Format: "structured"})
	if err != nil {
		return nil, err
	}
	return map[string]any{"reconciled": out.Text, "conflicts_resolved": out.ConflictsResolved}, nil
}

type reportArgs struct {
	Sources []string `json:"sources" jsonschema:"required"`
	Title   string   `json:"title,omitempty"`
}

func (a *Synthesis) reportTool(ctx context.Context, args reportArgs) (map[string]any, error) {
	out, err := a.report(ctx, SynthesisRequest{
		Sources:  textSources(args.Sources),
		Question: args.Title,
		Focus:    "comprehensive",
		Format:   "markdown",
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"report": out.Text}, nil
}
