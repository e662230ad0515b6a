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

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

type analysisTask struct {
	Data         any    `json:"data" jsonschema:"required,description=Text or structured data to analyse"`
	AnalysisType string `json:"analysis_type,omitempty" jsonschema:"default=summary,enum=summary,enum=themes,enum=comparison,enum=risk,enum=structured"`
	Focus        string `json:"focus,omitempty" jsonschema:"default=general"`
}

type analysisReport struct {
	analysis   map[string]any
	insights   []string
	confidence agent.Confidence
}

// Analysis extracts themes, comparisons, risks and summaries from data.
//
// Confidence:
//   - themes: high with three or more parsed themes, medium with one or two, otherwise low.
//   - comparison, risk, structured: high when every expected field is present
//     in the parsed reply, medium when some are, low when none are or the
//     reply is not JSON.
//   - summary: high with three or more bullet points, medium with at least
//     one, otherwise low.
type Analysis struct {
	*agent.Base
}

var _ agent.Agent = (*Analysis)(nil)

func NewAnalysis(deps Deps) (*Analysis, error) {
	b, err := deps.base(NameAnalysis, "Data analysis, pattern recognition and insight extraction")
	if err != nil {
		return nil, err
	}
	a := &Analysis{Base: b}
	b.SetTaskSchema(agent.TaskSchema[analysisTask]())

	tools := []agent.Tool{
		agent.MustTool("extract_themes", "Extract key themes from text", a.extractThemesTool),
		agent.MustTool("compare_sources", "Compare sources and identify differences", a.compareSourcesTool),
		agent.MustTool("identify_risks", "Identify potential risks in text", a.identifyRisksTool),
	}
	for _, t := range tools {
		if err := b.AddTool(t); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Analysis) Execute(ctx context.Context, task agent.Task) agent.Result {
	return agent.Run(ctx, a.Base, task, analysisTask{AnalysisType: "summary", Focus: "general"}, a.execute)
}

func (a *Analysis) execute(ctx context.Context, task analysisTask) (*agent.Outcome, error) {
	report, err := a.analyze(ctx, task.AnalysisType, task.Data, task.Focus)
	if err != nil {
		return nil, err
	}
	return &agent.Outcome{
		Output: map[string]any{
			"analysis_type": task.AnalysisType,
			"analysis":      report.analysis,
			"insights":      report.insights,
		},
		Confidence: report.confidence,
		Remember: map[string]any{
			"analysis_type": task.AnalysisType,
			"data_length":   len(agent.FormatData(task.Data)),
		},
	}, nil
}

func (a *Analysis) analyze(ctx context.Context, kind string, data any, focus string) (*analysisReport, error) {
	switch kind {
	case "themes":
		return a.themes(ctx, data, focus)
	case "comparison":
		return a.comparison(ctx, data, focus)
	case "risk":
		return a.risks(ctx, data, focus)
	case "summary":
		return a.summary(ctx, data, focus)
	case "structured":
		return a.structured(ctx, data, focus)
	default:
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "unknown analysis type: %s", kind)
	}
}

func dataText(data any) string {
	return agent.Truncate(agent.FormatData(data), maxDataChars)
}

func (a *Analysis) themes(ctx context.Context, data any, focus string) (*analysisReport, error) {
	prompt := fmt.Sprintf(`Analyze the following data and extract the key themes and patterns.

Focus Area: %s

Data:
%s

Identify the 3-5 main themes, supporting evidence and prominence of each.
Respond in JSON:
{"themes": [{"theme": "name", "evidence": "evidence", "prominence": "high|medium|low"}], "overall_pattern": "description"}`,
		focus, dataText(data))

	response, err := a.Think(ctx, prompt,
		agent.WithSystem("You are a data analysis expert. Extract themes and patterns objectively."), agent.WithJSON())
	if err != nil {
		return nil, err
	}

	parsed, ok := agent.ExtractJSON(response)
	if !ok {
		return rawReport(response, map[string]any{"themes": []any{}}), nil
	}
	insights := agent.StringList(parsed["themes"], "theme")
	confidence := agent.ConfidenceLow
	switch {
	case len(insights) >= 3:
		confidence = agent.ConfidenceHigh
	case len(insights) > 0:
		confidence = agent.ConfidenceMedium
	}
	return &analysisReport{analysis: parsed, insights: insights, confidence: confidence}, nil
}

func (a *Analysis) comparison(ctx context.Context, data any, focus string) (*analysisReport, error) {
	prompt := fmt.Sprintf(`Compare and contrast the following data sources.

Focus: %s

Data:
%s

Identify similarities, differences, conflicts and give an overall assessment.
Respond in JSON:
{"similarities": ["..."], "differences": ["..."], "conflicts": ["..."], "assessment": "overall assessment"}`,
		focus, dataText(data))

	response, err := a.Think(ctx, prompt,
		agent.WithSystem("You are a comparative analysis expert. Compare sources objectively."), agent.WithJSON())
	if err != nil {
		return nil, err
	}
	return structuredReport(response, []string{"similarities", "differences"},
		"similarities", "differences", "assessment"), nil
}

func (a *Analysis) risks(ctx context.Context, data any, focus string) (*analysisReport, error) {
	prompt := fmt.Sprintf(`Analyze the following data and identify potential risks, issues or concerns.

Focus: %s

Data:
%s

Group risks by priority and recommend an action for each.
Respond in JSON:
{"high_priority": [{"risk": "description", "impact": "impact", "action": "action"}], "medium_priority": [], "low_priority": [], "overall_risk_level": "high|medium|low"}`,
		focus, dataText(data))

	response, err := a.Think(ctx, prompt,
		agent.WithSystem("You are a risk assessment expert. Identify risks objectively and provide actionable recommendations."),
		agent.WithJSON())
	if err != nil {
		return nil, err
	}

	parsed, ok := agent.ExtractJSON(response)
	if !ok {
		return rawReport(response, nil), nil
	}
	var insights []string
	for _, key := range []string{"high_priority", "medium_priority", "low_priority"} {
		insights = append(insights, agent.StringList(parsed[key], "risk")...)
	}
	return &analysisReport{
		analysis:   parsed,
		insights:   limit(insights, 5),
		confidence: fieldConfidence(parsed, "high_priority", "overall_risk_level"),
	}, nil
}

func (a *Analysis) summary(ctx context.Context, data any, focus string) (*analysisReport, error) {
	prompt := fmt.Sprintf(`Provide a comprehensive summary and analysis of the following data.

Focus: %s

Data:
%s

Give an executive summary of 2-3 sentences, then the 3-5 key points as a
"-" bulleted list, important details and conclusions.`, focus, dataText(data))

	response, err := a.Think(ctx, prompt, agent.WithSystem("You are an expert analyst. Provide clear, concise summaries."))
	if err != nil {
		return nil, err
	}

	insights := agent.BulletPoints(response, 5)
	confidence := agent.ConfidenceLow
	switch {
	case len(insights) >= 3:
		confidence = agent.ConfidenceHigh
	case len(insights) > 0:
		confidence = agent.ConfidenceMedium
	}
	return &analysisReport{
		analysis:   map[string]any{"summary": response, "type": "summary"},
		insights:   insights,
		confidence: confidence,
	}, nil
}

func (a *Analysis) structured(ctx context.Context, data any, focus string) (*analysisReport, error) {
	prompt := fmt.Sprintf(`Perform a structured multi-dimensional analysis of the following data.

Focus: %s

Data:
%s

Cover content, context, quality, implications and actionable insights.
Respond in JSON:
{"content": "...", "context": "...", "quality": "...", "implications": ["..."], "actions": ["..."]}`,
		focus, dataText(data))

	response, err := a.Think(ctx, prompt,
		agent.WithSystem("You are a comprehensive analyst. Provide structured, multi-dimensional analysis."),
		agent.WithTemperature(0.2), agent.WithJSON())
	if err != nil {
		return nil, err
	}
	return structuredReport(response, []string{"implications", "actions"},
		"content", "context", "quality", "implications", "actions"), nil
}

// structuredReport parses a JSON reply, takes insights from the list
// fields and grades confidence on the expected fields.
func structuredReport(response string, insightKeys []string, expected ...string) *analysisReport {
	parsed, ok := agent.ExtractJSON(response)
	if !ok {
		return rawReport(response, nil)
	}
	var insights []string
	for _, key := range insightKeys {
		insights = append(insights, agent.StringList(parsed[key], "")...)
	}
	return &analysisReport{
		analysis:   parsed,
		insights:   limit(insights, 5),
		confidence: fieldConfidence(parsed, expected...),
	}
}

func rawReport(response string, extra map[string]any) *analysisReport {
	analysis := map[string]any{"raw_response": response}
	for k, v := range extra {
		analysis[k] = v
	}
	return &analysisReport{analysis: analysis, insights: []string{}, confidence: agent.ConfidenceLow}
}

// fieldConfidence is high when every key holds a non-empty value, medium
// when some do and low otherwise.
func fieldConfidence(parsed map[string]any, keys ...string) agent.Confidence {
	present := 0
	for _, key := range keys {
		switch v := parsed[key].(type) {
		case nil:
		case string:
			if v != "" {
				present++
			}
		case []any:
			if len(v) > 0 {
				present++
			}
		default:
			present++
		}
	}
	switch {
	case present == len(keys) && present > 0:
		return agent.ConfidenceHigh
	case present > 0:
		return agent.ConfidenceMedium
	default:
		return agent.ConfidenceLow
	}
}

func limit(items []string, n int) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}

type themesArgs struct {
	Text      string `json:"text" jsonschema:"required"`
	NumThemes int    `json:"num_themes,omitempty" jsonschema:"default=5"`
}

func (a *Analysis) extractThemesTool(ctx context.Context, args themesArgs) (map[string]any, error) {
	report, err := a.themes(ctx, args.Text, "general")
	if err != nil {
		return nil, err
	}
	n := args.NumThemes
	if n <= 0 {
		n = 5
	}
	return map[string]any{"themes": limit(report.insights, n)}, nil
}

type compareArgs struct {
	Sources []string `json:"sources" jsonschema:"required"`
}

func (a *Analysis) compareSourcesTool(ctx context.Context, args compareArgs) (map[string]any, error) {
	report, err := a.comparison(ctx, args.Sources, "general")
	if err != nil {
		return nil, err
	}
	return report.analysis, nil
}

type risksArgs struct {
	Text string `json:"text" jsonschema:"required"`
}

func (a *Analysis) identifyRisksTool(ctx context.Context, args risksArgs) (map[string]any, error) {
	report, err := a.risks(ctx, args.Text, "general")
	if err != nil {
		return nil, err
	}
	risks := []any{}
	for _, key := range []string{"high_priority", "medium_priority"} {
		if items, ok := report.analysis[key].([]any); ok {
			risks = append(risks, items...)
		}
	}
	return map[string]any{"risks": risks}, nil
}
