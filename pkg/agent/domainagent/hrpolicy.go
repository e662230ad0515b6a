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

package domainagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
)

type hrTask struct {
	Question     string  `json:"question" jsonschema:"required,description=HR question"`
	TaskType     string  `json:"task_type,omitempty" jsonschema:"default=general,enum=general,enum=policy_search,enum=onboarding,enum=benefits"`
	Context      string  `json:"context,omitempty" jsonschema:"description=Additional context"`
	EmployeeType string  `json:"employee_type,omitempty" jsonschema:"default=full-time"`
	TopK         int     `json:"top_k,omitempty" jsonschema:"default=5,minimum=1"`
	MinScore     float64 `json:"min_score,omitempty" jsonschema:"default=0.3,minimum=0,maximum=1"`
}

type hrMode struct {
	system      string
	instruction string
	temperature float64
}

var hrModes = map[string]hrMode{
	"general": {
		system:      "You are a helpful HR professional. Give clear, professional guidance.",
		instruction: "Answer the question. Reference the relevant policy or ordinance where one applies, and suggest who to contact when unsure.",
		temperature: 0.3,
	},
	"policy_search": {
		system:      "You are an HR policy expert. Be accurate about policies and their exceptions.",
		instruction: "Respond in the format:\nAnswer: <answer>\nPolicy References: <policies or ordinance sections>\nNotes: <caveats or exceptions>",
		temperature: 0.2,
	},
	"onboarding": {
		system:      "You are an HR onboarding specialist helping new employees through their first days.",
		instruction: "Give step-by-step guidance covering what the employee must do, deadlines, who to contact and required documents.",
		temperature: 0.3,
	},
	"benefits": {
		system:      "You are an HR benefits specialist.",
		instruction: "Explain the available benefits, eligibility, how to enrol and important deadlines. Note differences by employment type.",
		temperature: 0.2,
	},
}

// HRPolicy answers HR questions grounded in the employment ordinances and
// policy documents in the index. With no matching passage it still answers,
// graded low.
type HRPolicy struct {
	*agent.Base
	deps Deps
}

var _ agent.Agent = (*HRPolicy)(nil)

func NewHRPolicy(deps Deps) (*HRPolicy, error) {
	b, err := deps.base(NameHRPolicy, "HR policies, onboarding, benefits and employment questions")
	if err != nil {
		return nil, err
	}
	b.SetTaskSchema(agent.TaskSchema[hrTask]())
	search, err := searchTool("search_policies", "Search HR policies and employment ordinances", deps)
	if err != nil {
		return nil, err
	}
	if err := b.AddTool(search); err != nil {
		return nil, err
	}
	return &HRPolicy{Base: b, deps: deps}, nil
}

func (a *HRPolicy) Execute(ctx context.Context, task agent.Task) agent.Result {
	topK, minScore := a.deps.searchDefaults()
	defaults := hrTask{TaskType: "general", EmployeeType: "full-time", TopK: topK, MinScore: minScore}
	return agent.Run(ctx, a.Base, task, defaults, a.execute)
}

func (a *HRPolicy) execute(ctx context.Context, task hrTask) (*agent.Outcome, error) {
	mode, ok := hrModes[task.TaskType]
	if !ok {
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "unknown task type: %s", task.TaskType)
	}

	query := task.Question
	if task.TaskType == "onboarding" || task.TaskType == "benefits" {
		query = task.TaskType + " " + query
	}
	passages, sources, err := agent.Retrieve(ctx, a.deps.Retriever, query, task.TopK, task.MinScore)
	if err != nil {
		return nil, err
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Employee type: %s\n", task.EmployeeType)
	if task.Context != "" {
		fmt.Fprintf(&prompt, "Context: %s\n", task.Context)
	}
	if len(passages) > 0 {
		fmt.Fprintf(&prompt, "\nRelevant policy extracts:\n\n%s\n", retrieval.FormatContext(passages, a.deps.contextChars()))
	} else {
		prompt.WriteString("\nNo policy extracts matched this question.\n")
	}
	fmt.Fprintf(&prompt, "\nQuestion: %s\n\n%s", task.Question, mode.instruction)

	response, err := a.Think(ctx, prompt.String(), agent.WithSystem(mode.system), agent.WithTemperature(mode.temperature))
	if err != nil {
		return nil, err
	}

	answer := response
	references := citations(sources)
	if task.TaskType == "policy_search" {
		if s := agent.ExtractSection(response, "Answer:", "Policy References:", "Notes:"); s != "" {
			answer = s
		}
		if refs := agent.ExtractSection(response, "Policy References:", "Answer:", "Notes:"); refs != "" {
			references = append(references, refs)
		}
	}

	return &agent.Outcome{
		Output: map[string]any{
			"answer":            answer,
			"task_type":         task.TaskType,
			"policy_references": references,
		},
		Sources:    sources,
		Confidence: agent.ScoreConfidence(sources),
		Remember:   map[string]any{"task_type": task.TaskType, "question": agent.Truncate(task.Question, 100)},
	}, nil
}
