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

type csTask struct {
	Ticket       string  `json:"ticket,omitempty" jsonschema:"description=Customer ticket text. Falls back to question"`
	Question     string  `json:"question,omitempty"`
	TaskType     string  `json:"task_type,omitempty" jsonschema:"default=respond,enum=respond,enum=search,enum=route,enum=escalate"`
	CustomerName string  `json:"customer_name,omitempty"`
	Priority     string  `json:"priority,omitempty" jsonschema:"default=medium,enum=low,enum=medium,enum=high,enum=urgent"`
	Category     string  `json:"category,omitempty" jsonschema:"default=general"`
	Context      string  `json:"context,omitempty"`
	TopK         int     `json:"top_k,omitempty" jsonschema:"default=5,minimum=1"`
	MinScore     float64 `json:"min_score,omitempty" jsonschema:"default=0.3,minimum=0,maximum=1"`
}

const defaultTeam = "General Support"

var escalationKeywords = []string{"urgent", "escalate", "manager", "refund", "cancel", "complaint", "legal"}

// CSDocument handles customer-service tickets: drafting responses,
// searching help material, routing to a team and preparing escalations.
type CSDocument struct {
	*agent.Base
	deps Deps
}

var _ agent.Agent = (*CSDocument)(nil)

func NewCSDocument(deps Deps) (*CSDocument, error) {
	b, err := deps.base(NameCSDocument, "Customer-service ticket responses, routing and escalation")
	if err != nil {
		return nil, err
	}
	b.SetTaskSchema(agent.TaskSchema[csTask]())
	search, err := searchTool("search_help_docs", "Search help documents for a customer issue", deps)
	if err != nil {
		return nil, err
	}
	if err := b.AddTool(search); err != nil {
		return nil, err
	}
	return &CSDocument{Base: b, deps: deps}, nil
}

func (a *CSDocument) Execute(ctx context.Context, task agent.Task) agent.Result {
	topK, minScore := a.deps.searchDefaults()
	defaults := csTask{TaskType: "respond", Priority: "medium", Category: "general", TopK: topK, MinScore: minScore}
	return agent.Run(ctx, a.Base, task, defaults, a.execute)
}

type csReply struct {
	answer     string
	routing    map[string]any
	escalation bool
	actions    []string
}

func (a *CSDocument) execute(ctx context.Context, task csTask) (*agent.Outcome, error) {
	ticket := task.Ticket
	if ticket == "" {
		ticket = task.Question
	}
	if ticket == "" {
		return nil, xerrors.New(xerrors.CodeMissingField, "missing required field: ticket",
			xerrors.WithMetadata("field", "ticket"))
	}

	var handle func(context.Context, csTask, string, string) (*csReply, error)
	switch task.TaskType {
	case "respond":
		handle = a.respond
	case "search":
		handle = a.search
	case "route":
		handle = a.route
	case "escalate":
		handle = a.escalate
	default:
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "unknown task type: %s", task.TaskType)
	}

	passages, sources, err := agent.Retrieve(ctx, a.deps.Retriever, ticket, task.TopK, task.MinScore)
	if err != nil {
		return nil, err
	}
	docs := "No help documents matched this ticket."
	if len(passages) > 0 {
		docs = retrieval.FormatContext(passages, a.deps.contextChars())
	}

	reply, err := handle(ctx, task, ticket, docs)
	if err != nil {
		return nil, err
	}

	output := map[string]any{
		"answer":            reply.answer,
		"task_type":         task.TaskType,
		"escalation_needed": reply.escalation,
		"suggested_actions": reply.actions,
	}
	if reply.routing != nil {
		output["routing"] = reply.routing
	}

	return &agent.Outcome{
		Output:     output,
		Sources:    sources,
		Confidence: agent.ScoreConfidence(sources),
		Remember:   map[string]any{"task_type": task.TaskType, "category": task.Category, "priority": task.Priority},
	}, nil
}

func ticketHeader(task csTask, ticket string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket: %s\nCategory: %s\nPriority: %s\n", ticket, task.Category, task.Priority)
	if task.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", task.CustomerName)
	}
	if task.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", task.Context)
	}
	return b.String()
}

func needsEscalation(ticket, priority string) bool {
	if priority == "urgent" {
		return true
	}
	lower := strings.ToLower(ticket)
	for _, kw := range escalationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (a *CSDocument) respond(ctx context.Context, task csTask, ticket, docs string) (*csReply, error) {
	prompt := fmt.Sprintf(`%s
Help documents:
%s

Write a reply to the customer that acknowledges the concern, gives a clear
answer or solution, explains next steps and offers further help.`, ticketHeader(task, ticket), docs)

	text, err := a.Think(ctx, prompt,
		agent.WithSystem("You are an experienced, empathetic customer service professional."),
		agent.WithTemperature(0.4))
	if err != nil {
		return nil, err
	}

	reply := &csReply{answer: text, actions: []string{"Send response"}}
	if needsEscalation(ticket, task.Priority) {
		reply.escalation = true
		reply.actions = append(reply.actions, "Escalate to supervisor")
	}
	return reply, nil
}

func (a *CSDocument) search(ctx context.Context, task csTask, ticket, docs string) (*csReply, error) {
	prompt := fmt.Sprintf(`%s
Help documents:
%s

Find the help material relevant to this ticket. Respond in JSON:
{"quick_answer": "brief answer", "articles": [{"title": "...", "summary": "...", "relevance": "high|medium|low"}]}`,
		ticketHeader(task, ticket), docs)

	text, err := a.Think(ctx, prompt, agent.WithSystem("You are a help-desk search assistant."), agent.WithJSON(), agent.WithTemperature(0.2))
	if err != nil {
		return nil, err
	}

	reply := &csReply{answer: text, actions: []string{"Share articles with customer"}}
	if parsed, ok := agent.ExtractJSON(text); ok {
		if qa, _ := parsed["quick_answer"].(string); qa != "" {
			reply.answer = qa
		}
		reply.actions = append(reply.actions, agent.StringList(parsed["articles"], "title")...)
	}
	return reply, nil
}

func (a *CSDocument) route(ctx context.Context, task csTask, ticket, docs string) (*csReply, error) {
	prompt := fmt.Sprintf(`%s
Available teams:
- Technical Support: technical issues, bugs, errors
- Billing: payments, invoices, subscriptions
- Account Management: access, settings, profile
- Product Support: product questions and how-to
- Escalations: urgent issues, complaints, legal

Respond in JSON:
{"recommended_team": "team", "reasoning": "why", "priority_adjustment": "same|higher|lower", "estimated_response_time": "time"}`,
		ticketHeader(task, ticket))

	text, err := a.Think(ctx, prompt, agent.WithSystem("You route support tickets to the right team."), agent.WithJSON(), agent.WithTemperature(0.1))
	if err != nil {
		return nil, err
	}

	routing := map[string]any{"recommended_team": defaultTeam}
	if parsed, ok := agent.ExtractJSON(text); ok {
		routing = parsed
		if team, _ := routing["recommended_team"].(string); team == "" {
			routing["recommended_team"] = defaultTeam
		}
	}
	team := routing["recommended_team"].(string)
	return &csReply{
		answer:     "Route to " + team,
		routing:    routing,
		escalation: team == "Escalations",
		actions:    []string{"Assign ticket to " + team},
	}, nil
}

func (a *CSDocument) escalate(ctx context.Context, task csTask, ticket, docs string) (*csReply, error) {
	prompt := fmt.Sprintf(`%s
Prepare an escalation summary for a supervisor covering the key issues,
recommended actions and a suggested priority level.`, ticketHeader(task, ticket))

	text, err := a.Think(ctx, prompt, agent.WithSystem("You are a customer service escalation specialist."), agent.WithTemperature(0.3))
	if err != nil {
		return nil, err
	}
	return &csReply{
		answer:     text,
		routing:    map[string]any{"recommended_team": "Escalations"},
		escalation: true,
		actions:    []string{"Notify supervisor", "Contact customer within 24 hours", "Document resolution"},
	}, nil
}
