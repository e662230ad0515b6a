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

package workflow

import (
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/domainagent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/enhanced"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent/genericagent"
)

const (
	HROnboarding       = "hr_onboarding"
	CSTicket           = "cs_ticket"
	LegalHRCompliance  = "legal_hr_compliance"
	SimpleQA           = "simple_qa"
	MultiAgentResearch = "multi_agent_research"
	ResearchValidate   = "research_validate"
)

// Builtins returns the bundled workflows.
func Builtins() []*Workflow {
	return []*Workflow{
		hrOnboarding(),
		csTicket(),
		legalHRCompliance(),
		simpleQA(),
		multiAgentResearch(),
		researchValidate(),
	}
}

// RegisterBuiltins adds the bundled workflows to r.
func RegisterBuiltins(r *Registry) error {
	for _, w := range Builtins() {
		if err := r.Register(w); err != nil {
			return err
		}
	}
	return nil
}

type inputField struct {
	name        string
	required    bool
	description string
}

func field(name string, required bool, description string) inputField {
	return inputField{name: name, required: required, description: description}
}

// inputSchema keys field descriptions by name.
func inputSchema(fields ...inputField) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.name] = map[string]any{"required": f.required, "description": f.description}
	}
	return out
}

func source(title, content string) map[string]any {
	return map[string]any{"title": title, "content": content}
}

// sourceRef names a step field used as a synthesis source. An empty field
// renders the step's whole payload.
type sourceRef struct {
	title string
	step  string
	field string
}

// sources resolves refs into {title, content} entries.
func sources(c *Context, refs ...sourceRef) ([]any, error) {
	out := make([]any, 0, len(refs))
	for _, ref := range refs {
		var (
			text string
			err  error
		)
		if ref.field == "" {
			text, err = c.Text(ref.step)
		} else {
			text, err = c.String(ref.step, ref.field)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, source(ref.title, text))
	}
	return out, nil
}

func hrOnboarding() *Workflow {
	return &Workflow{
		Name:        HROnboarding,
		Description: "Employee onboarding guide built from HR policies",
		InputSchema: inputSchema(
			field("employee_question", false, "Specific onboarding question"),
			field("employee_name", false, "Name of the new employee"),
			field("role", false, "Role of the new employee"),
			field("employee_type", false, "full-time, part-time or contract"),
			field("hr_policies", false, "HR policy text used as context"),
		),
		Steps: []Step{
			{
				Name:        "hr_policy_query",
				Agent:       domainagent.NameHRPolicy,
				Description: "Retrieve HR policy information relevant to onboarding",
				Build: func(_ *Context, in Input) (agent.Task, error) {
					return agent.Task{
						"question":      in.String("employee_question", "What are the key onboarding steps for a new employee?"),
						"context":       in.String("hr_policies", ""),
						"employee_type": in.String("employee_type", "full-time"),
						"task_type":     "onboarding",
					}, nil
				},
			},
			{
				Name:        "analyze_policies",
				Agent:       genericagent.NameAnalysis,
				Description: "Extract actionable onboarding points",
				Build: func(c *Context, _ Input) (agent.Task, error) {
					answer, err := c.String("hr_policy_query", "answer")
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"data":          answer,
						"analysis_type": "summary",
						"focus":         "Key onboarding steps, requirements and important dates",
					}, nil
				},
			},
			{
				Name:        "create_guide",
				Agent:       genericagent.NameSynthesis,
				Description: "Write a personalised onboarding guide",
				Build: func(c *Context, in Input) (agent.Task, error) {
					src, err := sources(c,
						sourceRef{"HR Policy Information", "hr_policy_query", "answer"},
						sourceRef{"Key Onboarding Points", "analyze_policies", ""},
					)
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"sources":        src,
						"synthesis_type": "report",
						"focus": "Personalised onboarding guide for " +
							in.String("employee_name", "new employee") + " (" + in.String("role", "employee") + ")",
					}, nil
				},
			},
		},
	}
}

func csTicket() *Workflow {
	return &Workflow{
		Name:        CSTicket,
		Description: "Customer ticket response with sentiment analysis",
		InputSchema: inputSchema(
			field("customer_query", true, "The customer's question or issue"),
			field("customer_name", false, "Customer's name"),
			field("support_docs", false, "Support documentation or FAQs"),
			field("priority", false, "low, medium or high"),
		),
		Steps: []Step{
			{
				Name:        "initial_response",
				Agent:       domainagent.NameCSDocument,
				Description: "Draft the initial support response",
				Build: func(_ *Context, in Input) (agent.Task, error) {
					query, err := in.Require("customer_query")
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"ticket":        query,
						"context":       in.String("support_docs", ""),
						"customer_name": in.String("customer_name", "Customer"),
						"priority":      in.String("priority", "medium"),
					}, nil
				},
			},
			{
				Name:        "sentiment_analysis",
				Agent:       genericagent.NameAnalysis,
				Description: "Detect sentiment and urgency",
				Build: func(c *Context, in Input) (agent.Task, error) {
					answer, err := c.String("initial_response", "answer")
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"data":          "Customer Query: " + in.String("customer_query", "") + "\n\nInitial Response: " + answer,
						"analysis_type": "risk",
						"focus":         "Customer sentiment, urgency and satisfaction risk",
					}, nil
				},
			},
			{
				Name:        "final_response",
				Agent:       genericagent.NameSynthesis,
				Description: "Polish the final customer response",
				Build: func(c *Context, _ Input) (agent.Task, error) {
					src, err := sources(c,
						sourceRef{"Initial Support Response", "initial_response", "answer"},
						sourceRef{"Sentiment and Priority Analysis", "sentiment_analysis", ""},
					)
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"sources": src,
						"focus":   "Empathetic, professional final response addressing the customer's needs",
					}, nil
				},
			},
		},
	}
}

func legalHRCompliance() *Workflow {
	return &Workflow{
		Name:        LegalHRCompliance,
		Description: "Check an HR policy against Hong Kong ordinances",
		InputSchema: inputSchema(
			field("compliance_area", false, "Area of compliance to check"),
			field("policy_name", false, "Name of the HR policy"),
			field("policy_content", true, "Full text of the HR policy"),
		),
		Steps: []Step{
			{
				Name:        "legal_research",
				Agent:       domainagent.NameLegal,
				Description: "Research the relevant ordinances",
				Build: func(_ *Context, in Input) (agent.Task, error) {
					return agent.Task{
						"question": in.String("compliance_area",
							"What are the legal requirements for employee leave policies in Hong Kong?"),
					}, nil
				},
			},
			{
				Name:        "compliance_validation",
				Agent:       genericagent.NameValidation,
				Description: "Validate the policy against the legal requirements",
				Build: func(c *Context, in Input) (agent.Task, error) {
					policy, err := in.Require("policy_content")
					if err != nil {
						return nil, err
					}
					legal, err := sources(c, sourceRef{"Legal Requirements", "legal_research", "answer"})
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"documents":       []any{source(in.String("policy_name", "HR Policy"), policy)},
						"validation_type": "comprehensive",
						"sources":         legal,
					}, nil
				},
			},
			{
				Name:        "compliance_report",
				Agent:       genericagent.NameSynthesis,
				Description: "Write the compliance report",
				Build: func(c *Context, _ Input) (agent.Task, error) {
					src, err := sources(c,
						sourceRef{"Legal Requirements", "legal_research", "answer"},
						sourceRef{"Validation Results", "compliance_validation", ""},
					)
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"sources":        src,
						"synthesis_type": "report",
						"focus":          "Compliance report with specific recommendations for policy improvements",
					}, nil
				},
			},
		},
	}
}

func simpleQA() *Workflow {
	return &Workflow{
		Name:        SimpleQA,
		Description: "Legal question answering with accuracy validation",
		InputSchema: inputSchema(
			field("question", true, "Legal question to answer and validate"),
		),
		Steps: []Step{
			{
				Name:        "answer_question",
				Agent:       domainagent.NameLegal,
				Description: "Research and answer the question",
				Build: func(_ *Context, in Input) (agent.Task, error) {
					q, err := in.Require("question")
					if err != nil {
						return nil, err
					}
					return agent.Task{"question": q}, nil
				},
			},
			{
				Name:        "validate_answer",
				Agent:       genericagent.NameValidation,
				Description: "Validate the answer's accuracy",
				Build: func(c *Context, in Input) (agent.Task, error) {
					answer, err := c.String("answer_question", "answer")
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"content":         answer,
						"validation_type": "accuracy",
						"question":        in.String("question", ""),
					}, nil
				},
			},
		},
	}
}

func multiAgentResearch() *Workflow {
	perspective := func(prefix string) func(in Input) (string, error) {
		return func(in Input) (string, error) {
			topic, err := in.Require("research_topic")
			if err != nil {
				return "", err
			}
			return prefix + topic, nil
		}
	}
	legalQ := perspective("From a legal perspective: ")
	hrQ := perspective("From an HR policy perspective: ")
	csQ := perspective("From a customer service perspective: ")

	return &Workflow{
		Name:        MultiAgentResearch,
		Description: "Legal, HR and customer service perspectives on one topic",
		InputSchema: inputSchema(
			field("research_topic", true, "Topic to research from several perspectives"),
			field("hr_context", false, "HR-specific context"),
			field("cs_context", false, "Customer service context"),
		),
		Steps: []Step{
			{
				Name:        "legal_perspective",
				Agent:       domainagent.NameLegal,
				Description: "Research the legal perspective",
				Build: func(_ *Context, in Input) (agent.Task, error) {
					q, err := legalQ(in)
					if err != nil {
						return nil, err
					}
					return agent.Task{"question": q}, nil
				},
			},
			{
				Name:        "hr_perspective",
				Agent:       domainagent.NameHRPolicy,
				Description: "Research the HR policy perspective",
				Build: func(_ *Context, in Input) (agent.Task, error) {
					q, err := hrQ(in)
					if err != nil {
						return nil, err
					}
					return agent.Task{"question": q, "context": in.String("hr_context", ""), "task_type": "general"}, nil
				},
			},
			{
				Name:        "cs_perspective",
				Agent:       domainagent.NameCSDocument,
				Description: "Research the customer service perspective",
				Build: func(_ *Context, in Input) (agent.Task, error) {
					q, err := csQ(in)
					if err != nil {
						return nil, err
					}
					return agent.Task{"question": q, "context": in.String("cs_context", ""), "task_type": "search"}, nil
				},
			},
			{
				Name:        "cross_analysis",
				Agent:       genericagent.NameAnalysis,
				Description: "Compare the perspectives",
				Build: func(c *Context, _ Input) (agent.Task, error) {
					src, err := sources(c,
						sourceRef{"Legal Perspective", "legal_perspective", "answer"},
						sourceRef{"HR Perspective", "hr_perspective", "answer"},
						sourceRef{"CS Perspective", "cs_perspective", "answer"},
					)
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"data":          src,
						"analysis_type": "comparison",
						"focus":         "Common themes, conflicts and unique insights across the perspectives",
					}, nil
				},
			},
			{
				Name:        "final_report",
				Agent:       genericagent.NameSynthesis,
				Description: "Write the research report",
				Build: func(c *Context, in Input) (agent.Task, error) {
					src, err := sources(c,
						sourceRef{"Legal Analysis", "legal_perspective", "answer"},
						sourceRef{"HR Policy Analysis", "hr_perspective", "answer"},
						sourceRef{"Customer Service Analysis", "cs_perspective", "answer"},
						sourceRef{"Cross-Perspective Insights", "cross_analysis", ""},
					)
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"sources":        src,
						"synthesis_type": "report",
						"focus":          "Comprehensive research report on: " + in.String("research_topic", ""),
					}, nil
				},
			},
		},
	}
}

// researchValidate retrieves across one or more queries and validates the
// synthesised answer. Its final output is the validation result.
func researchValidate() *Workflow {
	return &Workflow{
		Name:        ResearchValidate,
		Description: "Multi-query research followed by validation of the answer",
		InputSchema: inputSchema(
			field("question", true, "Question to research"),
			field("queries", false, "Search queries; defaults to the question"),
			field("validation_type", false, "Validation type, comprehensive by default"),
		),
		Steps: []Step{
			{
				Name:        "research",
				Agent:       enhanced.Name,
				Description: "Retrieve across the queries and synthesise an answer",
				Build: func(_ *Context, in Input) (agent.Task, error) {
					q, err := in.Require("question")
					if err != nil {
						return nil, err
					}
					task := agent.Task{"question": q}
					if queries := in.Strings("queries"); len(queries) > 0 {
						task["queries"] = queries
					}
					return task, nil
				},
			},
			{
				Name:        "validate",
				Agent:       genericagent.NameValidation,
				Description: "Validate the synthesised answer",
				Build: func(c *Context, in Input) (agent.Task, error) {
					answer, err := c.Field("research", "answer")
					if err != nil {
						return nil, err
					}
					return agent.Task{
						"content":         answer,
						"validation_type": in.String("validation_type", "comprehensive"),
						"question":        in.String("question", ""),
					}, nil
				},
			},
		},
	}
}
