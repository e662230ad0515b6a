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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/runtime"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

// RunCmd executes a workflow and prints the execution as JSON.
type RunCmd struct {
	Workflow  string   `arg:"" help:"Workflow name."`
	Input     []string `short:"i" help:"Input values as key=value. Repeat a key to build a list."`
	InputFile string   `name:"input-file" help:"JSON file holding the input object." type:"existingfile"`
	Compact   bool     `help:"Compact JSON output."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	input, err := parseInput(c.Input, c.InputFile)
	if err != nil {
		return err
	}

	cfg, _, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	exec, err := rt.Orchestrator().ExecuteWorkflow(ctx, c.Workflow, workflow.Input(input))
	if err != nil {
		return err
	}
	if err := printJSON(exec, c.Compact); err != nil {
		return err
	}
	if !exec.Completed() {
		return fmt.Errorf("workflow %s aborted: %s", exec.Workflow, exec.Error)
	}
	return nil
}

// AgentCmd executes a single agent task and prints the result as JSON.
type AgentCmd struct {
	Name     string   `arg:"" help:"Agent name."`
	Task     []string `short:"t" help:"Task fields as key=value."`
	TaskFile string   `name:"task-file" help:"JSON file holding the task object." type:"existingfile"`
	Compact  bool     `help:"Compact JSON output."`
}

func (c *AgentCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	task, err := parseInput(c.Task, c.TaskFile)
	if err != nil {
		return err
	}

	cfg, _, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	res, err := rt.Orchestrator().ExecuteAgent(ctx, c.Name, agent.Task(task))
	if err != nil {
		return err
	}
	if err := printJSON(res, c.Compact); err != nil {
		return err
	}
	return res.Err()
}

// parseInput merges a JSON file with key=value pairs; pairs win. A key given
// more than once becomes a list.
func parseInput(pairs []string, file string) (map[string]any, error) {
	input := map[string]any{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
	}

	seen := map[string]bool{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q (expected key=value)", pair)
		}
		if !seen[key] {
			seen[key] = true
			input[key] = value
			continue
		}
		switch prev := input[key].(type) {
		case []any:
			input[key] = append(prev, value)
		default:
			input[key] = []any{prev, value}
		}
	}
	return input, nil
}

func printJSON(v any, compact bool) error {
	enc := json.NewEncoder(os.Stdout)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
