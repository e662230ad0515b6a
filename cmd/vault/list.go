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
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/agent"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/runtime"
)

// ListCmd lists the registered agents and workflows.
type ListCmd struct {
	JSON bool `help:"Print JSON instead of a table."`
}

func (c *ListCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, _, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	agents := rt.Agents().Capabilities()
	workflows := rt.Workflows().Infos()
	if c.JSON {
		return printJSON(map[string]any{"agents": agents, "workflows": workflows}, false)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tTOOLS\tDESCRIPTION")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, toolNames(a.Tools), a.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "WORKFLOW\tSTEPS\tDESCRIPTION")
	for _, wf := range workflows {
		steps := make([]string, len(wf.Steps))
		for i, s := range wf.Steps {
			steps[i] = s.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", wf.Name, strings.Join(steps, " > "), wf.Description)
	}
	return w.Flush()
}

func toolNames(tools []agent.ToolInfo) string {
	if len(tools) == 0 {
		return "-"
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return strings.Join(names, ",")
}

// HistoryCmd prints recent executions and statistics. Only a redis history
// store outlives the process.
type HistoryCmd struct {
	Limit int  `help:"Number of executions to show (0 = all retained)." default:"10"`
	Stats bool `help:"Print aggregate statistics instead."`
}

func (c *HistoryCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, _, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	if c.Stats {
		stats, err := rt.Orchestrator().Statistics(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats, false)
	}
	records, err := rt.Orchestrator().History(ctx, c.Limit)
	if err != nil {
		return err
	}
	return printJSON(records, false)
}
