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

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/workflow"
)

// ValidateCmd loads and validates the configuration and the bundled
// workflow definitions.
type ValidateCmd struct {
	PrintConfig bool `name:"print-config" help:"Print the effective configuration as JSON."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	for _, wf := range workflow.Builtins() {
		if err := wf.Validate(); err != nil {
			return fmt.Errorf("workflow %s: %w", wf.Name, err)
		}
	}

	if c.PrintConfig {
		return printJSON(cfg, false)
	}
	fmt.Printf("Configuration is valid (llm: %s/%s, vector: %s, database: %s)\n",
		cfg.LLM.Provider, cfg.LLM.Model, cfg.Vector.Type, cfg.Database.Driver)
	return nil
}
