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
	"log/slog"
	"os"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/runtime"
)

// IngestCmd parses legislation files and indexes their sections.
type IngestCmd struct {
	Path      string `arg:"" help:"File or directory to ingest." type:"existingpath"`
	Limit     int    `help:"Maximum number of files to ingest from a directory (0 = all)."`
	MaxTokens int    `name:"max-tokens" help:"Maximum tokens per section chunk." default:"512"`
}

func (c *IngestCmd) Run(cli *CLI) error {
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

	ing, err := rt.Ingester(c.MaxTokens)
	if err != nil {
		return err
	}

	info, err := os.Stat(c.Path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		res, err := ing.IngestFile(ctx, c.Path)
		if err != nil {
			return err
		}
		return printJSON(res, false)
	}

	report, err := ing.IngestDir(ctx, c.Path, c.Limit)
	if err != nil {
		return err
	}
	slog.Info("Ingestion finished",
		"ingested", report.Ingested,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"sections", report.Sections,
	)
	if err := printJSON(report, false); err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, len(report.Files))
	}
	return nil
}
