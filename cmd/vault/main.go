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

// Command vault runs the Legal AI Vault agents and workflows.
//
// Usage:
//
//	vault serve --config vault.yaml
//	vault run simple_qa --input question="What notice must an employer give?"
//	vault agent legal --task question="Who may apply for a licence?"
//	vault ingest ./data/hk-legislation --limit 50
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API server."`
	Run      RunCmd      `cmd:"" help:"Execute a workflow."`
	Agent    AgentCmd    `cmd:"" help:"Execute a single agent task."`
	List     ListCmd     `cmd:"" help:"List agents and workflows."`
	History  HistoryCmd  `cmd:"" help:"Show recent workflow executions."`
	Ingest   IngestCmd   `cmd:"" help:"Ingest legislation files into the document store and vector index."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration file."`

	Config         string   `short:"c" help:"Config file path, or key path for remote providers." type:"path"`
	ConfigProvider string   `name:"config-provider" help:"Config source: file, consul, etcd, zookeeper." default:"file"`
	ConfigEndpoint []string `name:"config-endpoint" help:"Remote config store endpoints."`
	LogLevel       string   `help:"Log level (debug, info, warn, error)."`
	LogFile        string   `help:"Log file path (empty = stderr)."`
	LogFormat      string   `help:"Log format (simple, verbose, or text)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("Legal AI Vault version %s\n", version)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			slog.Info("Shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("vault"),
		kong.Description("Legal AI Vault - multi-agent legal, HR and customer service assistant"),
		kong.UsageOnError(),
	)

	cleanup, err := logger.Setup(logger.Options{Level: cli.LogLevel, Format: cli.LogFormat, File: cli.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
