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
	"context"
	"fmt"
	"log/slog"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/observability"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/runtime"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/server"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Addr  string `help:"Listen address (overrides server.addr)."`
	Watch bool   `help:"Watch the configuration source and re-apply logging settings on change."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, loader, err := cli.loadConfig(ctx, config.WithOnChange(func(next *config.Config) {
		cli.applyLoggerConfig(&next.Logger)
	}))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown error", "error", err)
		}
	}()

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	opts := []server.Option{server.WithObservability(obs), server.WithWorkflowBuilder(rt.Builder())}
	for name, check := range rt.HealthChecks() {
		opts = append(opts, server.WithHealthCheck(name, check))
	}
	srv := server.New(cfg.Server.Addr, rt.Orchestrator(), opts...)

	fmt.Printf("\nLegal AI Vault server ready\n")
	fmt.Printf("   Agents:     http://%s/api/agents\n", displayAddr(cfg.Server.Addr))
	fmt.Printf("   Workflows:  http://%s/api/workflows\n", displayAddr(cfg.Server.Addr))
	fmt.Printf("   Health:     http://%s/health\n", displayAddr(cfg.Server.Addr))
	if path := obs.MetricsPath(); path != "" {
		fmt.Printf("   Metrics:    http://%s%s\n", displayAddr(cfg.Server.Addr), path)
	}
	fmt.Println()

	return srv.Start(ctx)
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
