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
	"os"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config/provider"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/logger"
)

const defaultConfigFile = "vault.yaml"

// loadConfig loads the configuration named by the global flags. Without
// --config, vault.yaml is used when present, otherwise the defaults.
func (cli *CLI) loadConfig(ctx context.Context, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	typ, err := provider.ParseType(cli.ConfigProvider)
	if err != nil {
		return nil, nil, err
	}

	path := cli.Config
	if path == "" && typ == provider.TypeFile && fileExists(defaultConfigFile) {
		path = defaultConfigFile
	}

	cfg, loader, err := config.LoadConfig(ctx, provider.ProviderConfig{
		Type:      typ,
		Path:      path,
		Endpoints: cli.ConfigEndpoint,
	}, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if path != "" {
		slog.Debug("Loaded configuration", "source", typ, "path", path)
	}

	cli.applyLoggerConfig(&cfg.Logger)
	return cfg, loader, nil
}

// applyLoggerConfig re-initialises the logger from the config file when
// neither a flag nor the environment chose the level.
func (cli *CLI) applyLoggerConfig(lc *config.LoggerConfig) {
	if cli.LogLevel != "" || os.Getenv(logger.EnvLevel) != "" || lc.Level == "" {
		return
	}
	opts := logger.Options{Level: lc.Level, Format: cli.LogFormat, File: cli.LogFile}
	if opts.Format == "" && os.Getenv(logger.EnvFormat) == "" {
		opts.Format = lc.Format
	}
	if opts.File == "" && os.Getenv(logger.EnvFile) == "" {
		opts.File = lc.File
	}
	if _, err := logger.Setup(opts); err != nil {
		slog.Warn("Ignoring logger configuration", "error", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
