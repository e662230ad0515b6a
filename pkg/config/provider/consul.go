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

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/consul/api"
)

// ConsulProvider reads config from a Consul KV key and watches it with
// blocking queries.
type ConsulProvider struct {
	client *api.Client
	key    string
}

func NewConsulProvider(opts ProviderConfig) (*ConsulProvider, error) {
	cfg := api.DefaultConfig()
	if len(opts.Endpoints) > 0 {
		cfg.Address = opts.Endpoints[0]
	}
	cfg.WaitTime = opts.dialTimeout()

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &ConsulProvider{client: client, key: opts.Path}, nil
}

func (p *ConsulProvider) Type() Type {
	return TypeConsul
}

func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	pair, _, err := p.client.KV().Get(p.key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, nil
}

func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	_, meta, err := p.client.KV().Get(p.key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}

	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, meta.LastIndex, ch)
	return ch, nil
}

func (p *ConsulProvider) watchLoop(ctx context.Context, index uint64, ch chan<- struct{}) {
	defer close(ch)

	for ctx.Err() == nil {
		q := (&api.QueryOptions{WaitIndex: index, WaitTime: 5 * time.Minute}).WithContext(ctx)
		_, meta, err := p.client.KV().Get(p.key, q)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Consul watch failed", "key", p.key, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if meta.LastIndex > index {
			index = meta.LastIndex
			notify(ch)
		} else if meta.LastIndex < index {
			index = 0
		}
	}
}

func (p *ConsulProvider) Close() error {
	return nil
}

var _ Provider = (*ConsulProvider)(nil)
