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

	"github.com/go-zookeeper/zk"
)

// ZookeeperProvider reads config from a ZooKeeper node.
type ZookeeperProvider struct {
	conn *zk.Conn
	path string
}

func NewZookeeperProvider(opts ProviderConfig) (*ZookeeperProvider, error) {
	if len(opts.Endpoints) == 0 {
		return nil, fmt.Errorf("zookeeper endpoints are required")
	}

	conn, _, err := zk.Connect(opts.Endpoints, opts.dialTimeout(), zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	return &ZookeeperProvider{conn: conn, path: opts.Path}, nil
}

func (p *ZookeeperProvider) Type() Type {
	return TypeZookeeper
}

func (p *ZookeeperProvider) Load(ctx context.Context) ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zookeeper path %s: %w", p.path, err)
	}
	return data, nil
}

// Watch re-arms the one-shot ZooKeeper data watch after every event.
func (p *ZookeeperProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		for ctx.Err() == nil {
			_, _, events, err := p.conn.GetW(p.path)
			if err != nil {
				slog.Warn("ZooKeeper watch failed", "path", p.path, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				switch ev.Type {
				case zk.EventNodeDataChanged, zk.EventNodeCreated:
					notify(ch)
				case zk.EventNodeDeleted:
					slog.Warn("ZooKeeper config node deleted", "path", p.path)
				}
			}
		}
	}()
	return ch, nil
}

func (p *ZookeeperProvider) Close() error {
	p.conn.Close()
	return nil
}

var _ Provider = (*ZookeeperProvider)(nil)
