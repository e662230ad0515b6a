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

// Package provider defines the config source abstraction.
//
// Providers load raw configuration bytes from a local file or a remote
// key/value store (Consul, etcd, ZooKeeper) and signal changes for hot reload.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Type identifies the config source type.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	case "zookeeper", "zk":
		return TypeZookeeper, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// Provider abstracts config sources.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel whenever the config changes.
	// The channel is closed when ctx is cancelled. A nil channel means the
	// provider cannot watch.
	Watch(ctx context.Context) (<-chan struct{}, error)

	Close() error
}

// ProviderConfig configures provider creation.
type ProviderConfig struct {
	Type Type

	// Path is a file path or a key path in the remote store.
	Path string

	// Endpoints of the remote store.
	Endpoints []string

	// DialTimeout bounds connecting to a remote store. Defaults to 10s.
	DialTimeout time.Duration
}

func (c ProviderConfig) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 10 * time.Second
}

// New creates a Provider based on ProviderConfig.
func New(opts ProviderConfig) (Provider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	switch opts.Type {
	case TypeFile, "":
		return NewFileProvider(opts.Path)
	case TypeConsul:
		return NewConsulProvider(opts)
	case TypeEtcd:
		return NewEtcdProvider(opts)
	case TypeZookeeper:
		return NewZookeeperProvider(opts)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", opts.Type)
	}
}

// notify performs a non-blocking send; a pending signal already covers the
// new change.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
