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

// Package registry provides the name-keyed registries shared by agents and
// workflows.
package registry

import (
	"sort"
	"sync"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// BaseRegistry is a concurrency-safe name -> item map. Names are unique;
// Register refuses an existing name, Replace overwrites it.
type BaseRegistry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewBaseRegistry[T any]() *BaseRegistry[T] {
	return &BaseRegistry[T]{
		items: make(map[string]T),
	}
}

func (r *BaseRegistry[T]) Register(name string, item T) error {
	if name == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return xerrors.Newf(xerrors.CodeAlreadyExists, "%q already registered", name)
	}

	r.items[name] = item
	return nil
}

// Replace registers item under name, overwriting any existing item.
func (r *BaseRegistry[T]) Replace(name string, item T) error {
	if name == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[name] = item
	return nil
}

// Remove deletes name and reports whether it was registered.
func (r *BaseRegistry[T]) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.items[name]
	delete(r.items, name)
	return exists
}

func (r *BaseRegistry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[name]
	return item, exists
}

// Names returns the registered names in sorted order.
func (r *BaseRegistry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the items ordered by name.
func (r *BaseRegistry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]T, len(names))
	for i, name := range names {
		items[i] = r.items[name]
	}
	return items
}

func (r *BaseRegistry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}
