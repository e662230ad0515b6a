// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const fileDebounce = 100 * time.Millisecond

// FileProvider reads a local YAML or JSON file. Watch reports a change only
// when the file's content differs from the last load.
type FileProvider struct {
	path string

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	lastHash []byte
	closed   bool
}

func NewFileProvider(path string) (*FileProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	return &FileProvider{path: absPath}, nil
}

func (p *FileProvider) Type() Type {
	return TypeFile
}

func (p *FileProvider) Path() string {
	return p.path
}

func (p *FileProvider) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", p.path, err)
	}

	sum := sha256.Sum256(data)
	p.mu.Lock()
	p.lastHash = sum[:]
	p.mu.Unlock()

	return data, nil
}

// Watch watches the file's directory, since editors often replace files
// rather than writing them in place.
func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	p.watcher = watcher

	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, watcher, ch)

	slog.Info("Watching config file", "path", p.path)
	return ch, nil
}

func (p *FileProvider) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, ch chan<- struct{}) {
	defer close(ch)

	name := filepath.Base(p.path)

	debounce := time.NewTimer(fileDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				debounce.Reset(fileDebounce)
			}
			if event.Has(fsnotify.Remove) {
				slog.Warn("Config file was removed", "path", p.path)
			}

		case <-debounce.C:
			if !p.changed() {
				continue
			}
			select {
			case ch <- struct{}{}:
				slog.Debug("Config file changed", "path", p.path)
			default:
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

func (p *FileProvider) changed() bool {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)

	p.mu.Lock()
	defer p.mu.Unlock()
	return !bytes.Equal(sum[:], p.lastHash)
}

func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.watcher != nil {
		err := p.watcher.Close()
		p.watcher = nil
		return err
	}
	return nil
}

var _ Provider = (*FileProvider)(nil)
