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

package config

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DBPool shares one *sql.DB per DSN between the document store and ingest.
type DBPool struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
}

func NewDBPool() *DBPool {
	return &DBPool{pools: make(map[string]*sql.DB)}
}

// Get returns the pool for cfg, opening and pinging it on first use.
func (p *DBPool) Get(ctx context.Context, cfg *DatabaseConfig) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dsn := cfg.DSN()
	if db, ok := p.pools[dsn]; ok {
		return db, nil
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.pools[dsn] = db
	return db, nil
}

func openDB(ctx context.Context, cfg *DatabaseConfig) (*sql.DB, error) {
	driver := cfg.DriverName()

	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	// SQLite allows a single writer; one connection avoids "database is locked".
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	if driver == "sqlite3" {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=10000", "PRAGMA foreign_keys=ON"} {
			if _, err := db.ExecContext(pingCtx, pragma); err != nil {
				slog.Warn("SQLite pragma failed", "pragma", pragma, "error", err)
			}
		}
	}
	return db, nil
}

// Close closes every pool.
func (p *DBPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for dsn, db := range p.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close database: %w", err)
		}
		delete(p.pools, dsn)
	}
	return firstErr
}
