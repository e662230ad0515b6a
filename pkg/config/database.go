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
	"fmt"
	"net/url"
)

// DatabaseConfig configures the document store holding ordinance and
// section rows.
type DatabaseConfig struct {
	// Driver is "sqlite", "postgres", "mysql" or "memory".
	Driver string `yaml:"driver"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	// Database is the database name, or the file path for SQLite.
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.Database == "" && c.isSQLite() {
		c.Database = "vault.db"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}
	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}
	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "memory":
		return nil
	case "postgres", "mysql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite, memory)", c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if !c.isSQLite() && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}
	if c.MaxConns < 0 || c.MaxIdle < 0 {
		return fmt.Errorf("max_conns and max_idle must be non-negative")
	}
	return nil
}

// IsMemory reports whether documents are kept in process memory.
func (c *DatabaseConfig) IsMemory() bool {
	return c.Driver == "memory"
}

func (c *DatabaseConfig) isSQLite() bool {
	return c.Driver == "sqlite" || c.Driver == "sqlite3"
}

// DSN returns the driver-specific data source name.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   "/" + c.Database,
		}
		if c.Username != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		}
		if c.SSLMode != "" {
			u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
		}
		return u.String()
	case "mysql":
		creds := ""
		if c.Username != "" {
			creds = c.Username + ":" + c.Password + "@"
		}
		return fmt.Sprintf("%stcp(%s:%d)/%s?parseTime=true", creds, c.Host, c.Port, c.Database)
	case "sqlite", "sqlite3":
		return c.Database
	default:
		return ""
	}
}

// DriverName returns the database/sql driver name.
func (c *DatabaseConfig) DriverName() string {
	if c.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Driver
}

// Placeholder returns the bind parameter for the n-th (1-based) argument.
func (c *DatabaseConfig) Placeholder(n int) string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
