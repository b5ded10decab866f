// Package config holds the process configuration. Values come from flags or
// environment variables through kong struct tags; nothing else in the module
// reads the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	SourceDatabase  = "database"
	SourceCSV       = "csv"
	SourceSynthetic = "synthetic"
	SourceNetCDF    = "netcdf"
)

// Config is embedded into the CLI root so every command shares it.
type Config struct {
	Container string `name:"container-name" help:"Deployment container name, attached to logs and /health." env:"CONTAINER_NAME"`

	Logging  Logging  `embed:""`
	Database Database `embed:"" prefix:"db-"`
	Source   Source   `embed:""`
}

type Logging struct {
	Level  string `name:"log-level" help:"Log level." enum:"debug,info,warn,error" default:"info" env:"LOG_LEVEL"`
	Format string `name:"log-format" help:"Log output format." enum:"text,json" default:"text" env:"LOG_FORMAT"`
}

// Database describes how to reach the observation database. It is passed
// explicitly to the database source so tests can inject any value.
type Database struct {
	Driver   string `help:"Database driver." enum:"postgres,sqlite" default:"postgres" env:"DB_DRIVER"`
	Host     string `help:"Postgres host." default:"localhost" env:"POSTGRES_HOST"`
	Port     int    `help:"Postgres port." default:"5432" env:"POSTGRES_PORT"`
	Name     string `help:"Postgres database name." default:"postgres" env:"POSTGRES_DB"`
	User     string `help:"Postgres user." default:"postgres" env:"POSTGRES_USER"`
	Password string `help:"Postgres password." env:"POSTGRES_PASSWORD"`
	SSLMode  string `name:"sslmode" help:"Postgres sslmode." default:"disable" env:"POSTGRES_SSLMODE"`
	Path     string `name:"sqlite-path" help:"SQLite database file (driver=sqlite)." default:"data/rainmap.db" env:"SQLITE_PATH"`
}

type Source struct {
	Kind       string `name:"source" help:"Time series backend." enum:"database,csv,synthetic,netcdf" default:"database" env:"DATA_SOURCE"`
	CSVPath    string `name:"csv-path" help:"CSV file or ftp:// URL (source=csv)." env:"CSV_PATH"`
	NetCDFPath string `name:"netcdf-path" help:"Gridded NetCDF file (source=netcdf)." env:"NETCDF_PATH"`
}

// Validate checks the cross-field rules kong tags cannot express.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceCSV:
		if strings.TrimSpace(c.Source.CSVPath) == "" {
			return errors.New("CSV_PATH is required when DATA_SOURCE=csv")
		}
	case SourceDatabase:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d Database) Validate() error {
	switch d.Driver {
	case DriverPostgres:
		if strings.TrimSpace(d.Host) == "" {
			return errors.New("POSTGRES_HOST is required")
		}
		if d.Port <= 0 || d.Port > 65535 {
			return fmt.Errorf("invalid POSTGRES_PORT %d", d.Port)
		}
	case DriverSQLite:
		if strings.TrimSpace(d.Path) == "" {
			return errors.New("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unknown database driver %q", d.Driver)
	}
	return nil
}

// DSN returns the data source name handed to sql.Open. Postgres uses the
// libpq key/value form: host=... port=... dbname=... user=... password=...
func (d Database) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	pairs := []struct{ k, v string }{
		{"host", d.Host},
		{"port", strconv.Itoa(d.Port)},
		{"dbname", d.Name},
		{"user", d.User},
		{"password", d.Password},
		{"sslmode", d.SSLMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.v == "" {
			continue
		}
		parts = append(parts, p.k+"="+quoteDSNValue(p.v))
	}
	return strings.Join(parts, " ")
}

// Redacted is DSN with the password masked, for logs.
func (d Database) Redacted() string {
	if d.Password == "" {
		return d.DSN()
	}
	masked := d
	masked.Password = "xxxxx"
	return masked.DSN()
}

func quoteDSNValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func (l Logging) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
