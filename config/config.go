/*
Package config loads server configuration.

PRECEDENCE (highest first):
  1. Command-line flags
  2. Process environment
  3. .env file (joho/godotenv), never overriding the process environment
  4. Defaults

ENVIRONMENT:
  WFE_PORT             HTTP port (8080)
  WFE_DB_DRIVER        sqlite3 | postgres (sqlite3)
  WFE_DB_DSN           database path or URL (workforce.db)
  WFE_REDIS_ADDR       host:port; empty keeps sessions in memory
  WFE_REDIS_PASSWORD   Redis password
  WFE_REDIS_DB         Redis database number (0)
  WFE_SESSION_TTL      lifetime of an open deviation session (2h)
  WFE_LADDER_FILE      ladder definitions loaded at startup
  WFE_ALLOWED_ORIGINS  comma separated CORS origins
*/
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	DBDriver       string
	DBDSN          string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SessionTTL     time.Duration
	LadderFile     string
	AllowedOrigins []string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:           8080,
		DBDriver:       "sqlite3",
		DBDSN:          "workforce.db",
		SessionTTL:     2 * time.Hour,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Load reads env files (".env" when none are given, optional), the process
// environment and args, then validates.
func Load(args []string, envFiles ...string) (*Config, error) {
	fileVals, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}
	getenv := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fileVals[key]
	}

	cfg := Default()
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	optional := len(files) == 0
	if optional {
		files = []string{".env"}
	}
	vals := make(map[string]string)
	for _, f := range files {
		m, err := godotenv.Read(f)
		if err != nil {
			if optional && os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error loading %s: %w", f, err)
		}
		for k, v := range m {
			if _, seen := vals[k]; !seen {
				vals[k] = v
			}
		}
	}
	return vals, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("WFE_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WFE_PORT: %w", err)
		}
		c.Port = p
	}
	if v := getenv("WFE_DB_DRIVER"); v != "" {
		c.DBDriver = v
	}
	if v := getenv("WFE_DB_DSN"); v != "" {
		c.DBDSN = v
	}
	if v := getenv("WFE_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := getenv("WFE_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := getenv("WFE_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WFE_REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v := getenv("WFE_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WFE_SESSION_TTL: %w", err)
		}
		c.SessionTTL = d
	}
	if v := getenv("WFE_LADDER_FILE"); v != "" {
		c.LadderFile = v
	}
	if v := getenv("WFE_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

// BindFlags registers flags whose defaults are the current values.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP server port")
	fs.StringVar(&c.DBDriver, "db-driver", c.DBDriver, "database driver: sqlite3 or postgres")
	fs.StringVar(&c.DBDSN, "db", c.DBDSN, "database path or connection URL (\":memory:\" for in-memory SQLite)")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for deviation sessions (empty = in-memory)")
	fs.DurationVar(&c.SessionTTL, "session-ttl", c.SessionTTL, "lifetime of an open deviation session")
	fs.StringVar(&c.LadderFile, "ladders", c.LadderFile, "ladder definition file (.yaml or .json) loaded at startup")
	fs.Func("origins", "comma separated CORS origins", func(v string) error {
		c.AllowedOrigins = splitList(v)
		return nil
	})
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Port)
	}
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis database must not be negative")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
