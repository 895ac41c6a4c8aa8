// Package config loads runtime settings from defaults, an optional
// bookshelf.yaml file and BOOKSHELF_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/kittclouds/bookshelf/internal/store"
)

const envPrefix = "BOOKSHELF"

type Config struct {
	// Database
	DBPath              string        // file path, "~" expanded, or ":memory:"
	DBMaxOpenConns      int           // pool size for file databases
	DBBusyTimeout       time.Duration // wait on a locked database
	DBSchemaRetries     int           // retries after the first schema attempt
	DBSchemaRetryDelay  time.Duration // base of the linear backoff
	EmbeddingDimensions int           // width of the vec0 column

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	HTTPListen         string        // ex: ":8080"
	HTTPRequestTimeout time.Duration // per-request timeout
	ShutdownTimeout    time.Duration // graceful shutdown budget

	ImportAutoLabels bool // run the auto-labeller on imported bookmarks
	ImportFolders    bool // mirror import folders as collections

	AutoLabelMaxKeywords int // title keywords per bookmark

	// File is the config file that was read, empty when none was found.
	File string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", "~/.bookshelf/bookshelf.db")
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("db.busy_timeout", 5*time.Second)
	v.SetDefault("db.schema_retries", 3)
	v.SetDefault("db.schema_retry_delay", 200*time.Millisecond)
	v.SetDefault("db.embedding_dimensions", 384)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.request_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 5*time.Second)

	v.SetDefault("import.auto_labels", false)
	v.SetDefault("import.folders", true)

	v.SetDefault("autolabel.max_keywords", 3)
}

// Load reads the configuration. An explicit file must exist; otherwise
// bookshelf.yaml is looked up in the working directory and in
// ~/.config/bookshelf, and a missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("bookshelf") // .yaml is implicit
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "bookshelf"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		DBPath:              v.GetString("db.path"),
		DBMaxOpenConns:      v.GetInt("db.max_open_conns"),
		DBBusyTimeout:       v.GetDuration("db.busy_timeout"),
		DBSchemaRetries:     v.GetInt("db.schema_retries"),
		DBSchemaRetryDelay:  v.GetDuration("db.schema_retry_delay"),
		EmbeddingDimensions: v.GetInt("db.embedding_dimensions"),

		LogLevel:  strings.ToLower(v.GetString("log.level")),
		PrettyLog: v.GetBool("log.pretty"),

		HTTPListen:         v.GetString("http.listen"),
		HTTPRequestTimeout: v.GetDuration("http.request_timeout"),
		ShutdownTimeout:    v.GetDuration("http.shutdown_timeout"),

		ImportAutoLabels: v.GetBool("import.auto_labels"),
		ImportFolders:    v.GetBool("import.folders"),

		AutoLabelMaxKeywords: v.GetInt("autolabel.max_keywords"),

		File: v.ConfigFileUsed(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.LogLevel)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db.path must not be empty")
	}
	if c.DBSchemaRetries < 0 {
		return fmt.Errorf("db.schema_retries must not be negative, got %d", c.DBSchemaRetries)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("db.embedding_dimensions must be positive, got %d", c.EmbeddingDimensions)
	}
	return nil
}

// Store maps the database settings onto a store configuration, expanding a
// leading "~" in the path.
func (c *Config) Store() (store.Config, error) {
	path := c.DBPath
	if path != store.MemoryPath {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return store.Config{}, fmt.Errorf("expand db.path: %w", err)
		}
		path = expanded
	}
	return store.Config{
		Path:                path,
		MaxOpenConns:        c.DBMaxOpenConns,
		BusyTimeout:         c.DBBusyTimeout,
		SchemaRetries:       c.DBSchemaRetries,
		SchemaRetryDelay:    c.DBSchemaRetryDelay,
		EmbeddingDimensions: c.EmbeddingDimensions,
		AutoLabelKeywords:   c.AutoLabelMaxKeywords,
	}, nil
}
