package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Immich   ImmichConfig
	Sync     SyncConfig
	Exiftool ExiftoolConfig
	Log      LogConfig
	Database DatabaseConfig
	Web      WebConfig

	// invalid collects variables that were set but could not be parsed.
	invalid []string
}

type ImmichConfig struct {
	URL          string
	APIKey       string
	PublicURL    string // public address for asset links (e.g., https://photos.example.com)
	PhotoDir     string // local mount of the library
	PathSegments int    // trailing originalPath segments kept under PhotoDir
	PageSize     int
	Timeout      time.Duration
	Retries      int
}

// AssetURL returns an OSC 8 hyperlink for terminal emulators.
// Displays the asset ID but makes it clickable to open the asset in Immich.
// Returns the plain ID if no public URL is configured.
func (c *ImmichConfig) AssetURL(id string) string {
	base := c.PublicURL
	if base == "" {
		return id
	}
	url := strings.TrimRight(base, "/") + "/photos/" + id
	// OSC 8 hyperlink format: \e]8;;URL\e\\TEXT\e]8;;\e\\
	return "\x1b]8;;" + url + "\x1b\\" + id + "\x1b]8;;\x1b\\"
}

type SyncConfig struct {
	CaptionMaxLen      int
	Concurrency        int
	CheckpointInterval int
}

type ExiftoolConfig struct {
	Binary string // defaults to exiftool from PATH
}

type LogConfig struct {
	Level  string // defaults to info
	Format string // console or json
	File   string // optional JSON log file
}

type DatabaseConfig struct {
	Driver       string // sqlite (default) or postgres
	URL          string // PostgreSQL connection URL
	Path         string // SQLite database file
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// Addr returns host:port for the HTTP listener.
func (c *WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults.
const (
	DefaultPhotoDir           = "/library"
	DefaultPathSegments       = 3
	DefaultPageSize           = 200
	MaxPageSize               = 500
	DefaultTimeoutSeconds     = 30
	DefaultRetries            = 3
	DefaultCaptionMaxLen      = 2000
	DefaultConcurrency        = 4
	DefaultCheckpointInterval = 100
	DefaultStatePath          = "./immich-metasync.db"
	DefaultWebHost            = "0.0.0.0"
	DefaultWebPort            = 8080
)

// envInt reads an environment variable and parses it as an integer.
// Returns the default value if the env var is unset or empty; an unparseable
// value is recorded and also yields the default.
func (c *Config) envInt(key string, defaultVal int) int {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		c.invalid = append(c.invalid, fmt.Sprintf("%s=%q is not an integer", key, s))
		return defaultVal
	}
	return n
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() *Config {
	c := &Config{}
	c.Immich = ImmichConfig{
		URL:          strings.TrimSpace(os.Getenv("IMMICH_INSTANCE_URL")),
		APIKey:       strings.TrimSpace(os.Getenv("IMMICH_API_KEY")),
		PublicURL:    os.Getenv("IMMICH_PUBLIC_URL"),
		PhotoDir:     envString("IMMICH_PHOTO_DIR", DefaultPhotoDir),
		PathSegments: c.envInt("IMMICH_PATH_SEGMENTS", DefaultPathSegments),
		PageSize:     c.envInt("IMMICH_SEARCH_PAGE_SIZE", DefaultPageSize),
		Timeout:      time.Duration(c.envInt("IMMICH_TIMEOUT_SECONDS", DefaultTimeoutSeconds)) * time.Second,
		Retries:      c.envInt("IMMICH_RETRIES", DefaultRetries),
	}
	c.Sync = SyncConfig{
		CaptionMaxLen:      c.envInt("CAPTION_MAX_LEN", DefaultCaptionMaxLen),
		Concurrency:        c.envInt("SYNC_CONCURRENCY", DefaultConcurrency),
		CheckpointInterval: c.envInt("CHECKPOINT_INTERVAL", DefaultCheckpointInterval),
	}
	c.Exiftool = ExiftoolConfig{
		Binary: envString("EXIFTOOL_PATH", "exiftool"),
	}
	c.Log = LogConfig{
		Level:  envString("IMMICH_LOG_LEVEL", "info"),
		Format: envString("IMMICH_LOG_FORMAT", "console"),
		File:   os.Getenv("IMMICH_LOG_FILE"),
	}
	c.Database = DatabaseConfig{
		Driver:       strings.ToLower(envString("DATABASE_DRIVER", DriverSQLite)),
		URL:          os.Getenv("DATABASE_URL"),
		Path:         envString("STATE_DB_PATH", DefaultStatePath),
		MaxOpenConns: c.envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns: c.envInt("DATABASE_MAX_IDLE_CONNS", 5),
	}
	c.Web = WebConfig{
		Host:           envString("WEB_HOST", DefaultWebHost),
		Port:           c.envInt("WEB_PORT", DefaultWebPort),
		AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
	}
	return c
}

// Validate checks values that would make a run misbehave. It does not
// require the Immich credentials; see ValidateImmich.
func (c *Config) Validate() error {
	var errs []error
	for _, msg := range c.invalid {
		errs = append(errs, errors.New(msg))
	}
	if c.Immich.PathSegments < 1 || c.Immich.PathSegments > 10 {
		errs = append(errs, fmt.Errorf("IMMICH_PATH_SEGMENTS must be between 1 and 10, got %d", c.Immich.PathSegments))
	}
	if c.Immich.PageSize < 1 || c.Immich.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("IMMICH_SEARCH_PAGE_SIZE must be between 1 and %d, got %d", MaxPageSize, c.Immich.PageSize))
	}
	if c.Immich.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("IMMICH_TIMEOUT_SECONDS must be positive"))
	}
	if c.Immich.Retries < 0 {
		errs = append(errs, fmt.Errorf("IMMICH_RETRIES must not be negative"))
	}
	if c.Sync.CaptionMaxLen < 1 {
		errs = append(errs, fmt.Errorf("CAPTION_MAX_LEN must be at least 1, got %d", c.Sync.CaptionMaxLen))
	}
	if c.Sync.Concurrency < 1 || c.Sync.Concurrency > 64 {
		errs = append(errs, fmt.Errorf("SYNC_CONCURRENCY must be between 1 and 64, got %d", c.Sync.Concurrency))
	}
	if c.Sync.CheckpointInterval < 1 {
		errs = append(errs, fmt.Errorf("CHECKPOINT_INTERVAL must be at least 1"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("IMMICH_LOG_FORMAT must be console or json, got %q", c.Log.Format))
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, fmt.Errorf("STATE_DB_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("WEB_PORT must be a valid port, got %d", c.Web.Port))
	}
	return errors.Join(errs...)
}

// ValidateImmich checks the settings needed to talk to the server.
func (c *Config) ValidateImmich() error {
	var errs []error
	if c.Immich.URL == "" {
		errs = append(errs, errors.New("IMMICH_INSTANCE_URL is required"))
	} else if !strings.HasPrefix(c.Immich.URL, "http://") && !strings.HasPrefix(c.Immich.URL, "https://") {
		errs = append(errs, fmt.Errorf("IMMICH_INSTANCE_URL must start with http:// or https://, got %q", c.Immich.URL))
	}
	if c.Immich.APIKey == "" {
		errs = append(errs, errors.New("IMMICH_API_KEY is required"))
	}
	return errors.Join(errs...)
}

// Redacted returns the effective settings with secrets masked.
func (c *Config) Redacted() map[string]any {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	return map[string]any{
		"immich_url":          c.Immich.URL,
		"immich_api_key":      mask(c.Immich.APIKey),
		"photo_dir":           c.Immich.PhotoDir,
		"path_segments":       c.Immich.PathSegments,
		"page_size":           c.Immich.PageSize,
		"timeout_seconds":     int(c.Immich.Timeout / time.Second),
		"caption_max_len":     c.Sync.CaptionMaxLen,
		"concurrency":         c.Sync.Concurrency,
		"checkpoint_interval": c.Sync.CheckpointInterval,
		"exiftool":            c.Exiftool.Binary,
		"log_level":           c.Log.Level,
		"log_format":          c.Log.Format,
		"database_driver":     c.Database.Driver,
		"database_url":        mask(c.Database.URL),
		"state_db_path":       c.Database.Path,
	}
}

// LoadFile exports the variables of a config file into the environment.
// Variables already set in the environment win. ".env" style files are read
// with godotenv; .yaml, .yml and .json files must hold a flat mapping of
// variable names to scalar values.
func LoadFile(path string) error {
	values, err := readFile(path)
	if err != nil {
		return err
	}
	for key, value := range values {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("could not set %s: %w", key, err)
		}
	}
	return nil
}

func readFile(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
		}
		values := make(map[string]string, len(raw))
		for key, v := range raw {
			switch val := v.(type) {
			case nil:
				values[key] = ""
			case map[string]any, []any:
				return nil, fmt.Errorf("config file %s: %s must be a scalar value", path, key)
			default:
				values[key] = fmt.Sprint(val)
			}
		}
		return values, nil
	default:
		values, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
		return values, nil
	}
}
