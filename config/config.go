package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// AppConfig holds environment driven configuration values.
type AppConfig struct {
	AppPort            string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Remote posts API
	RemoteBaseURL          string
	RemoteTimeoutSec       int
	RemoteForwardMutations bool
	RemoteCacheTTLSec      int
	// SourceKind selects where the collection is read from: http or sql.
	SourceKind string
	// SQL source
	DatabaseDriver string
	DatabaseDSN    string
	// Redis snapshot cache; empty host disables it
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Engine
	RevealIncrement   int
	DefaultUserID     int
	CollationLanguage string
	// Sessions
	SessionIdleMinutes int
}

// fileConfig mirrors the grouped layout of config.json / config.yaml.
type fileConfig struct {
	App struct {
		AppPort            string   `json:"AppPort" yaml:"AppPort"`
		RateLimitPerMinute int      `json:"RateLimitPerMinute" yaml:"RateLimitPerMinute"`
		AllowedOrigins     []string `json:"AllowedOrigins" yaml:"AllowedOrigins"`
	} `json:"app" yaml:"app"`
	Gin struct {
		Mode    string `json:"Mode" yaml:"Mode"`
		LogPath string `json:"LogPath" yaml:"LogPath"`
	} `json:"gin" yaml:"gin"`
	Remote struct {
		BaseURL          string `json:"BaseURL" yaml:"BaseURL"`
		TimeoutSec       int    `json:"TimeoutSec" yaml:"TimeoutSec"`
		ForwardMutations bool   `json:"ForwardMutations" yaml:"ForwardMutations"`
		CacheTTLSec      int    `json:"CacheTTLSec" yaml:"CacheTTLSec"`
	} `json:"remote" yaml:"remote"`
	Source struct {
		Kind string `json:"Kind" yaml:"Kind"`
	} `json:"source" yaml:"source"`
	Database struct {
		Driver string `json:"Driver" yaml:"Driver"`
		DSN    string `json:"DSN" yaml:"DSN"`
	} `json:"database" yaml:"database"`
	Redis struct {
		RedisHost     string `json:"RedisHost" yaml:"RedisHost"`
		RedisPort     int    `json:"RedisPort" yaml:"RedisPort"`
		RedisDB       int    `json:"RedisDB" yaml:"RedisDB"`
		RedisPassword string `json:"RedisPassword" yaml:"RedisPassword"`
	} `json:"redis" yaml:"redis"`
	Log struct {
		Level      string `json:"Level" yaml:"Level"`
		Path       string `json:"Path" yaml:"Path"`
		MaxSizeMB  int    `json:"MaxSizeMB" yaml:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups" yaml:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays" yaml:"MaxAgeDays"`
		Compress   bool   `json:"Compress" yaml:"Compress"`
	} `json:"log" yaml:"log"`
	Engine struct {
		RevealIncrement   int    `json:"RevealIncrement" yaml:"RevealIncrement"`
		DefaultUserID     int    `json:"DefaultUserID" yaml:"DefaultUserID"`
		CollationLanguage string `json:"CollationLanguage" yaml:"CollationLanguage"`
	} `json:"engine" yaml:"engine"`
	Session struct {
		IdleMinutes int `json:"IdleMinutes" yaml:"IdleMinutes"`
	} `json:"session" yaml:"session"`
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	c, err := LoadFrom("config")
	if err != nil {
		log.Fatalf("invalid config file: %v", err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// LoadFrom builds a configuration from the files in dir without caching it.
// Precedence: config.json or config.yaml -> defaults -> environment variable overrides.
func LoadFrom(dir string) (AppConfig, error) {
	var c AppConfig
	if err := loadFileConfig(dir, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadFileConfig reads the first config file found in dir. Missing files are
// ignored; a malformed file is an error.
func loadFileConfig(dir string, out *AppConfig) error {
	var fc fileConfig
	found := false
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if strings.HasSuffix(name, ".json") {
			err = json.Unmarshal(data, &fc)
		} else {
			err = yaml.Unmarshal(data, &fc)
		}
		if err != nil {
			return err
		}
		found = true
		break
	}
	if !found {
		return nil
	}

	out.AppPort = fc.App.AppPort
	out.RateLimitPerMinute = fc.App.RateLimitPerMinute
	out.AllowedOrigins = fc.App.AllowedOrigins
	out.GinMode = fc.Gin.Mode
	out.GinPath = fc.Gin.LogPath
	out.RemoteBaseURL = fc.Remote.BaseURL
	out.RemoteTimeoutSec = fc.Remote.TimeoutSec
	out.RemoteForwardMutations = fc.Remote.ForwardMutations
	out.RemoteCacheTTLSec = fc.Remote.CacheTTLSec
	out.SourceKind = fc.Source.Kind
	out.DatabaseDriver = fc.Database.Driver
	out.DatabaseDSN = fc.Database.DSN
	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword
	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress
	out.RevealIncrement = fc.Engine.RevealIncrement
	out.DefaultUserID = fc.Engine.DefaultUserID
	out.CollationLanguage = fc.Engine.CollationLanguage
	out.SessionIdleMinutes = fc.Session.IdleMinutes
	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RemoteBaseURL == "" {
		c.RemoteBaseURL = "https://jsonplaceholder.typicode.com"
	}
	if c.RemoteTimeoutSec == 0 {
		c.RemoteTimeoutSec = 10
	}
	if c.RemoteCacheTTLSec == 0 {
		c.RemoteCacheTTLSec = 3600
	}
	if c.SourceKind == "" {
		c.SourceKind = "http"
	}
	if c.DatabaseDriver == "" {
		c.DatabaseDriver = "sqlite"
	}
	if c.DatabaseDSN == "" && c.DatabaseDriver == "sqlite" {
		c.DatabaseDSN = "data/posts.db"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/app.log"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.RevealIncrement == 0 {
		c.RevealIncrement = 10
	}
	if c.DefaultUserID == 0 {
		c.DefaultUserID = 1
	}
	if c.CollationLanguage == "" {
		c.CollationLanguage = "en"
	}
	if c.SessionIdleMinutes == 0 {
		c.SessionIdleMinutes = 30
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	}
	if v := getEnv("REMOTE_BASE_URL", ""); v != "" {
		c.RemoteBaseURL = v
	}
	if v := getEnv("REMOTE_TIMEOUT_SEC", ""); v != "" {
		c.RemoteTimeoutSec = mustParseInt(v)
	}
	if v := getEnv("REMOTE_FORWARD_MUTATIONS", ""); v != "" {
		c.RemoteForwardMutations = v == "true"
	}
	if v := getEnv("REMOTE_CACHE_TTL_SEC", ""); v != "" {
		c.RemoteCacheTTLSec = mustParseInt(v)
	}
	if v := getEnv("SOURCE_KIND", ""); v != "" {
		c.SourceKind = v
	}
	if v := getEnv("DATABASE_DRIVER", ""); v != "" {
		c.DatabaseDriver = v
	}
	if v := getEnv("DATABASE_DSN", ""); v != "" {
		c.DatabaseDSN = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	// Logging env overrides
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("REVEAL_INCREMENT", ""); v != "" {
		c.RevealIncrement = mustParseInt(v)
	}
	if v := getEnv("DEFAULT_USER_ID", ""); v != "" {
		c.DefaultUserID = mustParseInt(v)
	}
	if v := getEnv("COLLATION_LANGUAGE", ""); v != "" {
		c.CollationLanguage = v
	}
	if v := getEnv("SESSION_IDLE_MINUTES", ""); v != "" {
		c.SessionIdleMinutes = mustParseInt(v)
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
