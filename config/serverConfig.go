package config

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultAdminAddr = "127.0.0.1:8081"
	defaultLogLevel  = "info"
	defaultStatsPath = "./stats-data/stats.db"
	defaultLogSizeMB = 100
)

// ServerReader reads the server config from a JSON file.
type ServerReader struct {
	file *os.File
}

// ServerConfig holds the ambient settings of the file server. The listening
// port and the transaction log path are not part of it.
type ServerConfig struct {
	// AdminAddr is where the admin API listens. Empty disables it.
	AdminAddr string `json:"adminAddr" validate:"omitempty,hostname_port"`

	LogLevel string `json:"logLevel" validate:"oneof=debug info warn error"`

	// StatsPath is the BoltDB file for per-file counters. Empty disables stats.
	StatsPath string `json:"statsPath"`

	// AdminSecret is the HS256 key for admin tokens. Empty disables auth.
	AdminSecret string `json:"adminSecret"`

	// SanitizePaths rejects request targets that leave the working directory.
	SanitizePaths bool `json:"sanitizePaths"`

	// TranslogMaxSizeMB is the size at which the transaction log is rotated.
	TranslogMaxSizeMB int `json:"translogMaxSizeMB" validate:"gte=1"`
}

// Default returns the config used when no file is present.
func Default() *ServerConfig {
	return &ServerConfig{
		AdminAddr:         defaultAdminAddr,
		LogLevel:          defaultLogLevel,
		StatsPath:         defaultStatsPath,
		TranslogMaxSizeMB: defaultLogSizeMB,
	}
}

// NewServerReader opens the config file.
func NewServerReader(configPath string) (*ServerReader, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	return &ServerReader{file}, nil
}

// Close closes the config file.
func (r *ServerReader) Close() error {
	return r.file.Close()
}

// ReadServerConfig decodes the file over the defaults.
func (r *ServerReader) ReadServerConfig() (*ServerConfig, error) {
	configFileByte, err := io.ReadAll(r.file)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = json.Unmarshal(configFileByte, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// Load reads configPath if it exists, applies environment overrides (a .env
// file is loaded first when present) and validates the result.
func Load(configPath string) (*ServerConfig, error) {
	config := Default()

	reader, err := NewServerReader(configPath)
	switch {
	case err == nil:
		config, err = reader.ReadServerConfig()
		_ = reader.Close()
		if err != nil {
			return nil, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	_ = godotenv.Load()
	applyEnv(config)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks field constraints.
func Validate(config *ServerConfig) error {
	return validator.New().Struct(config)
}

func applyEnv(c *ServerConfig) {
	c.AdminAddr = getEnvOrDefault("FILESERV_ADMIN_ADDR", c.AdminAddr)
	c.LogLevel = strings.ToLower(getEnvOrDefault("FILESERV_LOG_LEVEL", c.LogLevel))
	c.StatsPath = getEnvOrDefault("FILESERV_STATS_PATH", c.StatsPath)
	c.AdminSecret = getEnvOrDefault("FILESERV_ADMIN_SECRET", c.AdminSecret)
	c.SanitizePaths = getEnvBoolOrDefault("FILESERV_SANITIZE_PATHS", c.SanitizePaths)
	c.TranslogMaxSizeMB = getEnvIntOrDefault("FILESERV_TRANSLOG_MAX_SIZE_MB", c.TranslogMaxSizeMB)
}

// Empty values count as unset, so an override cannot blank a field.
func getEnvOrDefault(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
