package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the server configuration file.
type Config struct {
	ListenAddr     string   `toml:"listen_addr"`
	DataDir        string   `toml:"data_dir"`
	JWTSecret      string   `toml:"jwt_secret"`
	TokenTTLHours  int      `toml:"token_ttl_hours"`
	BcryptCost     int      `toml:"bcrypt_cost"`
	MessagePage    int      `toml:"message_page_size"`
	SearchLimit    int      `toml:"search_limit"`
	SearchDebounce int      `toml:"search_debounce_ms"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		ListenAddr:     ":8480",
		DataDir:        filepath.Join(home, ".plausch"),
		TokenTTLHours:  24,
		BcryptCost:     10,
		MessagePage:    50,
		SearchLimit:    8,
		SearchDebounce: 250,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".plausch", "config.toml")
}

// Load reads config from the given path, filling any unset fields with
// defaults. Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// DBPath returns the SQLite database path under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "plausch.db")
}

// LogPath returns the server log file path under the data directory.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "logs", "plauschd.log")
}

// TokenTTL returns the session token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// DebounceDelay returns the profile-search debounce delay.
func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.SearchDebounce) * time.Millisecond
}
