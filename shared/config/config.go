package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const fileName = "threadview.yaml"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Database DatabaseConfig `yaml:"database"`
	Expo     ExpoConfig     `yaml:"expo"`
	Email    EmailConfig    `yaml:"email"`
	Sentry   SentryConfig   `yaml:"sentry"`
	PostHog  PostHogConfig  `yaml:"posthog"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	AdminToken   string        `yaml:"admin_token"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	EnableCORS   bool          `yaml:"enable_cors"`
}

type BridgeConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ExpoConfig struct {
	APIURL string `yaml:"api_url"`
	// TokenRef names the secret holding the Expo access token.
	TokenRef string `yaml:"token_ref"`
	// SendsPerSecond bounds outbound push traffic during batch sends.
	SendsPerSecond float64 `yaml:"sends_per_second"`
}

type EmailConfig struct {
	Enabled     bool   `yaml:"enabled"`
	SMTPHost    string `yaml:"smtp_host"`
	SMTPPort    int    `yaml:"smtp_port"`
	FromAddress string `yaml:"from_address"`
	FromName    string `yaml:"from_name"`
	PasswordRef string `yaml:"password_ref"`
	AppURL      string `yaml:"app_url"`
}

type SentryConfig struct {
	DSN string `yaml:"dsn"`
}

type PostHogConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
		},
		Bridge: BridgeConfig{
			Host:              "localhost",
			Port:              7070,
			HeartbeatInterval: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "", // resolved against the XDG data dir when empty
		},
		Expo: ExpoConfig{
			APIURL:         "https://exp.host/--/api/v2/push/send",
			TokenRef:       "expo_access_token",
			SendsPerSecond: 10,
		},
		Email: EmailConfig{
			Enabled:     false,
			SMTPPort:    587,
			FromName:    "Threadview",
			PasswordRef: "smtp_password",
			AppURL:      "https://app.threadview.dev",
		},
	}
}

type Store struct {
	fs *afero.Afero
}

func NewStore(fs *afero.Afero) *Store {
	return &Store{fs: fs}
}

func (s *Store) ConfigDir() (string, error) {
	dir := filepath.Join(xdg.ConfigHome, "threadview")
	if err := s.fs.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

func (s *Store) DataDir() (string, error) {
	dir := filepath.Join(xdg.DataHome, "threadview")
	if err := s.fs.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

func (s *Store) LogDir() (string, error) {
	dir := filepath.Join(xdg.StateHome, "threadview")
	if err := s.fs.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return dir, nil
}

// Load reads the config file, applying defaults for anything unset. A missing
// file is not an error; defaults are returned unchanged.
func (s *Store) Load() (*Config, error) {
	cfg := Default()

	dir, err := s.ConfigDir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, fileName)
	exists, err := s.fs.Exists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return s.applyEnv(cfg)
	}

	content, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fileName, err)
	}

	return s.applyEnv(cfg)
}

func (s *Store) Save(cfg *Config) error {
	dir, err := s.ConfigDir()
	if err != nil {
		return err
	}

	content, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return s.fs.WriteFile(filepath.Join(dir, fileName), content, 0600)
}

func (s *Store) applyEnv(cfg *Config) (*Config, error) {
	if v := os.Getenv("THREADVIEW_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("THREADVIEW_EXPO_API_URL"); v != "" {
		cfg.Expo.APIURL = v
	}
	if v := os.Getenv("THREADVIEW_SENTRY_DSN"); v != "" {
		cfg.Sentry.DSN = v
	}
	if v := os.Getenv("THREADVIEW_POSTHOG_API_KEY"); v != "" {
		cfg.PostHog.APIKey = v
	}

	if cfg.Database.Path == "" {
		dataDir, err := s.DataDir()
		if err != nil {
			return nil, err
		}
		cfg.Database.Path = filepath.Join(dataDir, "threadview.db")
	}

	return cfg, nil
}
