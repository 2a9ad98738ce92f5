package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ergochat/irc-go/ircutils"
	"gopkg.in/yaml.v3"
)

// Identity field limits; longer values are cut when the config is loaded
const (
	MaxNickLen     = 31
	MaxUserLen     = 15
	MaxRealNameLen = 127
)

// Config holds all bot configuration
type Config struct {
	Nick       string `yaml:"nick"`
	Alternate  string `yaml:"alternate"`
	Username   string `yaml:"username"`
	RealName   string `yaml:"realname"`
	Server     string `yaml:"server"`
	Port       int    `yaml:"port"`
	ServerPass string `yaml:"server_pass"`
	Bind       string `yaml:"bind"`
	Proxy      string `yaml:"proxy"`

	Channels []string `yaml:"channels"`
	Modules  []string `yaml:"modules"`
	Trigger  string   `yaml:"trigger"`

	DataDir   string `yaml:"data_dir"`
	UsersFile string `yaml:"users_file"`
	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`
	Charset   string `yaml:"charset"`

	Retries        int           `yaml:"retries"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	MaxReconnect   time.Duration `yaml:"max_reconnect_delay"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	Inactivity     time.Duration `yaml:"inactivity"`
	QuitMessage    string        `yaml:"quit_message"`

	FloodRate  float64 `yaml:"flood_rate"`
	FloodBurst int     `yaml:"flood_burst"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML, fills in defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every unset field
func (cfg *Config) SetDefaults() {
	if cfg.Port == 0 {
		cfg.Port = 6667
	}
	if cfg.RealName == "" {
		cfg.RealName = cfg.Nick
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.UsersFile == "" {
		cfg.UsersFile = "users.txt"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Charset == "" {
		cfg.Charset = "windows-1252"
	}
	if cfg.Retries == 0 {
		cfg.Retries = 5
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.MaxReconnect == 0 {
		cfg.MaxReconnect = 2 * time.Minute
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 250 * time.Millisecond
	}
	if cfg.Inactivity == 0 {
		cfg.Inactivity = 300 * time.Second
	}
	if cfg.QuitMessage == "" {
		cfg.QuitMessage = "Shutting down"
	}
	if cfg.FloodRate == 0 {
		cfg.FloodRate = 2
	}
	if cfg.FloodBurst == 0 {
		cfg.FloodBurst = 8
	}

	cfg.Nick = ircutils.TruncateUTF8Safe(cfg.Nick, MaxNickLen)
	cfg.Alternate = ircutils.TruncateUTF8Safe(cfg.Alternate, MaxNickLen)
	cfg.Username = ircutils.TruncateUTF8Safe(cfg.Username, MaxUserLen)
	cfg.RealName = ircutils.TruncateUTF8Safe(cfg.RealName, MaxRealNameLen)
}

// Validate checks the fields a session cannot run without
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Nick == "" {
		errs = append(errs, errors.New("nick must be set"))
	}
	if cfg.Username == "" {
		errs = append(errs, errors.New("username must be set"))
	}
	if cfg.Server == "" {
		errs = append(errs, errors.New("server must be set"))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", cfg.Port))
	}
	if cfg.Retries < 0 {
		errs = append(errs, errors.New("retries must not be negative"))
	}
	return errors.Join(errs...)
}
