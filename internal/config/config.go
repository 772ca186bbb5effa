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

type GlobalFlags struct {
	ConfigPath      string
	EnvFile         string
	JSON            bool
	Plain           bool
	Select          string
	ResultsOnly     bool
	EnableCommands  string
	Timeout         string
	Retries         int
	DefaultProvider string
	Project         string
	LogLevel        string
	LogFormat       string
}

type Settings struct {
	OutputMode      string
	SelectFields    []string
	ResultsOnly     bool
	EnableCommands  []string
	Timeout         time.Duration
	Retries         int
	DefaultProvider string
	DefaultProject  string
	LogLevel        string
	LogFormat       string
	OtelEndpoint    string
	ServerAddr      string
	RateLimit       float64
	RateBurst       int

	OneInchAPIKey     string
	ZeroXAPIKey       string
	KyberSwapClientID string
	LiFiAPIKey        string
	SocketAPIKey      string
}

type providerKey struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
}

func (p providerKey) resolve(current string) string {
	if p.APIKey != "" {
		current = p.APIKey
	}
	if p.APIKeyEnv != "" {
		current = os.Getenv(p.APIKeyEnv)
	}
	return current
}

type fileConfig struct {
	Output          string `yaml:"output"`
	Timeout         string `yaml:"timeout"`
	Retries         *int   `yaml:"retries"`
	DefaultProvider string `yaml:"default_provider"`
	Project         string `yaml:"project"`
	Log             struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Telemetry struct {
		OtlpEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"telemetry"`
	Server struct {
		Addr      string   `yaml:"addr"`
		RateLimit *float64 `yaml:"rate_limit"`
		RateBurst *int     `yaml:"rate_burst"`
	} `yaml:"server"`
	Providers struct {
		OneInch   providerKey `yaml:"oneinch"`
		ZeroX     providerKey `yaml:"zerox"`
		KyberSwap providerKey `yaml:"kyberswap"`
		LiFi      providerKey `yaml:"lifi"`
		Socket    providerKey `yaml:"socket"`
	} `yaml:"providers"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings := defaultSettings()

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}
	if err := loadDotenv(flags.EnvFile); err != nil {
		return Settings{}, err
	}
	applyEnv(&settings)
	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.RateLimit <= 0 {
		settings.RateLimit = 10
	}
	if settings.RateBurst <= 0 {
		settings.RateBurst = 20
	}
	return settings, nil
}

func defaultSettings() Settings {
	return Settings{
		OutputMode:      "json",
		Timeout:         10 * time.Second,
		Retries:         0,
		DefaultProvider: "LIFI",
		DefaultProject:  "swapper",
		LogLevel:        "warn",
		LogFormat:       "text",
		ServerAddr:      "127.0.0.1:8080",
		RateLimit:       10,
		RateBurst:       20,
	}
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "swapper", "config.yaml"), nil
}

// loadDotenv reads an explicit env file, or .env in the working directory when
// present. Variables already set in the environment are never overridden.
func loadDotenv(path string) error {
	if strings.TrimSpace(path) != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.DefaultProvider != "" {
		settings.DefaultProvider = cfg.DefaultProvider
	}
	if cfg.Project != "" {
		settings.DefaultProject = cfg.Project
	}
	if cfg.Log.Level != "" {
		settings.LogLevel = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		settings.LogFormat = cfg.Log.Format
	}
	if cfg.Telemetry.OtlpEndpoint != "" {
		settings.OtelEndpoint = cfg.Telemetry.OtlpEndpoint
	}
	if cfg.Server.Addr != "" {
		settings.ServerAddr = cfg.Server.Addr
	}
	if cfg.Server.RateLimit != nil {
		settings.RateLimit = *cfg.Server.RateLimit
	}
	if cfg.Server.RateBurst != nil {
		settings.RateBurst = *cfg.Server.RateBurst
	}

	settings.OneInchAPIKey = cfg.Providers.OneInch.resolve(settings.OneInchAPIKey)
	settings.ZeroXAPIKey = cfg.Providers.ZeroX.resolve(settings.ZeroXAPIKey)
	settings.KyberSwapClientID = cfg.Providers.KyberSwap.resolve(settings.KyberSwapClientID)
	settings.LiFiAPIKey = cfg.Providers.LiFi.resolve(settings.LiFiAPIKey)
	settings.SocketAPIKey = cfg.Providers.Socket.resolve(settings.SocketAPIKey)
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("SWAPPER_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("SWAPPER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("SWAPPER_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("SWAPPER_DEFAULT_PROVIDER"); v != "" {
		settings.DefaultProvider = v
	}
	if v := os.Getenv("SWAPPER_PROJECT"); v != "" {
		settings.DefaultProject = v
	}
	if v := os.Getenv("SWAPPER_LOG_LEVEL"); v != "" {
		settings.LogLevel = v
	}
	if v := os.Getenv("SWAPPER_LOG_FORMAT"); v != "" {
		settings.LogFormat = v
	}
	if v := os.Getenv("SWAPPER_OTLP_ENDPOINT"); v != "" {
		settings.OtelEndpoint = v
	}
	if v := os.Getenv("SWAPPER_SERVER_ADDR"); v != "" {
		settings.ServerAddr = v
	}
	if v := os.Getenv("SWAPPER_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.RateLimit = f
		}
	}
	if v := os.Getenv("SWAPPER_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.RateBurst = n
		}
	}
	if v := os.Getenv("SWAPPER_ONE_INCH_API_KEY"); v != "" {
		settings.OneInchAPIKey = v
	}
	if v := os.Getenv("SWAPPER_ZERO_X_API_KEY"); v != "" {
		settings.ZeroXAPIKey = v
	}
	if v := os.Getenv("SWAPPER_KYBERSWAP_CLIENT_ID"); v != "" {
		settings.KyberSwapClientID = v
	}
	if v := os.Getenv("SWAPPER_LIFI_API_KEY"); v != "" {
		settings.LiFiAPIKey = v
	}
	if v := os.Getenv("SWAPPER_SOCKET_API_KEY"); v != "" {
		settings.SocketAPIKey = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitList(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly
	if allowed := splitList(flags.EnableCommands); len(allowed) > 0 {
		settings.EnableCommands = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if v := strings.TrimSpace(flags.DefaultProvider); v != "" {
		settings.DefaultProvider = v
	}
	if v := strings.TrimSpace(flags.Project); v != "" {
		settings.DefaultProject = v
	}
	if v := strings.TrimSpace(flags.LogLevel); v != "" {
		settings.LogLevel = v
	}
	if v := strings.TrimSpace(flags.LogFormat); v != "" {
		settings.LogFormat = v
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
