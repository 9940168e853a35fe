package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	defaultServerAddress = "localhost:8080"
	defaultEnv           = EnvLocal
	defaultConfigDir     = ".praxsync"
)

type Config struct {
	Env            string
	ServerAddress  string
	EnableTLS      bool
	ConfigDir      string
	DataPath       string
	ParamsDir      string
	AttachmentsDir string
	TokenPath      string
	DeviceName     string
	MetricsAddress string

	PullInterval    time.Duration
	ProbeInterval   time.Duration
	PushDebounce    time.Duration
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	PullPageSize    int
	ConflictLogSize int
}

// Load загружает конфигурацию клиента из .env и переменных окружения
func Load() (*Config, error) {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("ошибка загрузки .env файла: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("ENABLE_TLS", false)
	v.SetDefault("CONFIG_DIR", defaultConfigDir)
	v.SetDefault("PULL_INTERVAL_SECONDS", 300)
	v.SetDefault("PROBE_INTERVAL_SECONDS", 30)
	v.SetDefault("PUSH_DEBOUNCE_MS", 2000)
	v.SetDefault("PUSH_RETRY_SECONDS", 10)
	v.SetDefault("PUSH_RETRY_MAX_SECONDS", 300)
	v.SetDefault("PULL_PAGE_SIZE", 200)
	v.SetDefault("CONFLICT_LOG_SIZE", 50)

	configDir := v.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	deviceName := v.GetString("DEVICE_NAME")
	if deviceName == "" {
		deviceName, _ = os.Hostname()
	}

	config := &Config{
		Env:             v.GetString("APP_ENV"),
		ServerAddress:   v.GetString("SERVER_ADDRESS"),
		EnableTLS:       v.GetBool("ENABLE_TLS"),
		ConfigDir:       configDir,
		DataPath:        pathOr(v.GetString("DATA_PATH"), configDir, "sync.db"),
		ParamsDir:       pathOr(v.GetString("PARAMS_DIR"), configDir, "params"),
		AttachmentsDir:  pathOr(v.GetString("ATTACHMENTS_DIR"), configDir, "attachments"),
		TokenPath:       pathOr(v.GetString("TOKEN_PATH"), configDir, "token"),
		DeviceName:      deviceName,
		MetricsAddress:  v.GetString("METRICS_ADDRESS"),
		PullInterval:    time.Duration(v.GetInt("PULL_INTERVAL_SECONDS")) * time.Second,
		ProbeInterval:   time.Duration(v.GetInt("PROBE_INTERVAL_SECONDS")) * time.Second,
		PushDebounce:    time.Duration(v.GetInt("PUSH_DEBOUNCE_MS")) * time.Millisecond,
		RetryBackoff:    time.Duration(v.GetInt("PUSH_RETRY_SECONDS")) * time.Second,
		MaxRetryBackoff: time.Duration(v.GetInt("PUSH_RETRY_MAX_SECONDS")) * time.Second,
		PullPageSize:    v.GetInt("PULL_PAGE_SIZE"),
		ConflictLogSize: v.GetInt("CONFLICT_LOG_SIZE"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}
	return config, nil
}

// MustLoad загружает конфигурацию клиента и паникует при ошибке
func MustLoad() *Config {
	config, err := Load()
	if err != nil {
		panic(err)
	}
	return config
}

func pathOr(value, dir, name string) string {
	if value != "" {
		return value
	}
	return filepath.Join(dir, name)
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return errors.New("server_address не может быть пустым")
	}
	if c.PullInterval <= 0 {
		return errors.New("pull_interval_seconds должен быть положительным")
	}
	if c.ProbeInterval <= 0 {
		return errors.New("probe_interval_seconds должен быть положительным")
	}
	if c.PushDebounce < 0 {
		return errors.New("push_debounce_ms не может быть отрицательным")
	}
	if c.RetryBackoff <= 0 {
		return errors.New("push_retry_seconds должен быть положительным")
	}
	if c.MaxRetryBackoff < c.RetryBackoff {
		return errors.New("push_retry_max_seconds не может быть меньше push_retry_seconds")
	}
	if c.PullPageSize <= 0 {
		return errors.New("pull_page_size должен быть положительным")
	}
	if c.ConflictLogSize <= 0 {
		return errors.New("conflict_log_size должен быть положительным")
	}
	return nil
}

// BaseURL адрес сервера синхронизации со схемой
func (c *Config) BaseURL() string {
	if c.EnableTLS {
		return "https://" + c.ServerAddress
	}
	return "http://" + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == EnvDev
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal || c.Env == ""
}
