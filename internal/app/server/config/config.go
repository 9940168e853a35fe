package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = "../../.env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string
	DB     db
	Server server
	Logger logger
	Auth   auth
	Sync   sync
	S3     s3
}

type db struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type server struct {
	RunAddress string `env:"RUN_ADDRESS"`
}

type logger struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type auth struct {
	// TokenHash bcrypt хеш токена доступа; пустой отключает проверку
	TokenHash string `env:"API_TOKEN_HASH"`
}

type sync struct {
	PageSize    int `env:"PAGE_SIZE" envDefault:"200"`
	MaxPageSize int `env:"MAX_PAGE_SIZE" envDefault:"1000"`
}

type s3 struct {
	Bucket    string `env:"S3_BUCKET"`
	Region    string `env:"S3_REGION"`
	Endpoint  string `env:"S3_ENDPOINT"`
	PathStyle bool   `env:"S3_PATH_STYLE"`
}

// Enabled сообщает, настроено ли хранилище вложений
func (s s3) Enabled() bool {
	return s.Bucket != ""
}

// Load читает конфигурацию сервера из .env и переменных окружения
func Load() (*Config, error) {
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("migrations_path", "migrations")
	v.SetDefault("page_size", 200)
	v.SetDefault("max_page_size", 1000)
	v.SetDefault("s3_region", "eu-central-1")

	config := Config{
		Env: v.GetString("app_env"),
		DB: db{
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: server{RunAddress: v.GetString("run_address")},
		Logger: logger{LogLevel: v.GetString("log_level")},
		Auth:   auth{TokenHash: v.GetString("api_token_hash")},
		Sync: sync{
			PageSize:    v.GetInt("page_size"),
			MaxPageSize: v.GetInt("max_page_size"),
		},
		S3: s3{
			Bucket:    v.GetString("s3_bucket"),
			Region:    v.GetString("s3_region"),
			Endpoint:  v.GetString("s3_endpoint"),
			PathStyle: v.GetBool("s3_path_style"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// MustLoad как Load, но паникует при ошибке
func MustLoad() *Config {
	config, err := Load()
	if err != nil {
		panic(err)
	}
	return config
}

func (c *Config) validate() error {
	if c.Server.RunAddress == "" {
		return errors.New("RUN_ADDRESS is required")
	}
	if c.Sync.PageSize <= 0 || c.Sync.MaxPageSize < c.Sync.PageSize {
		return fmt.Errorf("invalid page sizes: PAGE_SIZE=%d MAX_PAGE_SIZE=%d", c.Sync.PageSize, c.Sync.MaxPageSize)
	}
	if c.Env == EnvProd && c.Auth.TokenHash == "" {
		return errors.New("API_TOKEN_HASH is required in prod")
	}
	return nil
}
