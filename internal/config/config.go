package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config agrupa toda la configuración del proceso. Se lee de env (y de .env si existe).
type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	DevMode bool   `envconfig:"DEV_MODE" default:"false"`

	Log     LogConfig
	HTTP    HTTPConfig
	Backend BackendConfig
	S3      S3Config
	Redis   RedisConfig
	Cache   CacheConfig

	// Opcional: si viene, las tablas se leen directo de Postgres en vez de vía REST.
	DatabaseDSN string `envconfig:"DB_DSN"`

	LocationsURL string `envconfig:"LOCATIONS_URL" default:"https://servicodados.ibge.gov.br/api/v1/localidades/municipios"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
	App    string `envconfig:"APP_NAME" default:"pet-marketplace"`
}

type HTTPConfig struct {
	ReadTimeout   time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout  time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"10s"`
}

// BackendConfig apunta al backend-as-a-service (REST de tablas, auth y storage).
type BackendConfig struct {
	URL       string `envconfig:"BACKEND_URL"`
	AnonKey   string `envconfig:"BACKEND_ANON_KEY"`
	JWTSecret string `envconfig:"BACKEND_JWT_SECRET"`
}

func (b BackendConfig) Configured() bool {
	return strings.TrimSpace(b.URL) != "" && strings.TrimSpace(b.AnonKey) != ""
}

type S3Config struct {
	Endpoint      string `envconfig:"S3_ENDPOINT"`
	AccessKey     string `envconfig:"S3_ACCESS_KEY"`
	SecretKey     string `envconfig:"S3_SECRET_KEY"`
	UseSSL        bool   `envconfig:"S3_USE_SSL" default:"true"`
	PublicBaseURL string `envconfig:"S3_PUBLIC_URL"`
}

func (s S3Config) Configured() bool {
	return strings.TrimSpace(s.Endpoint) != ""
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type CacheConfig struct {
	StaleTime  time.Duration `envconfig:"CACHE_STALE_TIME" default:"5m"`
	Retry      int           `envconfig:"CACHE_RETRY" default:"1"`
	RetryDelay time.Duration `envconfig:"CACHE_RETRY_DELAY" default:"200ms"`
}

// Load lee .env (si existe) y luego el entorno.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if cfg.Cache.Retry < 0 {
		return Config{}, errors.New("CACHE_RETRY must be >= 0")
	}
	return cfg, nil
}
