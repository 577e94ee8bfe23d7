// config описывает конфигурацию blog-api и её загрузку из YAML-файла
// и переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config — корневая конфигурация.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. только переменные окружения.
//
// Переменные окружения всегда накладываются поверх YAML.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	CORS      CORSConfig      `yaml:"cors"`
	Auth      AuthConfig      `yaml:"auth"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	Comments  CommentsConfig  `yaml:"comments"`
	S3        S3Config        `yaml:"s3"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Limits    LimitsConfig    `yaml:"limits"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// HTTPConfig — параметры HTTP-сервера.
type HTTPConfig struct {
	Host              string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port              string        `yaml:"port" env:"PORT" env-default:"4000"`
	BasePath          string        `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api/v1"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	// BodyLimit — максимальный размер JSON-тела запроса в байтах.
	BodyLimit int64 `yaml:"body_limit" env:"HTTP_BODY_LIMIT" env-default:"1048576"`
	// TrustProxy — брать адрес клиента из X-Forwarded-For (только за доверенным прокси).
	TrustProxy bool `yaml:"trust_proxy" env:"HTTP_TRUST_PROXY" env-default:"false"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

type CORSConfig struct {
	Origins []string `yaml:"origins" env:"CORS_ORIGIN" env-default:"http://localhost:3000" env-separator:","`
}

// AuthConfig — параметры выпуска и проверки токенов.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	// RefreshSecret — ключ HMAC, которым хэшируются refresh-токены перед сохранением.
	RefreshSecret   string        `yaml:"jwt_refresh_secret" env:"JWT_REFRESH_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"JWT_EXPIRES_IN" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"JWT_REFRESH_EXPIRES_IN" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"go-blog"`
	Audience        []string      `yaml:"audience" env:"JWT_AUDIENCE" env-default:"go-blog-web" env-separator:","`
	// AdminEmails — адреса, которые при регистрации получают роль ADMIN.
	AdminEmails []string `yaml:"admin_emails" env:"ADMIN_EMAILS" env-separator:","`
}

type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
	// Migrate — применять встроенные миграции при старте.
	// Из-за env-default отключается только через DB_MIGRATE=false.
	Migrate bool `yaml:"migrate" env:"DB_MIGRATE" env-default:"true"`
}

// RedisConfig — пустой URL отключает Redis: лимитер работает в памяти,
// refresh-токены проверяются только по БД.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// CommentsConfig выбирает хранилище комментариев: postgres или mongo.
type CommentsConfig struct {
	Backend  string `yaml:"backend" env:"COMMENTS_BACKEND" env-default:"postgres"`
	MongoURL string `yaml:"mongo_url" env:"MONGO_URL"`
}

// S3Config — объектное хранилище для обложек и аватаров.
// Пустой Endpoint отключает загрузку медиа.
type S3Config struct {
	Endpoint            string        `yaml:"endpoint" env:"S3_ENDPOINT"`
	RootUser            string        `yaml:"root_user" env:"S3_ROOT_USER"`
	RootPassword        string        `yaml:"root_password" env:"S3_ROOT_PASSWORD"`
	Bucket              string        `yaml:"bucket" env:"S3_BUCKET" env-default:"media"`
	PublicBaseURL       string        `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
	PresignTTL          time.Duration `yaml:"presign_ttl" env:"S3_PRESIGN_TTL" env-default:"15m"`
	MaxSizeBytes        int64         `yaml:"max_size_bytes" env:"S3_MAX_SIZE_BYTES" env-default:"5242880"`
	AllowedContentTypes []string      `yaml:"allowed_content_types" env:"S3_ALLOWED_CONTENT_TYPES" env-default:"image/jpeg,image/png,image/webp" env-separator:","`
}

// Enabled сообщает, сконфигурировано ли хранилище.
func (s S3Config) Enabled() bool { return s.Endpoint != "" }

// RateLimitConfig — ярусы ограничения частоты; запрос проходит,
// только если его пропускают все ярусы.
type RateLimitConfig struct {
	Backend string       `yaml:"backend" env:"RATE_LIMIT_BACKEND" env-default:"memory"`
	Tiers   []TierConfig `yaml:"tiers"`
}

type TierConfig struct {
	Name   string        `yaml:"name"`
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// DefaultTiers — short/medium/long.
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{Name: "short", Limit: 10, Window: time.Second},
		{Name: "medium", Limit: 50, Window: 10 * time.Second},
		{Name: "long", Limit: 100, Window: time.Minute},
	}
}

// LimitsConfig — размеры страниц списков.
type LimitsConfig struct {
	Default int `yaml:"default" env:"LIMIT_DEFAULT" env-default:"10"`
	Max     int `yaml:"max" env:"LIMIT_MAX" env-default:"100"`
}

type TimeoutConfig struct {
	Request  time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"30s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

const minSecretLen = 32

// Validate проверяет согласованность значений после загрузки.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("env: unknown value %q", c.Env))
	}

	if p, err := strconv.Atoi(c.HTTP.Port); err != nil || p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("http.port: %q is not a valid port", c.HTTP.Port))
	}

	if c.HTTP.BodyLimit <= 0 {
		errs = append(errs, errors.New("http.body_limit: must be positive"))
	}

	if len(c.Auth.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("auth.jwt_secret: must be at least %d characters", minSecretLen))
	}

	if len(c.Auth.RefreshSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("auth.jwt_refresh_secret: must be at least %d characters", minSecretLen))
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("auth: token ttl must be positive"))
	}

	if strings.TrimSpace(c.DB.DatabaseURL) == "" {
		errs = append(errs, errors.New("db.db_url: required"))
	}

	switch c.Comments.Backend {
	case "postgres":
	case "mongo":
		if c.Comments.MongoURL == "" {
			errs = append(errs, errors.New("comments.mongo_url: required for mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("comments.backend: unknown value %q", c.Comments.Backend))
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.RedisURL == "" {
			errs = append(errs, errors.New("rate_limit.backend: redis requires redis.redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("rate_limit.backend: unknown value %q", c.RateLimit.Backend))
	}

	for i, t := range c.RateLimit.Tiers {
		if t.Limit <= 0 || t.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.tiers[%d]: limit and window must be positive", i))
		}
	}

	if c.S3.Enabled() {
		if c.S3.Bucket == "" || c.S3.RootUser == "" || c.S3.RootPassword == "" {
			errs = append(errs, errors.New("s3: bucket and credentials are required when endpoint is set"))
		}

		if c.S3.MaxSizeBytes <= 0 || c.S3.PresignTTL <= 0 {
			errs = append(errs, errors.New("s3: max_size_bytes and presign_ttl must be positive"))
		}
	}

	if c.Limits.Default < 1 || c.Limits.Max < c.Limits.Default {
		errs = append(errs, errors.New("limits: expected 1 <= default <= max"))
	}

	if c.Timeouts.Request <= 0 || c.Timeouts.Shutdown <= 0 {
		errs = append(errs, errors.New("timeouts: must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	if len(c.RateLimit.Tiers) == 0 {
		c.RateLimit.Tiers = DefaultTiers()
	}
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает и валидирует конфигурацию.
func Load(path string) (*Config, error) {
	var cfg Config

	file, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	if file != "" {
		if err := cleanenv.ReadConfig(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", file, err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// resolvePath выбирает файл по приоритету; пустая строка — читать только ENV.
func resolvePath(path string) (string, error) {
	explicit := path
	if explicit == "" {
		explicit = os.Getenv("CONFIG_PATH")
	}

	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %q: %w", explicit, err)
		}

		return explicit, nil
	}

	if _, err := os.Stat("local.yaml"); err == nil {
		return "local.yaml", nil
	}

	return "", nil
}
