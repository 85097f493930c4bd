package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config 应用配置
type Config struct {
	Env       string `validate:"oneof=development production test"`
	AppSecret string `validate:"required,min=16"`
	Port      string `validate:"required,numeric"`

	// TMDB
	TMDBBaseURL      string        `validate:"required,url"`
	TMDBToken        string        `validate:"required"`
	TMDBImageBaseURL string        `validate:"required,url"`
	TMDBTimeout      time.Duration `validate:"gt=0"`

	// 搜索流水线
	DebounceQuiet  time.Duration `validate:"gt=0"`
	TrendingLimit  int           `validate:"min=1,max=50"`
	SessionIdleTTL time.Duration `validate:"gt=0"`

	// 热搜词保留天数，0 表示永久保留
	TermRetentionDays int `validate:"min=0"`

	// 限流，RPS 为 0 表示不限流
	RateLimitRPS   float64 `validate:"min=0"`
	RateLimitBurst int     `validate:"min=0"`

	// 链路追踪，endpoint 为空时不启用
	OTelEndpoint string

	// 存储
	StoreDriver     string `validate:"oneof=postgres mongo redis"`
	DatabaseURL     string `validate:"required_if=StoreDriver postgres"`
	MongoURI        string `validate:"required_if=StoreDriver mongo"`
	MongoDatabase   string `validate:"required_if=StoreDriver mongo"`
	MongoCollection string `validate:"required_if=StoreDriver mongo"`
	RedisAddr       string `validate:"required_if=StoreDriver redis"`
	RedisPassword   string
	RedisDB         int `validate:"min=0"`
}

const defaultSecret = "your-secret-key-change-in-production"

// Load 加载配置
func Load() *Config {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "moviesearch")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	appSecret := getEnv("APP_SECRET", defaultSecret)
	env := getEnv("APP_ENV", "development")
	if env == "production" && appSecret == defaultSecret {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	return &Config{
		Env:       env,
		AppSecret: appSecret,
		Port:      getEnv("PORT", "5005"),

		TMDBBaseURL:      getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBToken:        getEnv("TMDB_TOKEN", ""),
		TMDBImageBaseURL: getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500"),
		TMDBTimeout:      time.Duration(getEnvInt("TMDB_TIMEOUT_SECONDS", 10)) * time.Second,

		DebounceQuiet:  time.Duration(getEnvInt("DEBOUNCE_MS", 600)) * time.Millisecond,
		TrendingLimit:  getEnvInt("TRENDING_LIMIT", 5),
		SessionIdleTTL: time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,

		TermRetentionDays: getEnvInt("TERM_RETENTION_DAYS", 0),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		StoreDriver:     getEnv("STORE_DRIVER", "postgres"),
		DatabaseURL:     dbURL,
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "moviesearch"),
		MongoCollection: getEnv("MONGO_COLLECTION", "search_terms"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
	}
}

// Validate 校验配置是否完整
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return f
}
