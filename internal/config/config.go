package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"log"
)

type Config struct {
	Redis Redis
	Tasks Tasks
}

type Redis struct {
	Addr         string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Username     string `env:"REDIS_USER"`
	Password     string `env:"REDIS_PASSWORD"`
	DB           int    `env:"REDIS_DB"`
	StreamKey    string `env:"REDIS_STREAM_KEY" envDefault:"taskstream:queue"`
	Group        string `env:"REDIS_GROUP" envDefault:"taskstream-workers"`
	RetryZSet    string `env:"REDIS_RETRY_ZSET" envDefault:"taskstream:retry"`
	DLQStreamKey string `env:"REDIS_DLQ_STREAM_KEY" envDefault:"taskstream:dlq"`
}

type Tasks struct {
	ReplicateToken string `env:"REPLICATE_API_TOKEN"`
	ImageModel     string `env:"IMAGE_MODEL" envDefault:"qwen/qwen-image"`
	LogoURL        string `env:"LOGO_URL"`
	AssetDir       string `env:"ASSET_DIR" envDefault:"./assets"`
	AssetBaseURL   string `env:"ASSET_BASE_URL" envDefault:"http://localhost:8080/assets"`
}

func Load() *Config {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}

	return &c
}
