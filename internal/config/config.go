package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env            string `yaml:"env" env-default:"local"`
	StoragePath    string `yaml:"storage_path" env-required:"true"`
	RedisAddr      string `yaml:"redis_addr" env-default:"localhost:6379"`
	StripeKey      string `yaml:"stripe_key" env:"STRIPE_KEY" env-required:"true"`
	ProgramEndDate string `yaml:"program_end_date" env-default:"2025-07-31"`
	HTTPServer     `yaml:"http_server"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

func MustLoad() *Config {
	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file does not exist: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	return &cfg
}

// ProgramEnd parses the fixed recurring-series boundary.
func (c *Config) ProgramEnd() (time.Time, error) {
	return time.ParseInLocation("2006-01-02", c.ProgramEndDate, time.Local)
}
