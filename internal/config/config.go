package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Auth struct {
		// JWTSecret verifies bearer tokens; requests stay anonymous when empty.
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Bank struct {
		TTL string `yaml:"ttl"`
	} `yaml:"bank"`
	Exam struct {
		TickInterval  string `yaml:"tick_interval"`
		IdleTTL       string `yaml:"idle_ttl"`
		JanitorEvery  string `yaml:"janitor_every"`
		HandoffTTL    string `yaml:"handoff_ttl"`
		MistakeWindow int    `yaml:"mistake_window"`
	} `yaml:"exam"`
	AI struct {
		// Provider is "anthropic" or "mock"; empty disables the AI fallback.
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		APIKey      string  `yaml:"api_key"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"ai"`
	Harvest struct {
		AMQPURL  string `yaml:"amqp_url"`
		Exchange string `yaml:"exchange"`
		Queue    string `yaml:"queue"`
	} `yaml:"harvest"`
	Battle struct {
		PerQuestionSeconds int `yaml:"per_question_seconds"`
	} `yaml:"battle"`
}

// Load reads YAML config from path and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets secrets and deployment endpoints stay out of the YAML file.
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.AI.APIKey, "ANTHROPIC_API_KEY")
	override(&c.AI.Model, "ANTHROPIC_MODEL")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Postgres.URL, "DATABASE_URL")
	override(&c.Harvest.AMQPURL, "AMQP_URL")
	if v, err := strconv.ParseBool(os.Getenv("MOCK_GENERATOR")); err == nil && v {
		c.AI.Provider = "mock"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
