package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config 应用配置：YAML 文件 + 环境变量覆盖
type Config struct {
	Env      string `yaml:"env" env:"APP_ENV" env-default:"local"`
	Server   `yaml:"server"`
	Database `yaml:"database"`
	Store    `yaml:"store"`
	Storage  `yaml:"storage"`
	Auth     `yaml:"auth"`
	Cache    `yaml:"cache"`
	Session  `yaml:"session"`
	Log      `yaml:"log"`
}

type Server struct {
	Address         string        `yaml:"address" env:"SERVER_ADDRESS" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"5s"`
	UploadDir       string        `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"./uploads"`
}

type Database struct {
	DSN string `yaml:"dsn" env:"DB_DSN" env-default:"host=localhost user=postgres password=postgres dbname=agri_market port=5432 sslmode=disable TimeZone=Asia/Shanghai"`
}

// Store 商品数据源："gorm" 为本地数据库，"rest" 为托管后端
type Store struct {
	Driver  string        `yaml:"driver" env:"STORE_DRIVER" env-default:"gorm"`
	BaseURL string        `yaml:"base_url" env:"STORE_BASE_URL"`
	APIKey  string        `yaml:"api_key" env:"STORE_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
	Retries int           `yaml:"retries" env-default:"2"`
}

type Storage struct {
	Provider  string `yaml:"provider" env:"STORAGE_PROVIDER" env-default:"local"`
	Bucket    string `yaml:"bucket" env:"STORAGE_BUCKET"`
	Region    string `yaml:"region" env:"STORAGE_REGION"`
	AccessKey string `yaml:"access_key" env:"STORAGE_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"STORAGE_SECRET_KEY"`
	Endpoint  string `yaml:"endpoint" env:"STORAGE_ENDPOINT"`
	CDNDomain string `yaml:"cdn_domain" env:"STORAGE_CDN_DOMAIN"`
	BasePath  string `yaml:"base_path" env:"STORAGE_BASE_PATH"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"change-me-in-production"`
	AccessTTL time.Duration `yaml:"access_ttl" env-default:"2h"`
	Issuer    string        `yaml:"issuer" env-default:"agri-market"`
}

// Cache 分类缓存，RedisAddr 为空时使用进程内缓存
type Cache struct {
	RedisAddr   string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisDB     int           `yaml:"redis_db" env-default:"0"`
	CategoryTTL time.Duration `yaml:"category_ttl" env-default:"10m"`
}

type Session struct {
	TTL           time.Duration `yaml:"ttl" env-default:"2h"`
	SweepSchedule string        `yaml:"sweep_schedule" env-default:"@every 10m"`
	StartCooldown time.Duration `yaml:"start_cooldown" env-default:"1s"` // 同一用户开启会话的最小间隔
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env-default:"json"` // json | console
}

// Load 读取配置；path 为空时只读环境变量
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad 读取 CONFIG_PATH 指定的配置，失败直接退出
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "gorm":
	case "rest":
		if c.Store.BaseURL == "" {
			return fmt.Errorf("store.base_url is required for rest driver")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	return nil
}
