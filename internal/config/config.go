package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Admin    AdminConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	CORSOrigins string
	BodyLimit   int // bytes
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	LogSQL       bool
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type StorageConfig struct {
	SupabaseURL string
	ServiceKey  string
	Bucket      string
}

// AdminConfig bootstraps the single admin account at start-up.
type AdminConfig struct {
	Email    string
	Password string
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	viper.AutomaticEnv()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		viper.SetConfigFile(p)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", p, err)
		}
	}

	viper.SetDefault("PORT", "3000")
	viper.SetDefault("APP_ENV", "dev")
	viper.SetDefault("CORS_ORIGINS", "*")
	viper.SetDefault("BODY_LIMIT_MB", 64)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 20)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("JWT_TTL", "168h")
	viper.SetDefault("SUPABASE_BUCKET", "projects")
	viper.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("PORT"),
			Environment: viper.GetString("APP_ENV"),
			CORSOrigins: viper.GetString("CORS_ORIGINS"),
			BodyLimit:   viper.GetInt("BODY_LIMIT_MB") * 1024 * 1024,
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("DATABASE_URL"),
			MaxOpenConns: viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: viper.GetInt("DB_MAX_IDLE_CONNS"),
			LogSQL:       viper.GetBool("DB_LOG_SQL"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
			TTL:    viper.GetDuration("JWT_TTL"),
		},
		Storage: StorageConfig{
			SupabaseURL: viper.GetString("SUPABASE_URL"),
			ServiceKey:  viper.GetString("SUPABASE_SERVICE_KEY"),
			Bucket:      viper.GetString("SUPABASE_BUCKET"),
		},
		Admin: AdminConfig{
			Email:    viper.GetString("ADMIN_EMAIL"),
			Password: viper.GetString("ADMIN_PASSWORD"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.Storage.SupabaseURL == "" || c.Storage.ServiceKey == "" {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// IsDevelopment reports whether human-friendly logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "dev" || c.Server.Environment == "development"
}
