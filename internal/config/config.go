package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"events_crm_backend/internal/database"
	"events_crm_backend/pkg/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration.
type Config struct {
	Port                string        `yaml:"port"`
	OrgID               string        `yaml:"org_id"` // organization used when a token carries no org_id claim
	JWTSecret           string        `yaml:"jwt_secret"`
	JWTIssuer           string        `yaml:"jwt_issuer"`
	UploadDir           string        `yaml:"upload_dir"`
	MaxUploadBytes      int64         `yaml:"max_upload_bytes"`
	UploadRatePerMinute int           `yaml:"upload_rate_per_minute"`
	UploadRateBurst     int           `yaml:"upload_rate_burst"`
	CORSAllowedOrigins  []string      `yaml:"cors_allowed_origins"`
	LogLevel            string        `yaml:"log_level"`
	LogFormat           string        `yaml:"log_format"`
	MigrateOnStart      bool          `yaml:"migrate_on_start"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"`

	Database database.Config `yaml:"database"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Port:                "8080",
		JWTIssuer:           "events-crm",
		UploadDir:           "uploads",
		MaxUploadBytes:      5 << 20,
		UploadRatePerMinute: 30,
		UploadRateBurst:     10,
		CORSAllowedOrigins:  []string{"http://localhost:3000", "http://localhost:3001"},
		LogLevel:            "info",
		LogFormat:           "console",
		ShutdownGracePeriod: 10 * time.Second,
		Database: database.Config{
			Host:    "localhost",
			Port:    "5432",
			User:    "events_crm_user",
			Name:    "events_crm_db",
			SSLMode: "disable",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file
// (ENV_FILE, default ".env"), an optional YAML file (CONFIG_FILE) and
// finally the process environment, each layer overriding the previous one.
func Load() (Config, error) {
	envFile := utils.Getenv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
		utils.LogDebug("No env file found", map[string]interface{}{"file": envFile})
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = utils.Getenv("PORT", cfg.Port)
	cfg.OrgID = utils.Getenv("ORG_ID", cfg.OrgID)
	cfg.JWTSecret = utils.Getenv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = utils.Getenv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.UploadDir = utils.Getenv("UPLOAD_DIR", cfg.UploadDir)
	cfg.MaxUploadBytes = utils.GetenvInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.UploadRatePerMinute = utils.GetenvInt("UPLOAD_RATE_PER_MINUTE", cfg.UploadRatePerMinute)
	cfg.UploadRateBurst = utils.GetenvInt("UPLOAD_RATE_BURST", cfg.UploadRateBurst)
	cfg.CORSAllowedOrigins = utils.GetenvList("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.LogLevel = utils.Getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = utils.Getenv("LOG_FORMAT", cfg.LogFormat)
	cfg.MigrateOnStart = utils.GetenvBool("DB_MIGRATE", cfg.MigrateOnStart)
	cfg.ShutdownGracePeriod = utils.GetenvDuration("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)

	cfg.Database.Host = utils.Getenv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = utils.Getenv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = utils.Getenv("DB_USER", cfg.Database.User)
	cfg.Database.Password = utils.Getenv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = utils.Getenv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = utils.Getenv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = utils.GetenvInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = utils.GetenvInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = utils.GetenvDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)
}

// Validate reports every missing or out-of-range setting at once.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.OrgID) == "" {
		problems = append(problems, "ORG_ID is required")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.Port == "" {
		problems = append(problems, "PORT must not be empty")
	}
	if c.UploadDir == "" {
		problems = append(problems, "UPLOAD_DIR must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, "MAX_UPLOAD_BYTES must be positive")
	}
	if c.UploadRatePerMinute <= 0 || c.UploadRateBurst <= 0 {
		problems = append(problems, "UPLOAD_RATE_PER_MINUTE and UPLOAD_RATE_BURST must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
