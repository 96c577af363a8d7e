package config

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"strconv"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	AppName       string `json:"app_name"`
	ListenIP      string `json:"listen_ip"`
	ListenPort    int    `json:"listen_port"`
	SessionKey    string `json:"session_key"`
	SecureCookies bool   `json:"secure_cookies"`

	DatabaseDriver string `json:"database_driver"`
	DatabaseDSN    string `json:"database_dsn"`
	SQLEcho        bool   `json:"sql_echo"`

	PasswordHasher string `json:"password_hasher"`
	BcryptCost     int    `json:"bcrypt_cost"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	CaptchaEnabled bool `json:"captcha_enabled"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

var AppConfig Config

const placeholderKey = "CHANGE_ME_IN_PRODUCTION"

func LoadConfig(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}

	// .env is optional; variables already present in the environment win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithFields(log.Fields{"error": err}).Warn("could not read .env file")
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.SessionKey == "" || cfg.SessionKey == placeholderKey {
		log.Warn("No session key configured. Generating a random key. Sessions will be invalidated on restart.")
		cfg.SessionKey = hex.EncodeToString(securecookie.GenerateRandomKey(32))
	}

	AppConfig = cfg
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FEEDBACK_SESSION_KEY"); v != "" {
		cfg.SessionKey = v
	}
	if v := os.Getenv("FEEDBACK_DATABASE_DRIVER"); v != "" {
		cfg.DatabaseDriver = v
	}
	if v := os.Getenv("FEEDBACK_DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("FEEDBACK_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("FEEDBACK_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("FEEDBACK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FEEDBACK_LISTEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.ListenPort = port
		} else {
			log.WithFields(log.Fields{"value": v}).Warn("ignoring invalid FEEDBACK_LISTEN_PORT")
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.AppName == "" {
		cfg.AppName = "Feedback"
	}
	if cfg.ListenIP == "" {
		cfg.ListenIP = "127.0.0.1"
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = 8080
	}
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "sqlite"
	}
	if cfg.DatabaseDSN == "" && cfg.DatabaseDriver == "sqlite" {
		cfg.DatabaseDSN = "feedback.db"
	}
	if cfg.PasswordHasher == "" {
		cfg.PasswordHasher = "bcrypt"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

// Validate reports the first unsupported setting.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unsupported database_driver %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.Wrap(ErrInvalidConfig, "database_dsn is required")
	}
	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unsupported password_hasher %q", c.PasswordHasher)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unsupported log_format %q", c.LogFormat)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log_level: %v", err)
	}
	return nil
}

// ConfigureLogging applies the log level and formatter to the standard logrus logger.
func ConfigureLogging(cfg Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
