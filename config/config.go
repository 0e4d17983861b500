package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Paystack     PaystackConfig     `mapstructure:"paystack"`
	Mailjet      MailjetConfig      `mapstructure:"mailjet"`
	API          APIConfig          `mapstructure:"api"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Frontend     FrontendConfig     `mapstructure:"frontend"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

type PaystackConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
	// CallbackURL receives the browser redirect after payment. The chat id
	// is appended so the confirmation can be routed back into the chat.
	CallbackURL string `mapstructure:"callback_url"`
	// VerifySignature toggles X-Paystack-Signature checking on the webhook.
	VerifySignature bool `mapstructure:"verify_signature"`
}

type MailjetConfig struct {
	APIKeyPublic  string `mapstructure:"api_key_public"`
	APIKeyPrivate string `mapstructure:"api_key_private"`
	SenderEmail   string `mapstructure:"sender_email"`
	SenderName    string `mapstructure:"sender_name"`
	TemplateID    int    `mapstructure:"template_id"`
}

type APIConfig struct {
	// JWTSecret is shared with the profile web service that calls the
	// internal token endpoints.
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
	JWTIssuer string        `mapstructure:"jwt_issuer"`
}

type ConversationConfig struct {
	// TTL bounds how long an abandoned expectation slot survives.
	TTL time.Duration `mapstructure:"ttl"`
}

type FrontendConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	ProfileURL string `mapstructure:"profile_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: TWB_.
// Nested keys use underscore: TWB_DATABASE_HOST, TWB_PAYSTACK_SECRET_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_bridge")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("paystack.secret_key", "")
	v.SetDefault("paystack.base_url", "https://api.paystack.co")
	v.SetDefault("paystack.callback_url", "")
	v.SetDefault("paystack.verify_signature", true)
	v.SetDefault("mailjet.api_key_public", "")
	v.SetDefault("mailjet.api_key_private", "")
	v.SetDefault("mailjet.sender_email", "")
	v.SetDefault("mailjet.sender_name", "")
	v.SetDefault("mailjet.template_id", 0)
	v.SetDefault("api.jwt_secret", "")
	v.SetDefault("api.jwt_expiry", "24h")
	v.SetDefault("api.jwt_issuer", "telegram-wallet-bridge")
	v.SetDefault("conversation.ttl", "10m")
	v.SetDefault("frontend.base_url", "")
	v.SetDefault("frontend.profile_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: TWB_DATABASE_HOST -> database.host
	v.SetEnvPrefix("TWB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
