// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	YooKassa  YooKassaConfig  `koanf:"yookassa"`
	Notes     NotesConfig     `koanf:"notes"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Log       LogConfig       `koanf:"log"`
	Audit     AuditConfig     `koanf:"audit"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type TelegramConfig struct {
	Token       string        `koanf:"token"`
	WebhookURL  string        `koanf:"webhook_url"`
	WebhookPath string        `koanf:"webhook_path"`
	PollTimeout int           `koanf:"poll_timeout"`
	SendTimeout time.Duration `koanf:"send_timeout"`
	Workers     int           `koanf:"workers"`
	QueueDepth  int           `koanf:"queue_depth"`
}

type YooKassaConfig struct {
	ShopID              string        `koanf:"shop_id"`
	SecretKey           string        `koanf:"secret_key"`
	APIURL              string        `koanf:"api_url"`
	WebhookPath         string        `koanf:"webhook_path"`
	ReturnURL           string        `koanf:"return_url"`
	Timeout             time.Duration `koanf:"timeout"`
	VerifyNotifications bool          `koanf:"verify_notifications"`
}

type NotesConfig struct {
	MinDonation        float64       `koanf:"min_donation"`
	MaxDonation        float64       `koanf:"max_donation"`
	MaxNames           int           `koanf:"max_names"`
	PaymentDescription string        `koanf:"payment_description"`
	Currency           string        `koanf:"currency"`
	FlowTTL            time.Duration `koanf:"flow_ttl"`
	PendingTTL         time.Duration `koanf:"pending_ttl"`
	SweepInterval      time.Duration `koanf:"sweep_interval"`
	Timezone           string        `koanf:"timezone"`
}

type JWTConfig struct {
	PrivateKeyPath    string        `koanf:"private_key_path"`
	PublicKeyPath     string        `koanf:"public_key_path"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type AuditConfig struct {
	Path string `koanf:"path"`
	Salt string `koanf:"salt"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.YooKassa.ReturnURL == "" && c.Telegram.WebhookURL != "" {
		c.YooKassa.ReturnURL = strings.TrimRight(c.Telegram.WebhookURL, "/") + "/payment-success"
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "notesbot",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8000,
		"server.read_timeout":     "15s",
		"server.write_timeout":    "15s",
		"server.idle_timeout":     "60s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     10,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 2,

		"telegram.webhook_path": "/webhook",
		"telegram.poll_timeout": 60,
		"telegram.send_timeout": "10s",
		"telegram.workers":      8,
		"telegram.queue_depth":  64,

		"yookassa.api_url":              "https://api.yookassa.ru/v3",
		"yookassa.webhook_path":         "/yookassa-webhook",
		"yookassa.timeout":              "10s",
		"yookassa.verify_notifications": false,

		"notes.min_donation":        100.0,
		"notes.max_donation":        1000000.0,
		"notes.max_names":           10,
		"notes.payment_description": "Пожертвование",
		"notes.currency":            "RUB",
		"notes.flow_ttl":            "30m",
		"notes.pending_ttl":         "72h",
		"notes.sweep_interval":      "1h",
		"notes.timezone":            "Europe/Moscow",

		"jwt.access_token_expire": "1h",
		"jwt.issuer":              "notesbot",
		"jwt.audience":            "notesbot-operators",
		"jwt.private_key_path":    "keys/private.pem",
		"jwt.public_key_path":     "keys/public.pem",

		"rate_limit.requests": 300,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    50,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "notesbot",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"TELEGRAM_BOT_TOKEN":          "telegram.token",
	"TELEGRAM_WEBHOOK_URL":        "telegram.webhook_url",
	"TELEGRAM_WEBHOOK_PATH":       "telegram.webhook_path",
	"YOOKASSA_SHOP_ID":            "yookassa.shop_id",
	"YOOKASSA_SECRET_KEY":         "yookassa.secret_key",
	"YOOKASSA_API_URL":            "yookassa.api_url",
	"YOOKASSA_WEBHOOK_PATH":       "yookassa.webhook_path",
	"YOOKASSA_VERIFY":             "yookassa.verify_notifications",
	"PAYMENT_RETURN_URL":          "yookassa.return_url",
	"MIN_DONATION_AMOUNT":         "notes.min_donation",
	"MAX_DONATION_AMOUNT":         "notes.max_donation",
	"MAX_NAMES_PER_NOTE":          "notes.max_names",
	"PAYMENT_DESCRIPTION":         "notes.payment_description",
	"PAYMENT_CURRENCY":            "notes.currency",
	"FLOW_TTL":                    "notes.flow_ttl",
	"PENDING_NOTE_TTL":            "notes.pending_ttl",
	"PENDING_SWEEP_INTERVAL":      "notes.sweep_interval",
	"TIMEZONE":                    "notes.timezone",
	"TELEGRAM_WORKERS":            "telegram.workers",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"AUDIT_PATH":                  "audit.path",
	"AUDIT_SALT":                  "audit.salt",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Notes.MinDonation <= 0 {
		return fmt.Errorf("MIN_DONATION_AMOUNT must be positive")
	}

	if c.Notes.MaxDonation < c.Notes.MinDonation {
		return fmt.Errorf("MAX_DONATION_AMOUNT must not be below MIN_DONATION_AMOUNT")
	}

	if c.Notes.MaxNames < 1 {
		return fmt.Errorf("MAX_NAMES_PER_NOTE must be at least 1")
	}

	if c.Notes.FlowTTL <= 0 {
		return fmt.Errorf("FLOW_TTL must be positive")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if c.Audit.Salt == "" {
			return fmt.Errorf("AUDIT_SALT is required in production")
		}
	}

	return nil
}

// RequireDatabase checks the settings every command touching Postgres needs.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// ValidateServe checks the settings only the long-running bot process needs.
func (c *Config) ValidateServe() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}

	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.YooKassa.ShopID == "" {
		return fmt.Errorf("YOOKASSA_SHOP_ID is required")
	}

	if c.YooKassa.SecretKey == "" {
		return fmt.Errorf("YOOKASSA_SECRET_KEY is required")
	}

	if c.YooKassa.ReturnURL == "" {
		return fmt.Errorf("PAYMENT_RETURN_URL or TELEGRAM_WEBHOOK_URL is required")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) UseTelegramWebhook() bool {
	return c.Telegram.WebhookURL != ""
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
