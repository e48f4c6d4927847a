package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// インベントリのバックエンド
const (
	InventoryMemory = "memory"
	InventoryRedis  = "redis"
)

// 予約履歴のバックエンド
const (
	HistoryFile     = "file"
	HistoryPostgres = "postgres"
	HistoryRedis    = "redis"
)

// Config はアプリケーション設定を表す
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Booking   BookingConfig
	Inventory InventoryConfig
	History   HistoryConfig
	Broker    BrokerConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MetricsUser     string
	MetricsPassword string
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// BookingConfig は予約ルールの設定
type BookingConfig struct {
	PricePerSeat   int
	Rows           int
	Columns        int
	RequireEndTime bool
	StrictSeats    bool
}

// InventoryConfig は座席在庫の設定
type InventoryConfig struct {
	Backend        string
	LockTTL        time.Duration
	LockRetries    int
	LockRetryDelay time.Duration
}

// HistoryConfig は予約履歴の保存設定
type HistoryConfig struct {
	Backend       string
	FilePath      string
	Timeout       time.Duration
	RetryInterval time.Duration
}

// BrokerConfig はメッセージブローカー設定（URLが空なら無効）
type BrokerConfig struct {
	URL   string
	Queue string
}

// Enabled はブローカーが設定されているかを返す
func (c *BrokerConfig) Enabled() bool {
	return c.URL != ""
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			MetricsUser:     getEnv("METRICS_USER", ""),
			MetricsPassword: getEnv("METRICS_PASSWORD", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cinema_booking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Booking: BookingConfig{
			PricePerSeat:   getIntEnv("BOOKING_PRICE_PER_SEAT", 20),
			Rows:           getIntEnv("BOOKING_ROWS", 10),
			Columns:        getIntEnv("BOOKING_COLUMNS", 20),
			RequireEndTime: getBoolEnv("BOOKING_REQUIRE_END_TIME", false),
			StrictSeats:    getBoolEnv("BOOKING_STRICT_SEATS", false),
		},
		Inventory: InventoryConfig{
			Backend:        strings.ToLower(getEnv("INVENTORY_BACKEND", InventoryMemory)),
			LockTTL:        getDurationEnv("INVENTORY_LOCK_TTL", 5*time.Second),
			LockRetries:    getIntEnv("INVENTORY_LOCK_RETRIES", 20),
			LockRetryDelay: getDurationEnv("INVENTORY_LOCK_RETRY_DELAY", 25*time.Millisecond),
		},
		History: HistoryConfig{
			Backend:       strings.ToLower(getEnv("HISTORY_BACKEND", HistoryFile)),
			FilePath:      getEnv("HISTORY_FILE_PATH", "data/users.json"),
			Timeout:       getDurationEnv("HISTORY_TIMEOUT", 3*time.Second),
			RetryInterval: getDurationEnv("HISTORY_RETRY_INTERVAL", 30*time.Second),
		},
		Broker: BrokerConfig{
			URL:   getEnv("RABBITMQ_URL", ""),
			Queue: getEnv("RABBITMQ_QUEUE", "booking.confirmed"),
		},
	}

	// URL形式の接続情報があれば個別設定より優先する
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		applyDatabaseURL(&cfg.Database, dsn)
	}
	if addr := os.Getenv("REDIS_URL"); addr != "" {
		applyRedisURL(&cfg.Redis, addr)
	}

	return cfg
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// URL はマイグレーション用のpostgres URLを返す
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func applyDatabaseURL(c *DatabaseConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	if h := u.Hostname(); h != "" {
		c.Host = h
	}
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		c.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		c.DBName = name
	}
	// マネージドなDBを想定し、指定がなければ require
	c.SSLMode = "require"
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.SSLMode = mode
	}
}

func applyRedisURL(c *RedisConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	if h := u.Hostname(); h != "" {
		c.Host = h
	}
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		if i, err := strconv.Atoi(db); err == nil {
			c.DB = i
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// 0 以下の値はタイマーやロックTTLに使えないので既定値にする
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
