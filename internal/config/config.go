// -----------------------------------------------------------------------------
// Config Package
// -----------------------------------------------------------------------------
// Uygulamanın merkezi konfigürasyon yönetimi. Ortam değişkenlerini okuyarak
// uygulama, veritabanı, önbellek, hiyerarşi ve event bus ayarlarını tip
// güvenli bir yapıda toplar.
//
// Eksik ortam değişkenlerinde varsayılan değer kullanılır ve logger
// üzerinden uyarı üretilir. Hatalı değerler (sayı beklenen yerde metin gibi)
// da varsayılana düşer.
// -----------------------------------------------------------------------------

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventsLocal = "local"
	EventsRedis = "redis"

	defaultJWTSecret = "change-this-secret-before-going-to-production"
)

// Config, uygulamanın merkezi yapılandırma nesnesidir.
//
// Gruplar:
//   - App: Uygulama genel ayarları
//   - Log: Log seviyesi
//   - DB: Veritabanı sürücüsü ve havuz ayarları
//   - Redis: Redis bağlantı ayarları
//   - Cache: Önbellek driver'ı
//   - RowCache: Satır önbelleği
//   - Hierarchy: Hiyerarşi motoru
//   - Grid: Row model derleyicisi
//   - Events: Data change event bus'ı
//   - JWT: Requester token doğrulaması
type Config struct {
	App struct {
		Name string // Uygulama adı
		Env  string // Ortam (development, production, test)
	}

	Log struct {
		Level string // debug, info, warn, error
	}

	DB struct {
		Driver          string        // mysql veya sqlite
		DSN             string        // Bağlantı string'i
		MaxOpenConns    int           // Maksimum açık bağlantı sayısı
		MaxIdleConns    int           // Maksimum boşta bekleyen bağlantı sayısı
		ConnMaxLifetime time.Duration // Bağlantı maksimum ömrü
	}

	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
	}

	Cache struct {
		Driver string // memory veya redis
		Prefix string // Anahtar namespace'i
	}

	RowCache struct {
		Enabled bool
		TTL     time.Duration
	}

	Hierarchy struct {
		OrderInterval int64 // Kardeşler arası seyrek sıra aralığı
	}

	Grid struct {
		MaxPageSize int
	}

	Events struct {
		Driver  string // local veya redis
		Channel string // Redis pub/sub kanalı
	}

	JWT struct {
		Secret     string
		Issuer     string
		Expiration time.Duration
	}
}

// Load, ortam değişkenlerini okuyarak Config nesnesini döndürür.
//
// Örnek kullanım:
//
//	cfg := config.Load(log)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
func Load(logger zerolog.Logger) *Config {
	cfg := &Config{}

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		logger.Warn().Str("key", key).Str("default", defaultValue).Msg("ortam değişkeni bulunamadı, varsayılan kullanılıyor")
		return defaultValue
	}

	getEnvAsInt := func(key string, defaultValue int) int {
		valueStr := os.Getenv(key)
		if valueStr == "" {
			logger.Warn().Str("key", key).Int("default", defaultValue).Msg("ortam değişkeni bulunamadı, varsayılan kullanılıyor")
			return defaultValue
		}
		value, err := strconv.Atoi(valueStr)
		if err != nil {
			logger.Warn().Str("key", key).Str("value", valueStr).Int("default", defaultValue).Msg("geçersiz sayı, varsayılan kullanılıyor")
			return defaultValue
		}
		return value
	}

	getEnvAsBool := func(key string, defaultValue bool) bool {
		valueStr := os.Getenv(key)
		if valueStr == "" {
			return defaultValue
		}
		value, err := strconv.ParseBool(valueStr)
		if err != nil {
			logger.Warn().Str("key", key).Str("value", valueStr).Bool("default", defaultValue).Msg("geçersiz boolean, varsayılan kullanılıyor")
			return defaultValue
		}
		return value
	}

	// Saniye cinsinden
	getEnvAsDuration := func(key string, defaultSeconds int) time.Duration {
		return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
	}

	cfg.App.Name = getEnv("APP_NAME", "orgtree")
	cfg.App.Env = getEnv("APP_ENV", "development")
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")

	cfg.DB.Driver = getEnv("DB_DRIVER", "mysql")
	cfg.DB.DSN = getEnv("DB_DSN", "root:password@tcp(127.0.0.1:3306)/orgtree?parseTime=true&loc=UTC")
	cfg.DB.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DB.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", 25)
	cfg.DB.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", 300)

	cfg.Redis.Host = getEnv("REDIS_HOST", "127.0.0.1")
	cfg.Redis.Port = getEnvAsInt("REDIS_PORT", 6379)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	cfg.Cache.Driver = getEnv("CACHE_DRIVER", "memory")
	cfg.Cache.Prefix = getEnv("CACHE_PREFIX", "orgtree:")

	cfg.RowCache.Enabled = getEnvAsBool("ROW_CACHE_ENABLED", true)
	cfg.RowCache.TTL = getEnvAsDuration("ROW_CACHE_TTL", 600)

	cfg.Hierarchy.OrderInterval = int64(getEnvAsInt("HIERARCHY_ORDER_INTERVAL", 100))
	cfg.Grid.MaxPageSize = getEnvAsInt("GRID_MAX_PAGE_SIZE", 1000)

	cfg.Events.Driver = getEnv("EVENTS_DRIVER", EventsLocal)
	cfg.Events.Channel = getEnv("EVENTS_CHANNEL", "orgtree:data-changed")

	cfg.JWT.Secret = getEnv("JWT_SECRET", defaultJWTSecret)
	cfg.JWT.Issuer = getEnv("JWT_ISSUER", "orgtree")
	cfg.JWT.Expiration = getEnvAsDuration("JWT_EXPIRATION", 3600)

	return cfg
}

// Validate, config değerlerinin geçerliliğini kontrol eder.
//
// Production için JWT secret uzunluğu ve varsayılan secret kontrol edilir;
// memory cache production'da yalnızca uyarı üretir (çok instance'lı
// kurulumda satır önbellekleri tutarsızlaşır).
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("geçersiz DB_DRIVER: %s (mysql veya sqlite olmalı)", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN boş olamaz")
	}

	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("geçersiz CACHE_DRIVER: %s (memory veya redis olmalı)", c.Cache.Driver)
	}

	switch c.Events.Driver {
	case EventsLocal, EventsRedis:
	default:
		return fmt.Errorf("geçersiz EVENTS_DRIVER: %s (local veya redis olmalı)", c.Events.Driver)
	}

	if c.Hierarchy.OrderInterval <= 0 {
		return fmt.Errorf("HIERARCHY_ORDER_INTERVAL sıfırdan büyük olmalı")
	}
	if c.Grid.MaxPageSize < 0 {
		return fmt.Errorf("GRID_MAX_PAGE_SIZE negatif olamaz")
	}

	if c.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT_SECRET production'da en az 32 karakter olmalı")
		}
		if c.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET production'da değiştirilmelidir")
		}
	}
	return nil
}

// Warnings, geçerli ama önerilmeyen ayarları döner.
func (c *Config) Warnings() []string {
	var out []string
	if c.IsProduction() && c.Cache.Driver == "memory" && c.Events.Driver == EventsLocal {
		out = append(out, "memory cache ve local event bus çok instance'lı production kurulumunda tutarsız önbellek üretir")
	}
	if c.DB.Driver == "sqlite" && c.IsProduction() {
		out = append(out, "sqlite production ortamı için önerilmez")
	}
	return out
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsTest reports whether APP_ENV is test.
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// LoadConfig, Load ve Validate'i birlikte çalıştırır.
func LoadConfig(logger zerolog.Logger) (*Config, error) {
	cfg := Load(logger)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
