package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mediagateway/internal/model"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PathStyle bool
}

// GatewayConfig bounds every transfer. MetadataTimeout and ReadTimeout apply to single
// upstream calls; IdleTimeout is the longest silence tolerated while relaying bytes.
type GatewayConfig struct {
	MetadataTimeout time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	PutTimeout      time.Duration
	TempDir         string
	CacheControl    string
	MaxRequestBody  int64
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string
	Pretty bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Database DatabaseConfig
	MinIO    MinIOConfig
	Gateway  GatewayConfig
	Log      LogConfig
	Policies map[model.Category]*model.CategoryPolicy
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			Region:    getEnv("MINIO_REGION", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			PathStyle: getEnvBool("MINIO_PATH_STYLE", false),
		},
		Gateway: GatewayConfig{
			MetadataTimeout: getEnvDuration("GATEWAY_METADATA_TIMEOUT", 5*time.Second),
			ReadTimeout:     getEnvDuration("GATEWAY_READ_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("GATEWAY_IDLE_TIMEOUT", 20*time.Second),
			PutTimeout:      getEnvDuration("GATEWAY_PUT_TIMEOUT", 10*time.Minute),
			TempDir:         getEnv("GATEWAY_TEMP_DIR", os.TempDir()),
			CacheControl:    getEnv("GATEWAY_CACHE_CONTROL", "private, max-age=3600"),
			MaxRequestBody:  getEnvBytes("GATEWAY_MAX_REQUEST_BODY", 5*humanize.GiByte+humanize.MiByte),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
		Policies: loadPolicies(),
	}
}

// defaultPolicies are used when neither the environment nor the settings table
// provide limits for a category.
var defaultPolicies = map[model.Category]struct {
	maxSize int64
	types   []string
}{
	model.CategoryBook: {
		maxSize: 100 * humanize.MiByte,
		types: []string{
			"application/pdf", "application/epub+zip", "application/x-mobipocket-ebook",
			"application/vnd.amazon.ebook", "application/x-fictionbook+xml", "text/plain",
		},
	},
	model.CategoryAudio: {
		maxSize: 500 * humanize.MiByte,
		types: []string{
			"audio/mpeg", "audio/mp4", "audio/x-m4a", "audio/aac", "audio/ogg",
			"audio/wav", "audio/x-wav", "audio/flac", "audio/webm",
		},
	},
	model.CategoryVideo: {
		maxSize: 5 * humanize.GiByte,
		types: []string{
			"video/mp4", "video/webm", "video/ogg", "video/quicktime", "video/x-matroska",
		},
	},
	model.CategoryImage: {
		maxSize: 10 * humanize.MiByte,
		types:   []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
	},
}

// loadPolicies reads POLICY_<CATEGORY>_MAX_SIZE (e.g. "500MB") and
// POLICY_<CATEGORY>_CONTENT_TYPES (comma separated) for each category.
func loadPolicies() map[model.Category]*model.CategoryPolicy {
	out := make(map[model.Category]*model.CategoryPolicy, len(model.Categories))
	for _, c := range model.Categories {
		def := defaultPolicies[c]
		prefix := "POLICY_" + strings.ToUpper(string(c)) + "_"
		types := getEnvList(prefix+"CONTENT_TYPES", def.types)
		out[c] = model.NewCategoryPolicy(c, getEnvBytes(prefix+"MAX_SIZE", def.maxSize), types...)
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

// getEnvBytes accepts humanized sizes such as "10MB", "1.5 GiB" or a plain byte count.
func getEnvBytes(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := humanize.ParseBytes(v)
		if err == nil && n > 0 && n <= 1<<62 {
			return int64(n)
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
