package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config is the server configuration.
type Config struct {
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	ServerPort     string
	JWTSecret      string
	JWTExpiry      time.Duration
	RedisURL       string
	SnapshotTTL    time.Duration
	LogLevel       string
	LogFormat      string
	MigrateOnStart bool
}

// ClientConfig configures kanbanctl.
type ClientConfig struct {
	BaseURL         string
	Token           string
	UserID          string
	RefreshInterval time.Duration
	HTTPTimeout     time.Duration
	LogLevel        string
}

func Load() *Config {
	loadDotEnv()

	return &Config{
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5431"),
		DBUser:         getEnv("DB_USER", "kanban_user"),
		DBPassword:     getEnv("DB_PASSWORD", "kanban_pass"),
		DBName:         getEnv("DB_NAME", "kanban_db"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", "supersecretkey"),
		JWTExpiry:      time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		RedisURL:       getEnv("REDIS_URL", ""),
		SnapshotTTL:    getEnvDuration("SNAPSHOT_TTL", 30*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true),
	}
}

func LoadClient() *ClientConfig {
	loadDotEnv()

	return &ClientConfig{
		BaseURL:         getEnv("KANBAN_URL", "http://localhost:8080"),
		Token:           getEnv("KANBAN_TOKEN", ""),
		UserID:          getEnv("KANBAN_USER_ID", ""),
		RefreshInterval: getEnvDuration("KANBAN_REFRESH_INTERVAL", 30*time.Second),
		HTTPTimeout:     getEnvDuration("KANBAN_HTTP_TIMEOUT", 10*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "warn"),
	}
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return "host=" + c.DBHost + " port=" + c.DBPort + " user=" + c.DBUser +
		" password=" + c.DBPassword + " dbname=" + c.DBName + " sslmode=disable"
}

// MigrationURL builds the pgx5:// url used by golang-migrate.
func (c *Config) MigrationURL() string {
	return "pgx5://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=disable"
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug("⚠️  No .env file found, using system environment variables")
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}
