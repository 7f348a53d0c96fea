package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the daemon configuration.
type Config struct {
	// HTTP control surface.
	ListenAddr string
	APIToken   string // Shared secret for the control API; empty disables auth.

	// Music library.
	MusicDir     string // Directory scanned and watched for audio files.
	WatchLibrary bool   // Enable the fsnotify watcher on MusicDir.

	// Playback defaults.
	Volume       int  // Initial volume, 0-100.
	AutoSkip     bool // Skip to the next track on decode errors.
	ResumeOnBoot bool // Restore the previous queue and position from Redis.

	// Plugin endpoints.
	LyricsAPIURL    string // LRC lyrics service base URL; empty disables fetching.
	ScrobbleURL     string // Scrobble submission endpoint; empty disables submission.
	ScrobbleTimeout time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO (remote track sources).
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// Attempt to load .env file. godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	home, _ := os.UserHomeDir()

	return &Config{
		ListenAddr: getEnv("AW_LISTEN_ADDR", ":8090"),
		APIToken:   os.Getenv("AW_API_TOKEN"), // For secrets, better not to have a hardcoded default.

		MusicDir:     getEnv("AW_MUSIC_DIR", filepath.Join(home, "Music")),
		WatchLibrary: getEnvBool("AW_WATCH_LIBRARY", true),

		Volume:       getEnvInt("AW_VOLUME", 70),
		AutoSkip:     getEnvBool("AW_AUTO_SKIP", true),
		ResumeOnBoot: getEnvBool("AW_RESUME", true),

		LyricsAPIURL:    getEnv("AW_LYRICS_API_URL", ""),
		ScrobbleURL:     getEnv("AW_SCROBBLE_URL", ""),
		ScrobbleTimeout: time.Duration(getEnvInt("AW_SCROBBLE_TIMEOUT", 10)) * time.Second,

		DBHost:     getEnv("DB_HOST", "127.0.0.1"), // Default to localhost if not set
		DBPort:     getEnv("DB_PORT", "3306"),      // Default to standard MySQL port
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "audiowave"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "audiowave"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogLevel: getEnv("AW_LOG_LEVEL", "info"),
		LogPath:  getEnv("AW_LOG_PATH", ""),
	}
}
