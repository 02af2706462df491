package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	ServerPort string

	// StoreBackend selects the repository implementation: postgres, mongo or memory.
	StoreBackend string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	MongoURI      string
	MongoDatabase string

	JWTSecret string

	AWSRegion string
	S3Bucket  string

	CORSOrigins []string
	MessageTTL  time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		StoreBackend:  getEnv("STORE_BACKEND", "postgres"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "orbit"),
		DBPassword:    getEnv("DB_PASSWORD", "orbit_dev_password"),
		DBName:        getEnv("DB_NAME", "orbit"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase: getEnv("MONGO_DATABASE", "orbit"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		CORSOrigins:   strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
		MessageTTL:    getDuration("MESSAGE_TTL", time.Hour),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}

	return d
}
