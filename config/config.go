// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the service.
type Config struct {
	ServiceName string
	ServicePort string

	MongoURI      string
	MongoDatabase string

	ConsulAddress string

	KafkaBootstrapServers string
	SchemaRegistryURL     string
	EventTopic            string
	EventSchemaPath       string
	OutboxInterval        time.Duration

	JaegerEndpoint string
	JWTSecret      string
	LogFilePath    string
}

// Load reads the environment, consulting .env when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:           getenv("SERVICE_NAME", "roadassist"),
		ServicePort:           getenv("SERVICE_PORT", "8080"),
		MongoURI:              getenv("MONGO_URI", "mongodb://localhost:27017/roadassist"),
		MongoDatabase:         getenv("MONGO_DATABASE", "roadassist"),
		ConsulAddress:         getenv("CONSUL_ADDRESS", "localhost:8500"),
		KafkaBootstrapServers: getenv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"),
		SchemaRegistryURL:     getenv("SCHEMA_REGISTRY_URL", "http://localhost:8081"),
		EventTopic:            getenv("EVENT_TOPIC", "request-events"),
		EventSchemaPath:       getenv("EVENT_SCHEMA_PATH", "request_event.avsc"),
		OutboxInterval:        getduration("OUTBOX_INTERVAL", 5*time.Second),
		JaegerEndpoint:        getenv("JAEGER_ENDPOINT", "localhost:4318"),
		JWTSecret:             getenv("JWT_SECRET", "dev-secret"),
		LogFilePath:           os.Getenv("LOG_FILE_PATH"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
