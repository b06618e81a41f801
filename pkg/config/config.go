package config

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Server    ServerConfig
	GCP       GCPConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Search    SearchConfig
	Embedding EmbeddingConfig
	DataAgent DataAgentConfig
	Typesense TypesenseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Secrets   SecretsConfig
	OTEL      OTELConfig

	// OutboundTimeout bounds every call to an external service.
	OutboundTimeout time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// GCPConfig holds the Google Cloud project settings
type GCPConfig struct {
	ProjectID string
	Location  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	AllowedBucket string
}

// SearchConfig holds search dispatcher configuration
type SearchConfig struct {
	DefaultMode   string
	DefaultWeight float64
	NLConfigID    string
}

// EmbeddingConfig holds embedding model configuration
type EmbeddingConfig struct {
	Provider       string
	TextModel      string
	TextDimension  int
	ImageModel     string
	ImageDimension int
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string

	// OpenAIImageModel must embed into the same space as the stored image
	// vectors. Empty leaves the image signal unconfigured.
	OpenAIImageModel string
	CacheTTL         time.Duration
}

// DataAgentConfig holds the external data agent configuration
type DataAgentConfig struct {
	Endpoint        string
	Location        string
	ContextLocation string
	ContextSetID    string
	ClusterID       string
	InstanceID      string
	DatabaseID      string
	AccessToken     string
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CORSConfig holds the allowed origins
type CORSConfig struct {
	AllowedOrigins []string
}

// SecretsConfig holds the Secret Manager overlay settings
type SecretsConfig struct {
	Enabled bool
	Keys    []string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	projectID := getEnv("GCP_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT"))
	location := getEnv("GCP_LOCATION", "europe-west1")

	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", getEnvAsInt("PORT", 8080)),
		},
		GCP: GCPConfig{
			ProjectID: projectID,
			Location:  location,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "127.0.0.1"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "search"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		},
		Storage: StorageConfig{
			AllowedBucket: getEnv("GCS_ALLOWED_BUCKET", DefaultBucket(projectID)),
		},
		Search: SearchConfig{
			DefaultMode:   getEnv("SEARCH_DEFAULT_MODE", "data_agent"),
			DefaultWeight: getEnvAsFloat("SEARCH_DEFAULT_WEIGHT", 0.6),
			NLConfigID:    getEnv("NL_CONFIG_ID", "property_search_config"),
		},
		Embedding: EmbeddingConfig{
			Provider:         getEnv("EMBEDDING_PROVIDER", "vertex"),
			TextModel:        getEnv("TEXT_EMBEDDING_MODEL", "gemini-embedding-001"),
			TextDimension:    getEnvAsInt("TEXT_EMBEDDING_DIMENSION", 0),
			ImageModel:       getEnv("IMAGE_EMBEDDING_MODEL", "multimodalembedding@001"),
			ImageDimension:   getEnvAsInt("IMAGE_EMBEDDING_DIMENSION", 1408),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			OpenAIModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			OpenAIImageModel: getEnv("OPENAI_IMAGE_EMBEDDING_MODEL", ""),
			CacheTTL:         getEnvAsDuration("EMBEDDING_CACHE_TTL", time.Hour),
		},
		DataAgent: DataAgentConfig{
			Endpoint:        getEnv("AGENT_ENDPOINT", "https://geminidataanalytics.googleapis.com"),
			Location:        getEnv("AGENT_LOCATION", location),
			ContextLocation: getEnv("AGENT_CONTEXT_LOCATION", location),
			ContextSetID:    getEnv("AGENT_CONTEXT_SET_ID", ""),
			ClusterID:       getEnv("AGENT_CLUSTER_ID", "search-cluster"),
			InstanceID:      getEnv("AGENT_INSTANCE_ID", "search-primary"),
			DatabaseID:      getEnv("AGENT_DATABASE_ID", "search"),
			AccessToken:     getEnv("ACCESS_TOKEN", ""),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", ""),
			APIKey: getEnv("TYPESENSE_API_KEY", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Secrets: SecretsConfig{
			Enabled: getEnvAsBool("SECRET_MANAGER_ENABLED", false),
			Keys:    getEnvAsList("SECRET_MANAGER_KEYS", []string{"DB_PASSWORD"}),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "property-search-api"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		OutboundTimeout: getEnvAsDuration("OUTBOUND_TIMEOUT", 30*time.Second),
	}

	if cfg.OutboundTimeout <= 0 {
		return nil, fmt.Errorf("OUTBOUND_TIMEOUT must be positive, got %s", cfg.OutboundTimeout)
	}
	if math.IsNaN(cfg.Search.DefaultWeight) || cfg.Search.DefaultWeight < 0 || cfg.Search.DefaultWeight > 1 {
		return nil, fmt.Errorf("SEARCH_DEFAULT_WEIGHT must be within [0,1], got %v", cfg.Search.DefaultWeight)
	}

	return cfg, nil
}

// DefaultBucket returns the per-project image bucket name
func DefaultBucket(projectID string) string {
	if projectID == "" {
		return ""
	}
	return "property-images-" + projectID
}

// DatabaseDSN returns the PostgreSQL connection URL with every part escaped
func (c *DatabaseConfig) DatabaseDSN() string {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}
	return dsn.String()
}

// HasCredentials reports whether a password was configured
func (c *DatabaseConfig) HasCredentials() bool {
	return c.Password != ""
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ContextSetName returns the fully qualified agent context set name
func (c *DataAgentConfig) ContextSetName(projectID string) string {
	if strings.HasPrefix(c.ContextSetID, "projects/") {
		return c.ContextSetID
	}
	return fmt.Sprintf("projects/%s/locations/%s/contextSets/%s", projectID, c.ContextLocation, c.ContextSetID)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
