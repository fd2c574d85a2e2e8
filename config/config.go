package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverFirebase = "firebase"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// reservedCollections back typed routes and can't be exposed through the
// generic save/load endpoints.
var reservedCollections = []string{"users", "employees", "attendance"}

type Config struct {
	AppEnv     string
	Port       string
	Auth       AuthConfig
	Store      StoreConfig
	Firebase   FirebaseConfig
	DB         DatabaseConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	Attendance AttendanceConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Telemetry  TelemetryConfig
	// Collections lists the generic collections reachable through /api/save and /api/load.
	Collections []CollectionConfig
}

type AuthConfig struct {
	TokenSecret []byte
	Issuer      string
	TokenTTL    time.Duration
}

type StoreConfig struct {
	Driver  string
	Timeout time.Duration
}

type FirebaseConfig struct {
	DatabaseURL     string
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

type DatabaseConfig struct {
	Engine      string
	Host        string
	Port        string
	Name        string
	Username    string
	Password    string
	SSLMode     string
	AutoMigrate bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type AttendanceConfig struct {
	Location *time.Location
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
}

type TelemetryConfig struct {
	ServiceName          string
	ServiceVersion       string
	OTLPEndpoint         string
	OTLPTracesEndpoint   string
	OTLPMetricsEndpoint  string
	OTLPProtocol         string
	OTLPHeaders          map[string]string
	OTLPInsecure         bool
	ExportTimeout        time.Duration
	MetricExportInterval time.Duration
}

// CollectionConfig declares a generic collection and the fields every saved
// record must carry.
type CollectionConfig struct {
	Name           string
	RequiredFields []string
}

func Load() (Config, error) {
	appEnv := getEnv("APP_ENV", "dev")

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return Config{}, errors.New("JWT_SECRET must be set")
	}

	tokenTTL, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if tokenTTL <= 0 {
		return Config{}, fmt.Errorf("invalid JWT_TTL: must be positive")
	}

	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreDriverFirebase))
	switch driver {
	case StoreDriverFirebase, StoreDriverPostgres, StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_DRIVER: %s", driver)
	}

	storeTimeout, err := time.ParseDuration(getEnv("STORE_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "1"), 64)
	if err != nil || rps <= 0 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS: %s", os.Getenv("RATE_LIMIT_RPS"))
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "5"))
	if err != nil || burst <= 0 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_BURST: %s", os.Getenv("RATE_LIMIT_BURST"))
	}

	location, err := time.LoadLocation(getEnv("ATTENDANCE_TIMEZONE", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ATTENDANCE_TIMEZONE: %w", err)
	}

	collections, err := parseCollections(getEnv("GENERIC_COLLECTIONS", "records"))
	if err != nil {
		return Config{}, err
	}

	exportTimeout, err := time.ParseDuration(getEnv("OTEL_EXPORTER_OTLP_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid OTEL_EXPORTER_OTLP_TIMEOUT: %w", err)
	}
	metricInterval, err := time.ParseDuration(getEnv("OTEL_METRIC_EXPORT_INTERVAL", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid OTEL_METRIC_EXPORT_INTERVAL: %w", err)
	}

	dbSSLMode := getEnv("DB_SSLMODE", "")
	if dbSSLMode == "" {
		if appEnv == "prod" {
			dbSSLMode = "require"
		} else {
			dbSSLMode = "disable"
		}
	}

	defaultLogFormat := "console"
	if appEnv == "prod" {
		defaultLogFormat = "json"
	}

	cfg := Config{
		AppEnv: appEnv,
		Port:   getEnv("APP_PORT", "8080"),
		Auth: AuthConfig{
			TokenSecret: []byte(secret),
			Issuer:      getEnv("JWT_ISSUER", "staff-portal"),
			TokenTTL:    tokenTTL,
		},
		Store: StoreConfig{
			Driver:  driver,
			Timeout: storeTimeout,
		},
		Firebase: FirebaseConfig{
			DatabaseURL:     getEnv("FIREBASE_DATABASE_URL", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			CredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		},
		DB: DatabaseConfig{
			Engine:      getEnv("DB_ENGINE", "postgres"),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			Name:        getEnv("DB_NAME", os.Getenv("DB_INSTANCE_IDENTIFIER")),
			Username:    getEnv("DB_USERNAME", ""),
			Password:    getEnv("DB_PASSWORD", ""),
			SSLMode:     dbSSLMode,
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: rps,
			Burst:             burst,
		},
		Attendance: AttendanceConfig{
			Location: location,
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		Telemetry: TelemetryConfig{
			ServiceName:          getEnv("OTEL_SERVICE_NAME", "staff-portal"),
			ServiceVersion:       getEnv("OTEL_SERVICE_VERSION", "dev"),
			OTLPEndpoint:         getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPTracesEndpoint:   getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""),
			OTLPMetricsEndpoint:  getEnv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", ""),
			OTLPProtocol:         strings.ToLower(getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			OTLPHeaders:          parseHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", "")),
			OTLPInsecure:         getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", appEnv != "prod"),
			ExportTimeout:        exportTimeout,
			MetricExportInterval: metricInterval,
		},
		Collections: collections,
	}

	switch driver {
	case StoreDriverFirebase:
		if cfg.Firebase.DatabaseURL == "" {
			return Config{}, errors.New("FIREBASE_DATABASE_URL must be set when STORE_DRIVER=firebase")
		}
	case StoreDriverPostgres:
		if cfg.DB.Name == "" || cfg.DB.Username == "" {
			return Config{}, errors.New("DB_NAME (or DB_INSTANCE_IDENTIFIER) and DB_USERNAME must be set when STORE_DRIVER=postgres")
		}
	}

	return cfg, nil
}

// Collection returns the declared generic collection with the given name.
func (c Config) Collection(name string) (CollectionConfig, bool) {
	for _, collection := range c.Collections {
		if collection.Name == name {
			return collection, true
		}
	}
	return CollectionConfig{}, false
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	var results []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

// parseHeaders reads the OTLP "key=value,key2=value2" header format.
func parseHeaders(value string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range parseCSV(value) {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(val)
	}
	return headers
}

// parseCollections reads "notes:title|body,records" into collection
// declarations.
func parseCollections(value string) ([]CollectionConfig, error) {
	var collections []CollectionConfig
	seen := make(map[string]bool)
	for _, entry := range parseCSV(value) {
		name, fields, _ := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, "/.$#[] ") {
			return nil, fmt.Errorf("invalid GENERIC_COLLECTIONS entry: %q", entry)
		}
		for _, reserved := range reservedCollections {
			if name == reserved {
				return nil, fmt.Errorf("GENERIC_COLLECTIONS may not include reserved collection %q", name)
			}
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate GENERIC_COLLECTIONS entry: %q", name)
		}
		seen[name] = true

		collection := CollectionConfig{Name: name}
		for _, field := range strings.Split(fields, "|") {
			if field = strings.TrimSpace(field); field != "" {
				collection.RequiredFields = append(collection.RequiredFields, field)
			}
		}
		collections = append(collections, collection)
	}
	return collections, nil
}
