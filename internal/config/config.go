package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	SourceAPIBaseURL string
	SourceAPIKey     string
	SourceAPIEngine  string
	SourceAPITimeout time.Duration

	SearchLanguage  string
	SearchCountry   string
	SearchQueries   []string
	SearchLocations []string
	SearchOffsets   []int
	RequestWorkers  int

	DataDir      string
	RawDir       string
	ProcessedDir string

	NATSURL         string
	NATSConnTimeout time.Duration

	ClickHouseDSN          string
	ClickHouseMaxOpenConns int
	ClickHouseMaxIdleConns int
	ClickHouseConnMaxLife  time.Duration
	ClickHouseUsername     string
	ClickHousePassword     string
	ClickHouseDatabase     string

	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	PollingInterval time.Duration
	MaxRetries      int
	RetryDelay      time.Duration

	KeywordTools     []string
	KeywordLanguages []string
	KeywordDatabases []string

	TracingEnabled   bool
	OTELCollectorURL string
}

func LoadConfig() (*Config, error) {
	config := &Config{
		SourceAPIBaseURL: getEnvString("SOURCE_API_BASE_URL", "http://localhost:8085"),
		SourceAPIKey:     getEnvString("SOURCE_API_KEY", ""),
		SourceAPIEngine:  getEnvString("SOURCE_API_ENGINE", "jobs"),
		SourceAPITimeout: getEnvDuration("SOURCE_API_TIMEOUT", 30*time.Second),

		SearchLanguage:  getEnvString("SEARCH_LANGUAGE", "de"),
		SearchCountry:   getEnvString("SEARCH_COUNTRY", "de"),
		SearchQueries:   getEnvStringSlice("SEARCH_QUERIES", []string{"Data Analyst", "Data Scientist", "Data Engineer"}),
		SearchLocations: getEnvStringSlice("SEARCH_LOCATIONS", []string{"Cologne,Germany", "Berlin,Germany", "Hamburg,Germany", "Munich,Germany"}),
		SearchOffsets:   getEnvIntSlice("SEARCH_OFFSETS", []int{0, 10, 20}),
		RequestWorkers:  getEnvInt("REQUEST_WORKERS", 5),

		DataDir:      getEnvString("DATA_DIR", "data"),
		RawDir:       getEnvString("RAW_DIR", "raw"),
		ProcessedDir: getEnvString("PROCESSED_DIR", "processed"),

		NATSURL:         getEnvString("NATS_URL", "nats://localhost:4222"),
		NATSConnTimeout: getEnvDuration("NATS_CONN_TIMEOUT", 10*time.Second),

		ClickHouseDSN:          getEnvString("CLICKHOUSE_DSN", "localhost:9000"),
		ClickHouseMaxOpenConns: getEnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		ClickHouseMaxIdleConns: getEnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ClickHouseConnMaxLife:  getEnvDuration("CLICKHOUSE_CONN_MAX_LIFE", time.Hour),
		ClickHouseUsername:     getEnvString("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     getEnvString("CLICKHOUSE_PASSWORD", ""),
		ClickHouseDatabase:     getEnvString("CLICKHOUSE_DATABASE", "jobs"),

		CacheBackend:  getEnvString("CACHE_BACKEND", "memory"),
		RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 24*time.Hour),

		PollingInterval: getEnvDuration("POLLING_INTERVAL", 6*time.Hour),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		RetryDelay:      getEnvDuration("RETRY_DELAY", 30*time.Second),

		KeywordTools:     getEnvStringSlice("KEYWORD_TOOLS", []string{"Excel", "Tableau", "PowerBI", "Airflow", "dbt", "Spark", "Kafka", "Docker", "Kubernetes", "Terraform"}),
		KeywordLanguages: getEnvStringSlice("KEYWORD_LANGUAGES", []string{"Python", "SQL", "R", "Java", "Scala", "Go"}),
		KeywordDatabases: getEnvStringSlice("KEYWORD_DATABASES", []string{"PostgreSQL", "MySQL", "BigQuery", "Snowflake", "Redshift", "ClickHouse", "MongoDB", "Redis"}),

		TracingEnabled:   getEnvBool("TRACING_ENABLED", false),
		OTELCollectorURL: getEnvString("OTEL_COLLECTOR_URL", "localhost:4317"),
	}

	return config, nil
}

// SearchCombination is one request to the source API. The request stage
// fans out over the full product of queries, locations and offsets.
type SearchCombination struct {
	Query    string
	Location string
	Start    int
}

func (c *Config) SearchCombinations() []SearchCombination {
	combinations := make([]SearchCombination, 0, len(c.SearchQueries)*len(c.SearchLocations)*len(c.SearchOffsets))
	for _, query := range c.SearchQueries {
		for _, location := range c.SearchLocations {
			for _, start := range c.SearchOffsets {
				combinations = append(combinations, SearchCombination{
					Query:    query,
					Location: location,
					Start:    start,
				})
			}
		}
	}
	return combinations
}

// KeywordCategories groups the configured keyword lists by the column they
// feed in the final table.
func (c *Config) KeywordCategories() map[string][]string {
	return map[string][]string{
		"tools":     c.KeywordTools,
		"languages": c.KeywordLanguages,
		"databases": c.KeywordDatabases,
	}
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

func getEnvIntSlice(key string, defaultValue []int) []int {
	if value, exists := os.LookupEnv(key); exists {
		parts := strings.Split(value, ",")
		result := make([]int, 0, len(parts))
		for _, part := range parts {
			if intValue, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				result = append(result, intValue)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
