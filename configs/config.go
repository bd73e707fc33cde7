package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	Port        string
	Environment string
	APIKey      string
	CompanyName string

	// OpenAI（コメント分類）
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// 分類パイプライン
	ClassifyBatchSize   int
	ClassifyConcurrency int
	ClassifyMaxRetries  int
	OpenAIRPMLimit      int

	// Google Sheets（サービスアカウント認証）
	// ファイルパスかインラインJSONのどちらか一方を設定します。
	GoogleServiceAccountFile string
	GoogleCredentialsJSON    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		APIKey:      getEnv("API_KEY", ""),
		CompanyName: getEnv("COMPANY_NAME", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		ClassifyBatchSize:   getEnvInt("CLASSIFY_BATCH_SIZE", 20),
		ClassifyConcurrency: getEnvInt("CLASSIFY_CONCURRENCY", 4),
		ClassifyMaxRetries:  getEnvInt("CLASSIFY_MAX_RETRIES", 3),
		OpenAIRPMLimit:      getEnvInt("OPENAI_RPM_LIMIT", 480),

		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleCredentialsJSON:    getEnv("GOOGLE_CREDENTIALS_JSON", ""),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
