package config

import (
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	testCases := map[string]string{
		"PORT":                  "9090",
		"ENVIRONMENT":           "test",
		"OPENAI_API_KEY":        "test-key",
		"OPENAI_MODEL":          "gpt-4o",
		"CLASSIFY_BATCH_SIZE":   "10",
		"CLASSIFY_CONCURRENCY":  "2",
		"OPENAI_RPM_LIMIT":      "120",
		"GOOGLE_CREDENTIALS_JSON": `{"type":"service_account"}`,
	}

	// 環境変数を設定
	for key, value := range testCases {
		os.Setenv(key, value)
	}

	// テスト後にクリーンアップ
	defer func() {
		for key := range testCases {
			os.Unsetenv(key)
		}
	}()

	// 設定を読み込み
	cfg := LoadConfig()

	// 検証
	if cfg.Port != "9090" {
		t.Errorf("Expected Port to be '9090', got '%s'", cfg.Port)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected Environment to be 'test', got '%s'", cfg.Environment)
	}

	if cfg.OpenAIAPIKey != "test-key" {
		t.Errorf("Expected OpenAIAPIKey to be 'test-key', got '%s'", cfg.OpenAIAPIKey)
	}

	if cfg.OpenAIModel != "gpt-4o" {
		t.Errorf("Expected OpenAIModel to be 'gpt-4o', got '%s'", cfg.OpenAIModel)
	}

	if cfg.ClassifyBatchSize != 10 {
		t.Errorf("Expected ClassifyBatchSize to be 10, got %d", cfg.ClassifyBatchSize)
	}

	if cfg.ClassifyConcurrency != 2 {
		t.Errorf("Expected ClassifyConcurrency to be 2, got %d", cfg.ClassifyConcurrency)
	}

	if cfg.OpenAIRPMLimit != 120 {
		t.Errorf("Expected OpenAIRPMLimit to be 120, got %d", cfg.OpenAIRPMLimit)
	}

	if cfg.GoogleCredentialsJSON == "" {
		t.Error("Expected GoogleCredentialsJSON to be set")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// 環境変数をクリア
	vars := []string{
		"PORT", "ENVIRONMENT", "OPENAI_API_KEY", "OPENAI_MODEL",
		"CLASSIFY_BATCH_SIZE", "CLASSIFY_CONCURRENCY", "CLASSIFY_MAX_RETRIES",
		"OPENAI_RPM_LIMIT", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_CREDENTIALS_JSON",
	}

	for _, v := range vars {
		os.Unsetenv(v)
	}

	// 設定を読み込み
	cfg := LoadConfig()

	// デフォルト値の検証
	if cfg.Port != "8080" {
		t.Errorf("Expected default Port to be '8080', got '%s'", cfg.Port)
	}

	if cfg.Environment != "development" {
		t.Errorf("Expected default Environment to be 'development', got '%s'", cfg.Environment)
	}

	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("Expected default OpenAIModel to be 'gpt-4o-mini', got '%s'", cfg.OpenAIModel)
	}

	if cfg.ClassifyBatchSize != 20 {
		t.Errorf("Expected default ClassifyBatchSize to be 20, got %d", cfg.ClassifyBatchSize)
	}

	if cfg.ClassifyMaxRetries != 3 {
		t.Errorf("Expected default ClassifyMaxRetries to be 3, got %d", cfg.ClassifyMaxRetries)
	}
}

func TestGetEnvIntInvalid(t *testing.T) {
	// 数値として解釈できない値はデフォルトにフォールバック
	os.Setenv("CLASSIFY_BATCH_SIZE", "abc")
	defer os.Unsetenv("CLASSIFY_BATCH_SIZE")

	cfg := LoadConfig()
	if cfg.ClassifyBatchSize != 20 {
		t.Errorf("Expected fallback ClassifyBatchSize to be 20, got %d", cfg.ClassifyBatchSize)
	}
}
