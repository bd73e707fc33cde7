package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	config "chat-insight-api/configs"
	"chat-insight-api/pkg/classifier"
	"chat-insight-api/pkg/export"
	"chat-insight-api/pkg/handlers"
	"chat-insight-api/pkg/models"
	"chat-insight-api/pkg/services"
	"chat-insight-api/pkg/sheets"
	"chat-insight-api/pkg/transcript"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()

	// Ginルーターの初期化
	r := gin.Default()

	// サービスの初期化
	monitoringService := services.NewMonitoringService()

	promptCfg, err := config.LoadPromptConfig()
	if err != nil {
		log.Printf("⚠️ プロンプト設定の読み込みに失敗しました: %v", err)
	}

	chatClassifier := classifier.NewClassifier(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, classifier.Options{
		Model:       cfg.OpenAIModel,
		BatchSize:   cfg.ClassifyBatchSize,
		Concurrency: cfg.ClassifyConcurrency,
		MaxRetries:  cfg.ClassifyMaxRetries,
		RPMLimit:    cfg.OpenAIRPMLimit,
		PromptExtra: promptCfg.BuildPromptExtra(),
	})

	var sheetWriter services.SheetWriter
	sheetsClient, err := sheets.NewClient(context.Background(), cfg.GoogleServiceAccountFile, cfg.GoogleCredentialsJSON)
	if err != nil {
		// 認証情報がない環境（ローカル開発など）ではexcel出力のみ使えます
		log.Printf("⚠️ Google Sheetsクライアントの初期化に失敗しました: %v", err)
		sheetWriter = unavailableWriter{}
	} else {
		sheetWriter = sheets.NewWriter(sheetsClient)
	}

	analysisService := services.NewAnalysisService(
		chatClassifier,
		transcript.NewMatcher(chatClassifier),
		services.NewStatisticsService(),
		sheetWriter,
		export.NewExcelExporter(),
		monitoringService,
	)

	// ハンドラーの初期化
	analysisHandler := handlers.NewAnalysisHandler(analysisService, cfg.CompanyName)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware()) // ロギングミドルウェアをグローバルに適用
	r.Use(cors.Default())

	// 認証ミドルウェア
	authMiddleware := func(apiKey string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if apiKey == "" {
				c.Next()
				return
			}
			providedKey := c.GetHeader("X-API-KEY")
			if providedKey != apiKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.Next()
		}
	}

	// ヘルスチェックエンドポイント
	r.GET("/health", handlers.HealthCheck)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(cfg.APIKey))
	{
		// チャット分析API
		chat := v1.Group("/chat")
		{
			chat.POST("/analyze", analysisHandler.AnalyzeChat)
			chat.POST("/preview", analysisHandler.PreviewChat)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/summary", monitoringHandler.GetSummary)
		}
	}

	log.Printf("Starting Chat Insight API server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// unavailableWriter Sheets認証が設定されていないときのフォールバック
type unavailableWriter struct{}

func (unavailableWriter) Write(ctx context.Context, spreadsheetID string, payload *models.SheetPayload) (string, error) {
	return "", &sheets.WriteError{Op: "auth", Err: errors.New("Google Sheetsの認証情報が設定されていません")}
}
