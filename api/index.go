package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

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
)

var (
	app  *gin.Engine
	once sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() *gin.Engine {
	once.Do(func() {
		log.Printf("🟢 [setupApp] Initializing Gin application")

		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()

		// Ginルーターの初期化
		r := gin.Default()

		// サービスの初期化
		monitoringService := services.NewMonitoringService()
		promptCfg, err := config.LoadPromptConfig()
		if err != nil {
			log.Printf("⚠️ [setupApp] プロンプト設定の読み込みに失敗しました: %v", err)
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
			log.Printf("⚠️ [setupApp] Google Sheetsクライアントの初期化に失敗しました: %v", err)
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
		r.Use(monitoringService.LoggingMiddleware())
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		r.Use(cors.New(corsConfig))

		// 認証ミドルウェア
		authMiddleware := func(apiKey string) gin.HandlerFunc {
			return func(c *gin.Context) {
				if apiKey == "" {
					c.Next()
					return
				}
				providedKey := c.GetHeader("X-API-KEY")
				if providedKey != apiKey {
					log.Printf("❌ [認証] 無効なAPI Key")
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
					return
				}
				c.Next()
			}
		}

		// ヘルスチェックエンドポイント
		r.GET("/health", handlers.HealthCheck)

		// APIルートの定義
		v1 := r.Group("/api/v1")
		v1.Use(authMiddleware(cfg.APIKey))
		{
			chat := v1.Group("/chat")
			{
				chat.POST("/analyze", analysisHandler.AnalyzeChat)
				chat.POST("/preview", analysisHandler.PreviewChat)
			}

			monitoring := v1.Group("/monitoring")
			{
				monitoring.GET("/summary", monitoringHandler.GetSummary)
			}
		}

		app = r
	})
	return app
}

// unavailableWriter Sheets認証が設定されていないときのフォールバック
type unavailableWriter struct{}

func (unavailableWriter) Write(ctx context.Context, spreadsheetID string, payload *models.SheetPayload) (string, error) {
	return "", &sheets.WriteError{Op: "auth", Err: errors.New("Google Sheetsの認証情報が設定されていません")}
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	// Ginアプリケーションをセットアップ（初回のみ実行される）
	app := setupApp()
	app.ServeHTTP(w, r)
}
