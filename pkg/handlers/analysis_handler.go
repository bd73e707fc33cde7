package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"chat-insight-api/pkg/ingest"
	"chat-insight-api/pkg/services"
	"chat-insight-api/pkg/sheets"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler チャットコメント分析のハンドラ
type AnalysisHandler struct {
	analysisService *services.AnalysisService
	companyName     string // スプレッドシートタイトルの接頭辞（任意）
}

// NewAnalysisHandler 新しいAnalysisHandlerを作成
func NewAnalysisHandler(analysisService *services.AnalysisService, companyName string) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		companyName:     companyName,
	}
}

// AnalyzeChat CSVを受け取り、分類・回答判定・集計を行って結果を書き出します。
// output=sheets（デフォルト）はスプレッドシートURLを、output=excelは
// xlsxファイルを返します。
func (h *AnalysisHandler) AnalyzeChat(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(20 << 20); err != nil { // 20MB limit
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの解析に失敗しました。multipart/form-dataで送信してください。",
		})
		return
	}

	output := c.DefaultPostForm("output", "sheets")
	if output != "sheets" && output != "excel" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("無効な出力形式です: %s。'sheets' か 'excel' を指定してください。", output),
		})
		return
	}

	fileName, fileData, err := readFormFile(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "ファイルの取得に失敗しました。",
		})
		return
	}

	// 書き起こしと手動判定CSVは任意
	_, transcriptData, _ := readFormFile(c, "transcript")
	_, manualData, _ := readFormFile(c, "manual")

	input := services.AnalysisInput{
		FileName:       fileName,
		FileData:       fileData,
		TranscriptData: transcriptData,
		ManualData:     manualData,
		SpreadsheetID:  c.PostForm("spreadsheet_id"),
		Output:         output,
		Title:          h.analysisTitle(c.PostForm("title"), fileName),
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), input)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	if output == "excel" {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, excelDownloadName(fileName)))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.ExcelData)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"run_id":             result.RunID,
		"spreadsheet_url":    result.SpreadsheetURL,
		"statistics":         result.Stats,
		"skipped_rows":       result.SkippedRows,
		"transcript_skipped": result.TranscriptSkipped,
		"matched_by_speaker": result.MatchedBySpeaker,
		"matched_by_manual":  result.MatchedByManual,
	})
}

// PreviewChat 取り込みのみを実行して解析診断を返します。
// 分類APIやスプレッドシートへのアクセスは発生しません。
func (h *AnalysisHandler) PreviewChat(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(20 << 20); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの解析に失敗しました。multipart/form-dataで送信してください。",
		})
		return
	}

	fileName, fileData, err := readFormFile(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "ファイルの取得に失敗しました。",
		})
		return
	}

	result, err := h.analysisService.Preview(fileName, fileData)
	if err != nil {
		h.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"record_count": len(result.Records),
		"skipped_rows": result.Skipped,
	})
}

// respondAnalysisError エラーの種類に応じたHTTPステータスで応答します
func (h *AnalysisHandler) respondAnalysisError(c *gin.Context, err error) {
	var schemaErr *ingest.SchemaError
	if errors.As(err, &schemaErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":         false,
			"error":           "必須列が不足しています。",
			"missing_columns": schemaErr.MissingColumns,
		})
		return
	}

	var writeErr *sheets.WriteError
	if errors.As(err, &writeErr) {
		log.Printf("❌ [分析] スプレッドシートへの書き込みに失敗しました: %v", writeErr)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "スプレッドシートへの書き込みに失敗しました。",
		})
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusRequestTimeout, gin.H{
			"success": false,
			"error":   "リクエストがキャンセルされました。",
		})
		return
	}

	log.Printf("❌ [分析] 処理に失敗しました: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "分析処理に失敗しました。",
	})
}

// excelDownloadName アップロードされたファイル名からダウンロード用のxlsx名を作ります
func excelDownloadName(fileName string) string {
	base := strings.TrimSuffix(fileName, ".csv")
	base = strings.TrimSuffix(base, ".xlsx")
	return base + "_分析結果.xlsx"
}

// analysisTitle スプレッドシート新規作成時のタイトルを決めます
func (h *AnalysisHandler) analysisTitle(title, fileName string) string {
	if title != "" {
		return title
	}
	base := strings.TrimSuffix(fileName, ".csv")
	base = strings.TrimSuffix(base, ".xlsx")
	title = fmt.Sprintf("%s 分析結果 %s", base, time.Now().Format("2006-01-02"))
	if h.companyName != "" {
		title = h.companyName + " " + title
	}
	return title
}
