package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"chat-insight-api/pkg/ingest"
	"chat-insight-api/pkg/models"
	"chat-insight-api/pkg/transcript"

	"github.com/google/uuid"
)

// CommentClassifier コメント分類器のインターフェース
type CommentClassifier interface {
	ClassifyComments(ctx context.Context, records []models.CommentRecord) []models.ClassifiedComment
}

// SheetWriter Google Sheetsへの書き込みインターフェース
type SheetWriter interface {
	Write(ctx context.Context, spreadsheetID string, payload *models.SheetPayload) (string, error)
}

// ExcelRenderer xlsx出力のインターフェース
type ExcelRenderer interface {
	Export(payload *models.SheetPayload) ([]byte, error)
}

// AnalysisInput 1回の分析リクエストの入力
type AnalysisInput struct {
	FileName       string
	FileData       []byte
	TranscriptData []byte // 任意。書き起こしテキスト
	ManualData     []byte // 任意。手動回答判定CSV
	SpreadsheetID  string // 空なら新規作成
	Output         string // "sheets" または "excel"
	Title          string
}

// AnalysisRun 1回の分析の実行コンテキスト。リクエストごとに作成して破棄します。
type AnalysisRun struct {
	ID         string
	FileName   string
	StartedAt  time.Time
	StageTimes map[string]time.Duration
}

func newAnalysisRun(fileName string) *AnalysisRun {
	return &AnalysisRun{
		ID:         uuid.New().String(),
		FileName:   fileName,
		StartedAt:  time.Now(),
		StageTimes: make(map[string]time.Duration),
	}
}

func (r *AnalysisRun) stage(name string, fn func()) {
	start := time.Now()
	fn()
	r.StageTimes[name] = time.Since(start)
}

// AnalysisResult 分析結果のサマリー
type AnalysisResult struct {
	RunID             string                   `json:"run_id"`
	SpreadsheetURL    string                   `json:"spreadsheet_url,omitempty"`
	ExcelData         []byte                   `json:"-"`
	Stats             models.StatisticsSummary `json:"statistics"`
	SkippedRows       []models.RowDiagnostic   `json:"skipped_rows,omitempty"`
	TranscriptSkipped int                      `json:"transcript_skipped,omitempty"`
	MatchedBySpeaker  int                      `json:"matched_by_speaker,omitempty"`
	MatchedByManual   int                      `json:"matched_by_manual,omitempty"`
	Duration          time.Duration            `json:"-"`
}

// AnalysisService CSV取り込みから書き出しまでの分析パイプライン全体を実行します。
// 分類の内部以外は直列で、キャンセルされた実行は書き込みを行いません。
type AnalysisService struct {
	classifier CommentClassifier
	matcher    *transcript.Matcher
	stats      *StatisticsService
	writer     SheetWriter
	exporter   ExcelRenderer
	monitoring *MonitoringService
}

// NewAnalysisService 新しいAnalysisServiceを作成
func NewAnalysisService(classifier CommentClassifier, matcher *transcript.Matcher, stats *StatisticsService, writer SheetWriter, exporter ExcelRenderer, monitoring *MonitoringService) *AnalysisService {
	return &AnalysisService{
		classifier: classifier,
		matcher:    matcher,
		stats:      stats,
		writer:     writer,
		exporter:   exporter,
		monitoring: monitoring,
	}
}

// Preview 取り込みのみを行うドライラン。分類や書き出しは行いません。
func (s *AnalysisService) Preview(fileName string, data []byte) (*ingest.Result, error) {
	return ingest.ParseUpload(fileName, data)
}

// Analyze 分析パイプラインを実行します。
// 取り込み → 分類 → 回答判定 → 集計 → 書き出しの順で進みます。
func (s *AnalysisService) Analyze(ctx context.Context, input AnalysisInput) (*AnalysisResult, error) {
	run := newAnalysisRun(input.FileName)
	log.Printf("📊 分析を開始します [%s]: %s", run.ID, input.FileName)

	var parsed *ingest.Result
	var err error
	run.stage("ingest", func() {
		parsed, err = ingest.ParseUpload(input.FileName, input.FileData)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("📊 [%s] 取り込み完了: %d件 (読み飛ばし %d行)", run.ID, len(parsed.Records), len(parsed.Skipped))

	var comments []models.ClassifiedComment
	run.stage("classify", func() {
		comments = s.classifier.ClassifyComments(ctx, parsed.Records)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		RunID:       run.ID,
		SkippedRows: parsed.Skipped,
	}

	if len(input.TranscriptData) > 0 {
		run.stage("match", func() {
			segments, skipped := transcript.Parse(input.TranscriptData)
			result.TranscriptSkipped = skipped
			result.MatchedBySpeaker = s.matcher.MatchQuestions(ctx, comments, segments)
		})
		log.Printf("🎤 [%s] 書き起こし照合完了: %d件を回答済みと判定", run.ID, result.MatchedBySpeaker)
	}

	if len(input.ManualData) > 0 {
		judgments, err := transcript.ParseManualCSV(input.ManualData)
		if err != nil {
			return nil, fmt.Errorf("手動判定CSVの解析に失敗: %w", err)
		}
		result.MatchedByManual = s.matcher.ApplyManual(comments, judgments)
		log.Printf("📝 [%s] 手動判定を適用: %d件", run.ID, result.MatchedByManual)
	}

	var stats models.StatisticsSummary
	run.stage("aggregate", func() {
		stats = s.stats.Aggregate(comments)
	})
	result.Stats = stats

	payload := &models.SheetPayload{
		Title:     input.Title,
		Comments:  comments,
		Questions: questionComments(comments),
		Stats:     stats,
	}

	// キャンセル済みの実行は書き込みを行わない
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run.stage("write", func() {
		if input.Output == "excel" {
			result.ExcelData, err = s.exporter.Export(payload)
		} else {
			result.SpreadsheetURL, err = s.writer.Write(ctx, input.SpreadsheetID, payload)
		}
	})
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(run.StartedAt)
	if s.monitoring != nil {
		s.monitoring.LogRun(RunRecord{
			RunID:             run.ID,
			FileName:          input.FileName,
			Timestamp:         run.StartedAt,
			TotalComments:     stats.TotalComments,
			QuestionCount:     stats.QuestionCount,
			UnclassifiedCount: stats.UnclassifiedCount,
			Duration:          result.Duration,
			Output:            input.Output,
		})
	}

	log.Printf("✅ [%s] 分析完了: %d件 / 所要時間 %v (取込 %v, 分類 %v, 書込 %v)",
		run.ID, stats.TotalComments, result.Duration.Round(time.Millisecond),
		run.StageTimes["ingest"].Round(time.Millisecond),
		run.StageTimes["classify"].Round(time.Millisecond),
		run.StageTimes["write"].Round(time.Millisecond))

	return result, nil
}

// questionComments 質問と分類されたコメントだけを抽出します
func questionComments(comments []models.ClassifiedComment) []models.ClassifiedComment {
	var questions []models.ClassifiedComment
	for _, c := range comments {
		if c.Classification.IsQuestion && !c.Classification.Failed {
			questions = append(questions, c)
		}
	}
	return questions
}
