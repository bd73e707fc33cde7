package export

import (
	"bytes"
	"testing"
	"time"

	"chat-insight-api/pkg/models"
	"chat-insight-api/pkg/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

func samplePayload() *models.SheetPayload {
	posted := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	comments := []models.ClassifiedComment{
		{
			Record: models.CommentRecord{GuestID: "g-1", Username: "視聴者A", Text: "新曲いつ出ますか？", PostedAt: posted},
			Classification: models.Classification{
				Attribute:  models.AttributeQuestion,
				Sentiment:  models.SentimentNeutral,
				IsQuestion: true,
			},
			AnswerStatus: models.AnswerStatusPerformer,
		},
		{
			Record: models.CommentRecord{GuestID: "g-2", Username: "視聴者B", Text: "最高でした！", PostedAt: posted},
			Classification: models.Classification{
				Attribute: models.AttributeImpression,
				Sentiment: models.SentimentPositive,
			},
			AnswerStatus: models.AnswerStatusNone,
		},
	}
	return &models.SheetPayload{
		Title:     "配信コメント分析",
		Comments:  comments,
		Questions: comments[:1],
		Stats: models.StatisticsSummary{
			TotalComments: 2,
			AttributeCounts: []models.LabelCount{
				{Label: "質問", Count: 1, Percent: 50.0},
				{Label: "感想", Count: 1, Percent: 50.0},
			},
			SentimentCounts: []models.LabelCount{
				{Label: "ポジティブ", Count: 1, Percent: 50.0},
				{Label: "ニュートラル", Count: 1, Percent: 50.0},
			},
			QuestionCount: 1,
			AnsweredCount: 1,
			AnswerRate:    1.0,
		},
	}
}

func TestExportTwoSheets(t *testing.T) {
	exporter := NewExcelExporter()

	data, err := exporter.Export(samplePayload())
	assert.NoError(t, err)
	assert.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	assert.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheets.MainSheetName, sheets.QuestionSheetName}, f.GetSheetList())
}

func TestExportMainSheetContents(t *testing.T) {
	exporter := NewExcelExporter()
	data, err := exporter.Export(samplePayload())
	assert.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	assert.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheets.MainSheetName, "A1")
	assert.NoError(t, err)
	assert.Equal(t, "=== 統計情報 ===", v)

	v, _ = f.GetCellValue(sheets.MainSheetName, "A2")
	assert.Equal(t, "全コメント件数: 2", v)

	// 統計4行 + 空行 + 属性見出し + 2行 + 空行 + 感情見出し + 2行 + 空行 + データ見出し
	// の後にヘッダー行が来る
	rows, err := f.GetRows(sheets.MainSheetName)
	assert.NoError(t, err)

	headerRow := -1
	for i, row := range rows {
		if len(row) > 0 && row[0] == "guest_id" {
			headerRow = i
			break
		}
	}
	assert.NotEqual(t, -1, headerRow, "ヘッダー行が見つかりません")
	assert.Equal(t, "チャットの属性", rows[headerRow][4])
	assert.Equal(t, "g-1", rows[headerRow+1][0])
	assert.Equal(t, "質問", rows[headerRow+1][4])
	assert.Equal(t, "感想", rows[headerRow+2][4])
}

func TestExportQuestionSheetContents(t *testing.T) {
	exporter := NewExcelExporter()
	data, err := exporter.Export(samplePayload())
	assert.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	assert.NoError(t, err)
	defer f.Close()

	v, _ := f.GetCellValue(sheets.QuestionSheetName, "A2")
	assert.Equal(t, "質問コメント件数: 1", v)

	v, _ = f.GetCellValue(sheets.QuestionSheetName, "A3")
	assert.Equal(t, "質問回答率: 100.0%", v)

	v, _ = f.GetCellValue(sheets.QuestionSheetName, "G6")
	assert.Equal(t, "回答状況", v)

	v, _ = f.GetCellValue(sheets.QuestionSheetName, "G7")
	assert.Equal(t, "出演者", v)
}

func TestExportFailedClassification(t *testing.T) {
	payload := &models.SheetPayload{
		Title: "配信コメント分析",
		Comments: []models.ClassifiedComment{
			{
				Record:         models.CommentRecord{GuestID: "g-9", Username: "C", Text: "test", PostedAt: time.Now()},
				Classification: models.Unclassified("timeout"),
			},
		},
		Stats: models.StatisticsSummary{TotalComments: 1},
	}

	exporter := NewExcelExporter()
	data, err := exporter.Export(payload)
	assert.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	assert.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheets.MainSheetName)
	assert.NoError(t, err)

	last := rows[len(rows)-1]
	assert.Equal(t, models.UnknownBucket, last[4])
	assert.Equal(t, models.UnknownBucket, last[5])
}

func TestExportEmptyPayload(t *testing.T) {
	exporter := NewExcelExporter()
	data, err := exporter.Export(&models.SheetPayload{Title: "空の分析"})
	assert.NoError(t, err)
	assert.NotEmpty(t, data)
}
