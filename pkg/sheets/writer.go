package sheets

import (
	"context"
	"fmt"
	"log"

	"chat-insight-api/pkg/models"

	sheets "google.golang.org/api/sheets/v4"
)

// シート名（タブ）
const (
	MainSheetName     = "メインシート"
	QuestionSheetName = "質問シート"
)

var mainHeaders = []string{"guest_id", "username", "original_text", "inserted_at", "チャットの属性", "チャット感情"}
var questionHeaders = []string{"guest_id", "username", "original_text", "inserted_at", "チャットの属性", "チャット感情", "回答状況"}

// Writer SheetPayloadをスプレッドシートの2タブへ書き出します。
// タブ全体を毎回上書きするため、同じペイロードで再実行しても
// 同じ内容が再現されます。
type Writer struct {
	client *Client
}

// NewWriter 新しいWriterを作成
func NewWriter(client *Client) *Writer {
	return &Writer{client: client}
}

// Write ペイロードを書き出し、スプレッドシートのURLを返します。
// spreadsheetIDが空の場合は新規作成します。
func (w *Writer) Write(ctx context.Context, spreadsheetID string, payload *models.SheetPayload) (string, error) {
	if spreadsheetID == "" {
		id, err := w.client.CreateSpreadsheet(ctx, payload.Title)
		if err != nil {
			return "", err
		}
		spreadsheetID = id
	}

	if err := w.writeMainSheet(ctx, spreadsheetID, payload); err != nil {
		return "", err
	}
	if err := w.writeQuestionSheet(ctx, spreadsheetID, payload); err != nil {
		return "", err
	}

	url := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s", spreadsheetID)
	log.Printf("✅ スプレッドシートへの書き込みが完了しました: %s", url)
	return url, nil
}

// writeMainSheet メインシート（全コメント + 統計ブロック）を書き出します
func (w *Writer) writeMainSheet(ctx context.Context, spreadsheetID string, payload *models.SheetPayload) error {
	// 既存のメインシートを探し、なければデフォルトシートを改名して使う
	sheetID, err := w.client.sheetID(ctx, spreadsheetID, MainSheetName)
	if err != nil {
		return err
	}
	if sheetID == -1 {
		for _, name := range []string{"Sheet1", "シート1"} {
			if sheetID, err = w.client.sheetID(ctx, spreadsheetID, name); err != nil {
				return err
			}
			if sheetID != -1 {
				break
			}
		}
		if sheetID == -1 {
			if sheetID, err = w.client.firstSheetID(ctx, spreadsheetID); err != nil {
				return err
			}
		}
		if err := w.client.renameSheet(ctx, spreadsheetID, sheetID, MainSheetName); err != nil {
			return err
		}
	}

	statsBlock := mainStatsBlock(payload.Stats)
	rows := append(statsBlock, toRow(mainHeaders))
	for _, c := range payload.Comments {
		rows = append(rows, commentRow(c, false))
	}

	if err := w.client.clearSheet(ctx, spreadsheetID, MainSheetName); err != nil {
		return err
	}
	if err := w.client.writeValues(ctx, spreadsheetID, MainSheetName, rows); err != nil {
		return err
	}

	// データ行の範囲（0始まり、ヘッダー行の次から）
	dataStart := int64(len(statsBlock)) + 1
	dataEnd := dataStart + int64(len(payload.Comments))
	if len(payload.Comments) == 0 {
		return nil
	}

	var requests []*sheets.Request
	requests = append(requests, validationRequest(sheetID, 1, uniqueUsernames(payload.Comments), dataStart, dataEnd))
	requests = append(requests, validationRequest(sheetID, 4, attributeOptions(), dataStart, dataEnd))
	requests = append(requests, validationRequest(sheetID, 5, sentimentOptions(), dataStart, dataEnd))
	requests = append(requests, colorRequests(sheetID, 4, dataStart, attributeValues(payload.Comments))...)
	requests = append(requests, colorRequests(sheetID, 5, dataStart, sentimentValues(payload.Comments))...)

	return w.client.batchUpdate(ctx, spreadsheetID, requests)
}

// writeQuestionSheet 質問シート（質問コメント + 回答率）を書き出します
func (w *Writer) writeQuestionSheet(ctx context.Context, spreadsheetID string, payload *models.SheetPayload) error {
	sheetID, err := w.client.sheetID(ctx, spreadsheetID, QuestionSheetName)
	if err != nil {
		return err
	}
	if sheetID == -1 {
		if sheetID, err = w.client.addSheet(ctx, spreadsheetID, QuestionSheetName); err != nil {
			return err
		}
	}

	statsBlock := questionStatsBlock(payload.Stats)
	rows := append(statsBlock, toRow(questionHeaders))
	for _, c := range payload.Questions {
		rows = append(rows, commentRow(c, true))
	}

	if err := w.client.clearSheet(ctx, spreadsheetID, QuestionSheetName); err != nil {
		return err
	}
	if err := w.client.writeValues(ctx, spreadsheetID, QuestionSheetName, rows); err != nil {
		return err
	}

	if len(payload.Questions) == 0 {
		return nil
	}

	dataStart := int64(len(statsBlock)) + 1
	var requests []*sheets.Request
	requests = append(requests, validationRequest(sheetID, 6, answerStatusOptions(), dataStart, dataStart+int64(len(payload.Questions))))
	requests = append(requests, colorRequests(sheetID, 6, dataStart, answerStatusValues(payload.Questions))...)

	return w.client.batchUpdate(ctx, spreadsheetID, requests)
}

// --- 行の構築 ---

func mainStatsBlock(stats models.StatisticsSummary) [][]interface{} {
	rows := [][]interface{}{
		{"=== 統計情報 ==="},
		{fmt.Sprintf("全コメント件数: %d", stats.TotalComments)},
		{""},
		{"【チャットの属性別件数】"},
	}
	for _, lc := range stats.AttributeCounts {
		rows = append(rows, []interface{}{fmt.Sprintf("%s: %d件 (%.1f%%)", lc.Label, lc.Count, lc.Percent)})
	}
	rows = append(rows, []interface{}{""}, []interface{}{"【チャット感情別件数】"})
	for _, lc := range stats.SentimentCounts {
		rows = append(rows, []interface{}{fmt.Sprintf("%s: %d件 (%.1f%%)", lc.Label, lc.Count, lc.Percent)})
	}
	rows = append(rows, []interface{}{""}, []interface{}{"=== コメントデータ ==="})
	return rows
}

func questionStatsBlock(stats models.StatisticsSummary) [][]interface{} {
	return [][]interface{}{
		{"=== 統計情報 ==="},
		{fmt.Sprintf("質問コメント件数: %d", stats.QuestionCount)},
		{fmt.Sprintf("質問回答率: %.1f%%", stats.AnswerRate*100)},
		{""},
		{"=== 質問コメントデータ ==="},
	}
}

func commentRow(c models.ClassifiedComment, withAnswer bool) []interface{} {
	attr, sent := labelStrings(c)
	row := []interface{}{
		c.Record.GuestID,
		c.Record.Username,
		c.Record.Text,
		c.Record.PostedAt.Format("2006-01-02 15:04:05"),
		attr,
		sent,
	}
	if withAnswer {
		row = append(row, string(c.AnswerStatus))
	}
	return row
}

func labelStrings(c models.ClassifiedComment) (string, string) {
	if c.Classification.Failed {
		return models.UnknownBucket, models.UnknownBucket
	}
	return string(c.Classification.Attribute), string(c.Classification.Sentiment)
}

func toRow(headers []string) []interface{} {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

// --- ドロップダウンと色付け ---

func attributeOptions() []string {
	var opts []string
	for _, a := range models.ChatAttributes() {
		opts = append(opts, string(a))
	}
	return opts
}

func sentimentOptions() []string {
	var opts []string
	for _, s := range models.ChatSentiments() {
		opts = append(opts, string(s))
	}
	return opts
}

func answerStatusOptions() []string {
	var opts []string
	for _, s := range models.AnswerStatuses() {
		opts = append(opts, string(s))
	}
	return opts
}

func uniqueUsernames(comments []models.ClassifiedComment) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range comments {
		if c.Record.Username != "" && !seen[c.Record.Username] {
			seen[c.Record.Username] = true
			names = append(names, c.Record.Username)
		}
	}
	return names
}

func attributeValues(comments []models.ClassifiedComment) []string {
	values := make([]string, len(comments))
	for i, c := range comments {
		values[i], _ = labelStrings(c)
	}
	return values
}

func sentimentValues(comments []models.ClassifiedComment) []string {
	values := make([]string, len(comments))
	for i, c := range comments {
		_, values[i] = labelStrings(c)
	}
	return values
}

func answerStatusValues(comments []models.ClassifiedComment) []string {
	values := make([]string, len(comments))
	for i, c := range comments {
		values[i] = string(c.AnswerStatus)
	}
	return values
}

// validationRequest 列にONE_OF_LISTのドロップダウンを設定するリクエスト
func validationRequest(sheetID int64, column int64, options []string, startRow, endRow int64) *sheets.Request {
	values := make([]*sheets.ConditionValue, len(options))
	for i, opt := range options {
		values[i] = &sheets.ConditionValue{UserEnteredValue: opt}
	}
	return &sheets.Request{
		SetDataValidation: &sheets.SetDataValidationRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    startRow,
				EndRowIndex:      endRow,
				StartColumnIndex: column,
				EndColumnIndex:   column + 1,
			},
			Rule: &sheets.DataValidationRule{
				Condition:    &sheets.BooleanCondition{Type: "ONE_OF_LIST", Values: values},
				ShowCustomUi: true,
				Strict:       false,
			},
		},
	}
}

// colorRequests データ行の値に応じた背景色リクエストを生成します。
// 同じ色が連続する行は1つの範囲にまとめて、リクエスト数を抑えます。
func colorRequests(sheetID int64, column int64, dataStart int64, values []string) []*sheets.Request {
	var requests []*sheets.Request

	flushRun := func(start, end int, color models.RGBColor) {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    dataStart + int64(start),
					EndRowIndex:      dataStart + int64(end) + 1,
					StartColumnIndex: column,
					EndColumnIndex:   column + 1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: &sheets.Color{
							Red:   color.Red,
							Green: color.Green,
							Blue:  color.Blue,
						},
					},
				},
				Fields: "userEnteredFormat.backgroundColor",
			},
		})
	}

	runStart := -1
	var runLabel string
	for i, v := range values {
		if _, ok := models.ColorMap[v]; !ok {
			if runStart != -1 {
				flushRun(runStart, i-1, models.ColorMap[runLabel])
				runStart = -1
			}
			continue
		}
		if runStart == -1 {
			runStart, runLabel = i, v
			continue
		}
		if v != runLabel {
			flushRun(runStart, i-1, models.ColorMap[runLabel])
			runStart, runLabel = i, v
		}
	}
	if runStart != -1 {
		flushRun(runStart, len(values)-1, models.ColorMap[runLabel])
	}
	return requests
}
