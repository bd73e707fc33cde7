package export

import (
	"fmt"
	"strings"

	"chat-insight-api/pkg/models"
	"chat-insight-api/pkg/sheets"

	"github.com/xuri/excelize/v2"
)

var mainHeaders = []string{"guest_id", "username", "original_text", "inserted_at", "チャットの属性", "チャット感情"}
var questionHeaders = []string{"guest_id", "username", "original_text", "inserted_at", "チャットの属性", "チャット感情", "回答状況"}

// 列幅（Google Sheets版と見た目を揃える）
var columnWidths = map[string]float64{
	"A": 15, "B": 20, "C": 50, "D": 15, "E": 30, "F": 20, "G": 15,
}

// ExcelExporter 分析結果をxlsxファイルとして組み立てます。
// スプレッドシート連携を使わない場合のダウンロード出力用です。
type ExcelExporter struct{}

// NewExcelExporter 新しいExcelExporterを作成
func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

// Export ペイロードを2シート構成のxlsxバイト列へ変換します
func (e *ExcelExporter) Export(payload *models.SheetPayload) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheets.MainSheetName); err != nil {
		return nil, fmt.Errorf("シート名の変更に失敗: %w", err)
	}
	if _, err := f.NewSheet(sheets.QuestionSheetName); err != nil {
		return nil, fmt.Errorf("質問シートの作成に失敗: %w", err)
	}

	if err := e.writeMainSheet(f, payload); err != nil {
		return nil, err
	}
	if err := e.writeQuestionSheet(f, payload); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsxの書き出しに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *ExcelExporter) writeMainSheet(f *excelize.File, payload *models.SheetPayload) error {
	sheet := sheets.MainSheetName
	stats := payload.Stats

	row := 1
	writeLine := func(text string) {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), text)
		row++
	}

	writeLine("=== 統計情報 ===")
	writeLine(fmt.Sprintf("全コメント件数: %d", stats.TotalComments))
	writeLine("")
	writeLine("【チャットの属性別件数】")
	for _, lc := range stats.AttributeCounts {
		writeLine(fmt.Sprintf("%s: %d件 (%.1f%%)", lc.Label, lc.Count, lc.Percent))
	}
	writeLine("")
	writeLine("【チャット感情別件数】")
	for _, lc := range stats.SentimentCounts {
		writeLine(fmt.Sprintf("%s: %d件 (%.1f%%)", lc.Label, lc.Count, lc.Percent))
	}
	writeLine("")
	writeLine("=== コメントデータ ===")

	headerRow := row
	if err := e.writeHeader(f, sheet, headerRow, mainHeaders); err != nil {
		return err
	}

	dataStart := headerRow + 1
	for i, c := range payload.Comments {
		e.writeCommentRow(f, sheet, dataStart+i, c, false)
	}
	dataEnd := dataStart + len(payload.Comments) - 1

	if len(payload.Comments) > 0 {
		e.addDropdown(f, sheet, "B", dataStart, dataEnd, uniqueUsernames(payload.Comments))
		e.addDropdown(f, sheet, "E", dataStart, dataEnd, attributeOptions())
		e.addDropdown(f, sheet, "F", dataStart, dataEnd, sentimentOptions())
		if err := e.colorColumn(f, sheet, "E", dataStart, attributeValues(payload.Comments)); err != nil {
			return err
		}
		if err := e.colorColumn(f, sheet, "F", dataStart, sentimentValues(payload.Comments)); err != nil {
			return err
		}
	}

	return e.setWidths(f, sheet, len(mainHeaders))
}

func (e *ExcelExporter) writeQuestionSheet(f *excelize.File, payload *models.SheetPayload) error {
	sheet := sheets.QuestionSheetName
	stats := payload.Stats

	f.SetCellValue(sheet, "A1", "=== 統計情報 ===")
	f.SetCellValue(sheet, "A2", fmt.Sprintf("質問コメント件数: %d", stats.QuestionCount))
	f.SetCellValue(sheet, "A3", fmt.Sprintf("質問回答率: %.1f%%", stats.AnswerRate*100))
	f.SetCellValue(sheet, "A5", "=== 質問コメントデータ ===")

	headerRow := 6
	if err := e.writeHeader(f, sheet, headerRow, questionHeaders); err != nil {
		return err
	}

	dataStart := headerRow + 1
	for i, c := range payload.Questions {
		e.writeCommentRow(f, sheet, dataStart+i, c, true)
	}
	dataEnd := dataStart + len(payload.Questions) - 1

	if len(payload.Questions) > 0 {
		e.addDropdown(f, sheet, "G", dataStart, dataEnd, answerStatusOptions())
		if err := e.colorColumn(f, sheet, "G", dataStart, answerStatusValues(payload.Questions)); err != nil {
			return err
		}
	}

	return e.setWidths(f, sheet, len(questionHeaders))
}

func (e *ExcelExporter) writeHeader(f *excelize.File, sheet string, row int, headers []string) error {
	styleID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9D9D9"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("ヘッダースタイルの作成に失敗: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, styleID)
	}
	return nil
}

func (e *ExcelExporter) writeCommentRow(f *excelize.File, sheet string, row int, c models.ClassifiedComment, withAnswer bool) {
	attr, sent := labelStrings(c)
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), c.Record.GuestID)
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), c.Record.Username)
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), c.Record.Text)
	f.SetCellValue(sheet, fmt.Sprintf("D%d", row), c.Record.PostedAt.Format("2006-01-02 15:04:05"))
	f.SetCellValue(sheet, fmt.Sprintf("E%d", row), attr)
	f.SetCellValue(sheet, fmt.Sprintf("F%d", row), sent)
	if withAnswer {
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), string(c.AnswerStatus))
	}
}

// addDropdown 列範囲にドロップダウンを設定します。
// 候補リストが長すぎてxlsxの制限を超える場合は設定をスキップします。
func (e *ExcelExporter) addDropdown(f *excelize.File, sheet, column string, startRow, endRow int, options []string) {
	if len(options) == 0 {
		return
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = fmt.Sprintf("%s%d:%s%d", column, startRow, column, endRow)
	if err := dv.SetDropList(options); err != nil {
		return
	}
	f.AddDataValidation(sheet, dv)
}

func (e *ExcelExporter) colorColumn(f *excelize.File, sheet, column string, startRow int, values []string) error {
	styleIDs := make(map[string]int)
	for i, v := range values {
		color, ok := models.ColorMap[v]
		if !ok {
			continue
		}
		styleID, ok := styleIDs[v]
		if !ok {
			var err error
			styleID, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Color: []string{color.Hex()}, Pattern: 1},
			})
			if err != nil {
				return fmt.Errorf("背景色スタイルの作成に失敗: %w", err)
			}
			styleIDs[v] = styleID
		}
		cell := fmt.Sprintf("%s%d", column, startRow+i)
		f.SetCellStyle(sheet, cell, cell, styleID)
	}
	return nil
}

func (e *ExcelExporter) setWidths(f *excelize.File, sheet string, columns int) error {
	for i := 0; i < columns; i++ {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if width, ok := columnWidths[col]; ok {
			if err := f.SetColWidth(sheet, col, col, width); err != nil {
				return fmt.Errorf("列幅の設定に失敗: %w", err)
			}
		}
	}
	return nil
}

func labelStrings(c models.ClassifiedComment) (string, string) {
	if c.Classification.Failed {
		return models.UnknownBucket, models.UnknownBucket
	}
	return string(c.Classification.Attribute), string(c.Classification.Sentiment)
}

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
		name := strings.TrimSpace(c.Record.Username)
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
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
