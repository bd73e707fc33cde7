package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"strings"
	"time"

	"chat-insight-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// 必須列（ヘッダー名は完全一致）
const (
	ColGuestID    = "guest_id"
	ColUsername   = "username"
	ColText       = "original_text"
	ColInsertedAt = "inserted_at"
)

// SchemaError 必須列が欠けている場合のエラー。処理開始前に致命的として扱います。
type SchemaError struct {
	MissingColumns []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("必要な列が見つかりませんでした: %s。ファイルのヘッダー行を確認してください。", strings.Join(e.MissingColumns, ", "))
}

// Result パース結果。Recordsは入力ファイルの行順を保持します。
type Result struct {
	Records []models.CommentRecord
	Skipped []models.RowDiagnostic
}

// inserted_atとして受け付けるタイムスタンプ書式
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-01-02",
	"2006/1/2",
}

// ParseUpload アップロードされたファイルをコメントレコードに変換します。
// 拡張子が.xlsxならExcelとして、それ以外はCSVとして読み込みます。
// タイムスタンプ等を解釈できない行はスキップし、診断情報として収集します。
func ParseUpload(fileName string, data []byte) (*Result, error) {
	var rows [][]string

	if strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("Excelファイルの読み込みに失敗: %w", err)
		}
		defer f.Close()
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("Excelシートの行取得に失敗: %w", err)
		}
	} else {
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		var err error
		rows, err = r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("CSVファイルの解析に失敗: %w", err)
		}
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("ファイルにはヘッダー行と少なくとも1行のデータが必要です")
	}

	return parseRows(rows)
}

func parseRows(rows [][]string) (*Result, error) {
	header := rows[0]
	dataRows := rows[1:]

	guestIdx := findIndex(header, ColGuestID)
	userIdx := findIndex(header, ColUsername)
	textIdx := findIndex(header, ColText)
	timeIdx := findIndex(header, ColInsertedAt)

	var missing []string
	for col, idx := range map[string]int{
		ColGuestID:    guestIdx,
		ColUsername:   userIdx,
		ColText:       textIdx,
		ColInsertedAt: timeIdx,
	} {
		if idx == -1 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		log.Printf("❌ [列検出] 必須列が不足しています: %v (ヘッダー: %v)", missing, header)
		return nil, &SchemaError{MissingColumns: missing}
	}

	maxIdx := guestIdx
	for _, idx := range []int{userIdx, textIdx, timeIdx} {
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	result := &Result{}
	for i, row := range dataRows {
		rowNum := i + 2 // 1始まり + ヘッダー行

		if len(row) <= maxIdx {
			result.Skipped = append(result.Skipped, models.RowDiagnostic{
				Row:    rowNum,
				Reason: fmt.Sprintf("列数不足 (len=%d, 必要=%d)", len(row), maxIdx+1),
			})
			continue
		}

		ts, err := parseTimestamp(strings.TrimSpace(row[timeIdx]))
		if err != nil {
			result.Skipped = append(result.Skipped, models.RowDiagnostic{
				Row:    rowNum,
				Reason: fmt.Sprintf("日付解析失敗('%s')", row[timeIdx]),
			})
			continue
		}

		// 空のコメント本文はフィルタせず、そのまま分類に回します。
		result.Records = append(result.Records, models.CommentRecord{
			GuestID:  strings.TrimSpace(row[guestIdx]),
			Username: strings.TrimSpace(row[userIdx]),
			Text:     strings.TrimSpace(row[textIdx]),
			PostedAt: ts,
			Row:      rowNum,
		})
	}

	log.Printf("📊 CSV解析結果: 成功=%d件, スキップ=%d件", len(result.Records), len(result.Skipped))
	return result, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("タイムスタンプが空です")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("対応していないタイムスタンプ形式: %s", s)
}

// findIndex finds the index of the first candidate in a slice
func findIndex(slice []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, item := range slice {
			if strings.EqualFold(strings.TrimSpace(item), candidate) {
				return i
			}
		}
	}
	return -1
}
