package ingest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

func TestParseUploadCSV(t *testing.T) {
	csvData := `guest_id,username,original_text,inserted_at
g001,たろう,こんにちは！,2024-05-01 20:00:01
g002,はなこ,音声が聞こえないです,2024-05-01 20:00:05
g003,じろう,次の配信はいつですか？,2024-05-01 20:01:12
`
	result, err := ParseUpload("comments.csv", []byte(csvData))
	assert.NoError(t, err)
	assert.Len(t, result.Records, 3)
	assert.Empty(t, result.Skipped)

	// 行順が維持されること
	assert.Equal(t, "g001", result.Records[0].GuestID)
	assert.Equal(t, "たろう", result.Records[0].Username)
	assert.Equal(t, "こんにちは！", result.Records[0].Text)
	assert.Equal(t, 2, result.Records[0].Row)
	assert.Equal(t, "g003", result.Records[2].GuestID)
	assert.Equal(t, 4, result.Records[2].Row)
}

func TestParseUploadSkipsBadTimestamp(t *testing.T) {
	// 3行中1行のタイムスタンプが壊れている → 2件 + 診断1件
	csvData := `guest_id,username,original_text,inserted_at
g001,たろう,こんにちは,2024-05-01 20:00:01
g002,はなこ,これは読めない行,not-a-date
g003,じろう,おつかれさま,2024-05-01 20:02:00
`
	result, err := ParseUpload("comments.csv", []byte(csvData))
	assert.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.Len(t, result.Skipped, 1)
	assert.Equal(t, 3, result.Skipped[0].Row)
	assert.Contains(t, result.Skipped[0].Reason, "日付解析失敗")
}

func TestParseUploadMissingColumns(t *testing.T) {
	csvData := `guest_id,comment,timestamp
g001,hello,2024-05-01
`
	_, err := ParseUpload("comments.csv", []byte(csvData))
	if err == nil {
		t.Fatal("expected SchemaError, got nil")
	}

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T: %v", err, err)
	}

	// 欠けている列名がすべて報告されること
	assert.Len(t, schemaErr.MissingColumns, 3)
	assert.Contains(t, schemaErr.Error(), "username")
	assert.Contains(t, schemaErr.Error(), "original_text")
	assert.Contains(t, schemaErr.Error(), "inserted_at")
}

func TestParseUploadEmptyBody(t *testing.T) {
	// コメント本文が空でもフィルタしない（そのまま分類に回す）
	csvData := `guest_id,username,original_text,inserted_at
g001,たろう,,2024-05-01 20:00:01
`
	result, err := ParseUpload("comments.csv", []byte(csvData))
	assert.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, "", result.Records[0].Text)
}

func TestParseUploadShortRow(t *testing.T) {
	csvData := `guest_id,username,original_text,inserted_at
g001,たろう
g002,はなこ,こんにちは,2024-05-01 20:00:05
`
	result, err := ParseUpload("comments.csv", []byte(csvData))
	assert.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "列数不足")
}

func TestParseUploadHeaderOnly(t *testing.T) {
	csvData := "guest_id,username,original_text,inserted_at\n"
	_, err := ParseUpload("comments.csv", []byte(csvData))
	assert.Error(t, err)
}

func TestParseUploadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"guest_id", "username", "original_text", "inserted_at"},
		{"g001", "たろう", "初見です", "2024-05-01 20:00:01"},
		{"g002", "はなこ", "グッズはどこで買えますか？", "2024-05-01 20:03:30"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	result, err := ParseUpload("comments.xlsx", buf.Bytes())
	assert.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, "初見です", result.Records[0].Text)
	assert.Equal(t, "グッズはどこで買えますか？", result.Records[1].Text)
}

func TestParseTimestampLayouts(t *testing.T) {
	cases := []string{
		"2024-05-01T20:00:01Z",
		"2024-05-01 20:00:01",
		"2024-05-01T20:00:01",
		"2024/5/1 20:00",
		"2024-05-01",
	}
	for _, c := range cases {
		if _, err := parseTimestamp(c); err != nil {
			t.Errorf("parseTimestamp(%q) returned error: %v", c, err)
		}
	}

	if _, err := parseTimestamp("昨日の夜"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}
