package sheets

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// WriteError スプレッドシートへの書き込み失敗。
// 認証失敗・対象不達は限定的なリトライの後に呼び出し元へそのまま伝えます。
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("スプレッドシート書き込みエラー (%s): %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Client Google Sheets APIの薄いラッパー。
// 値の書き込みは5000行単位に分割し、書式設定リクエストは50件単位で
// バッチ実行します（APIの制限に合わせた分割）。
type Client struct {
	svc *sheets.Service

	maxRowsPerRequest  int
	maxBatchRequests   int
	retryAttempts      int
	retryBaseWait      time.Duration
	interBatchInterval time.Duration
}

// NewClient サービスアカウント認証でクライアントを作成します。
// 認証情報はファイルパスかインラインJSONのどちらかで指定します。
func NewClient(ctx context.Context, serviceAccountFile, credentialsJSON string) (*Client, error) {
	var credBytes []byte
	switch {
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("サービスアカウントファイルの読み込みに失敗: %w", err)
		}
		credBytes = b
	case credentialsJSON != "":
		credBytes = []byte(credentialsJSON)
	default:
		return nil, fmt.Errorf("Google認証情報が設定されていません")
	}

	jwtConfig, err := google.JWTConfigFromJSON(credBytes, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("サービスアカウント認証情報の解析に失敗: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("Sheets APIサービスの初期化に失敗: %w", err)
	}

	return newClientWithService(svc), nil
}

func newClientWithService(svc *sheets.Service) *Client {
	return &Client{
		svc:                svc,
		maxRowsPerRequest:  5000,
		maxBatchRequests:   50,
		retryAttempts:      3,
		retryBaseWait:      2 * time.Second,
		interBatchInterval: 500 * time.Millisecond,
	}
}

// CreateSpreadsheet 新しいスプレッドシートを作成してIDを返します
func (c *Client) CreateSpreadsheet(ctx context.Context, title string) (string, error) {
	ss, err := c.svc.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return "", &WriteError{Op: "create", Err: err}
	}
	log.Printf("📄 スプレッドシートを作成しました: %s", ss.SpreadsheetId)
	return ss.SpreadsheetId, nil
}

// sheetID シート名からシートIDを取得します。見つからない場合は-1を返します。
func (c *Client) sheetID(ctx context.Context, spreadsheetID, sheetName string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return -1, &WriteError{Op: "get", Err: err}
	}
	for _, sh := range ss.Sheets {
		if sh.Properties.Title == sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return -1, nil
}

// firstSheetID 先頭シートのIDを取得します
func (c *Client) firstSheetID(ctx context.Context, spreadsheetID string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return -1, &WriteError{Op: "get", Err: err}
	}
	if len(ss.Sheets) == 0 {
		return -1, &WriteError{Op: "get", Err: fmt.Errorf("シートが存在しません")}
	}
	return ss.Sheets[0].Properties.SheetId, nil
}

// renameSheet シート名を変更します
func (c *Client) renameSheet(ctx context.Context, spreadsheetID string, sheetID int64, newName string) error {
	return c.batchUpdate(ctx, spreadsheetID, []*sheets.Request{{
		UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{SheetId: sheetID, Title: newName},
			Fields:     "title",
		},
	}})
}

// addSheet 新しいシートを作成してIDを返します
func (c *Client) addSheet(ctx context.Context, spreadsheetID, sheetName string) (int64, error) {
	resp, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheetName},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return -1, &WriteError{Op: "addSheet", Err: err}
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return -1, &WriteError{Op: "addSheet", Err: fmt.Errorf("シートIDが応答に含まれていません")}
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// clearSheet シートの値を全消去します（タブ全体を上書きする前処理）
func (c *Client) clearSheet(ctx context.Context, spreadsheetID, sheetName string) error {
	_, err := c.svc.Spreadsheets.Values.Clear(spreadsheetID, sheetName, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return &WriteError{Op: "clear", Err: err}
	}
	return nil
}

// writeValues 値をシートへ書き込みます。大量データは分割して送信します。
func (c *Client) writeValues(ctx context.Context, spreadsheetID, sheetName string, data [][]interface{}) error {
	for start := 0; start < len(data); start += c.maxRowsPerRequest {
		end := start + c.maxRowsPerRequest
		if end > len(data) {
			end = len(data)
		}
		rangeName := fmt.Sprintf("%s!A%d", sheetName, start+1)
		err := c.withRetry(ctx, "values.update", func() error {
			_, err := c.svc.Spreadsheets.Values.Update(spreadsheetID, rangeName, &sheets.ValueRange{
				Values: data[start:end],
			}).ValueInputOption("RAW").Context(ctx).Do()
			return err
		})
		if err != nil {
			return err
		}
		if end < len(data) {
			log.Printf("📝 データを書き込んでいます... (%d/%d行)", end, len(data))
		}
	}
	return nil
}

// batchUpdate 書式設定などのリクエストを50件単位で実行します
func (c *Client) batchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) error {
	for start := 0; start < len(requests); start += c.maxBatchRequests {
		end := start + c.maxBatchRequests
		if end > len(requests) {
			end = len(requests)
		}
		err := c.withRetry(ctx, "batchUpdate", func() error {
			_, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
				Requests: requests[start:end],
			}).Context(ctx).Do()
			return err
		})
		if err != nil {
			return err
		}
		// レート制限対策の待機
		if end < len(requests) {
			select {
			case <-time.After(c.interBatchInterval):
			case <-ctx.Done():
				return &WriteError{Op: "batchUpdate", Err: ctx.Err()}
			}
		}
	}
	return nil
}

// withRetry 一時的な障害（429/5xx）に限って限定回数リトライします。
// 認証エラーなどはリトライせず即座に返します。
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return &WriteError{Op: op, Err: lastErr}
		}
		if attempt < c.retryAttempts {
			wait := time.Duration(attempt) * c.retryBaseWait
			log.Printf("⚠️ [Sheets] %s が失敗しました。リトライします (%d/%d): %v", op, attempt, c.retryAttempts, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return &WriteError{Op: op, Err: ctx.Err()}
			}
		}
	}
	return &WriteError{Op: op, Err: lastErr}
}

func isTransient(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return false
}
