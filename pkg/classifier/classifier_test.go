package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-insight-api/pkg/models"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

// fakeCompleter テスト用のチャット補完フェイク
type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	failN   int // 最初のN回はトランスポートエラーを返す
	handler func(userPrompt string) (string, error)
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if call <= f.failN {
		return openai.ChatCompletionResponse{}, fmt.Errorf("simulated transport error")
	}

	userPrompt := req.Messages[len(req.Messages)-1].Content
	content, err := f.handler(userPrompt)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}

	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

// echoHandler プロンプト中の番号付きコメントを読み取り、
// 「？」を含むものを質問として返す決定的なフェイク応答
func echoHandler(userPrompt string) (string, error) {
	var items []string
	for _, line := range strings.Split(userPrompt, "\n") {
		idx := strings.Index(line, ": ")
		if idx < 1 {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(line[:idx], "%d", &n); err != nil {
			continue
		}
		text := line[idx+2:]
		attr := string(models.AttributeSmallTalk)
		isQ := strings.Contains(text, "？")
		if isQ {
			attr = string(models.AttributeQuestion)
		}
		items = append(items, fmt.Sprintf(`{"index":%d,"attribute":"%s","sentiment":"ニュートラル","is_question":%v}`, n, attr, isQ))
	}
	return "[" + strings.Join(items, ",") + "]", nil
}

func makeRecords(texts ...string) []models.CommentRecord {
	records := make([]models.CommentRecord, len(texts))
	for i, text := range texts {
		records[i] = models.CommentRecord{
			GuestID:  fmt.Sprintf("g%03d", i),
			Username: "guest",
			Text:     text,
			PostedAt: time.Date(2024, 5, 1, 20, 0, i, 0, time.UTC),
			Row:      i + 2,
		}
	}
	return records
}

func TestClassifyCommentsPreservesOrder(t *testing.T) {
	fake := &fakeCompleter{handler: echoHandler}
	c := newClassifierWithClient(fake, Options{BatchSize: 3, Concurrency: 4, BaseBackoff: time.Millisecond})

	texts := make([]string, 10)
	for i := range texts {
		if i%3 == 0 {
			texts[i] = fmt.Sprintf("コメント%dはいつですか？", i)
		} else {
			texts[i] = fmt.Sprintf("コメント%dです", i)
		}
	}
	records := makeRecords(texts...)

	results := c.ClassifyComments(context.Background(), records)

	// 件数と順序の1:1対応
	assert.Len(t, results, len(records))
	for i, r := range results {
		assert.Equal(t, records[i].GuestID, r.Record.GuestID, "row %d", i)
		assert.False(t, r.Classification.Failed, "row %d should be classified", i)
		assert.Equal(t, i%3 == 0, r.Classification.IsQuestion, "row %d question flag", i)
	}
}

func TestClassifyBatchRetriesThenSucceeds(t *testing.T) {
	// トランスポートが2回失敗し、3回目で成功 → 両方とも本物のラベルになる
	fake := &fakeCompleter{failN: 2, handler: echoHandler}
	c := newClassifierWithClient(fake, Options{BatchSize: 10, MaxRetries: 3, BaseBackoff: time.Millisecond})

	records := makeRecords("今日の配信は何時まで？", "たのしい")
	results := c.ClassifyComments(context.Background(), records)

	assert.Len(t, results, 2)
	assert.False(t, results[0].Classification.Failed)
	assert.True(t, results[0].Classification.IsQuestion)
	assert.Equal(t, models.AttributeQuestion, results[0].Classification.Attribute)
	assert.False(t, results[1].Classification.Failed)
	assert.Equal(t, 3, fake.calls)
}

func TestClassifyBatchExhaustsRetries(t *testing.T) {
	// リトライを使い切る → 全件が理由付きの分類失敗になる
	fake := &fakeCompleter{failN: 100, handler: echoHandler}
	c := newClassifierWithClient(fake, Options{BatchSize: 10, MaxRetries: 3, BaseBackoff: time.Millisecond})

	records := makeRecords("質問です", "感想です")
	results := c.ClassifyComments(context.Background(), records)

	assert.Len(t, results, 2)
	for i, r := range results {
		assert.True(t, r.Classification.Failed, "row %d", i)
		assert.Contains(t, r.Classification.FailReason, "リトライ上限到達")
		assert.Contains(t, r.Classification.FailReason, "simulated transport error")
	}
	assert.Equal(t, 3, fake.calls)
}

func TestParseBatchResponsePartialFailure(t *testing.T) {
	// index=1が応答に含まれず、index=2のラベルが不正
	content := `[
		{"index":0,"attribute":"質問","sentiment":"ニュートラル","is_question":true},
		{"index":2,"attribute":"未知のラベル","sentiment":"ニュートラル","is_question":false}
	]`
	out := parseBatchResponse(content, 3)

	assert.False(t, out[0].Failed)
	assert.Equal(t, models.AttributeQuestion, out[0].Attribute)

	assert.True(t, out[1].Failed)
	assert.Contains(t, out[1].FailReason, "該当要素がありません")

	assert.True(t, out[2].Failed)
	assert.Contains(t, out[2].FailReason, "未知の属性ラベル")
}

func TestParseBatchResponseMalformedJSON(t *testing.T) {
	out := parseBatchResponse("ごめんなさい、分類できませんでした。", 2)
	for _, o := range out {
		assert.True(t, o.Failed)
		assert.Contains(t, o.FailReason, "解析に失敗")
	}
}

func TestStripCodeFence(t *testing.T) {
	fenced := "```json\n[{\"index\":0}]\n```"
	assert.Equal(t, `[{"index":0}]`, stripCodeFence(fenced))
	assert.Equal(t, `[]`, stripCodeFence("[]"))
}

func TestClassifyCommentsEmpty(t *testing.T) {
	fake := &fakeCompleter{handler: echoHandler}
	c := newClassifierWithClient(fake, Options{})
	results := c.ClassifyComments(context.Background(), nil)
	assert.Empty(t, results)
	assert.Equal(t, 0, fake.calls)
}

func TestJudgeAnswered(t *testing.T) {
	fake := &fakeCompleter{handler: func(prompt string) (string, error) {
		if strings.Contains(prompt, "グッズ") {
			return "YES", nil
		}
		return "NO", nil
	}}
	c := newClassifierWithClient(fake, Options{})

	answered, err := c.JudgeAnswered(context.Background(), "グッズはどこで買えますか？", "グッズは公式ストアで販売中です")
	assert.NoError(t, err)
	assert.True(t, answered)

	answered, err = c.JudgeAnswered(context.Background(), "次の配信は？", "今日はありがとうございました")
	assert.NoError(t, err)
	assert.False(t, answered)

	_, err = c.JudgeAnswered(context.Background(), "", "回答")
	assert.Error(t, err)
}
