package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"chat-insight-api/pkg/models"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// chatCompleter はOpenAIクライアントのうち分類に必要な操作だけを切り出したものです。
// テストではフェイク実装を注入します。
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options 分類クライアントの動作設定
type Options struct {
	Model       string
	BatchSize   int           // 1リクエストに含めるコメント数
	Concurrency int           // 同時に飛ばすバッチ数の上限
	MaxRetries  int           // バッチ単位のリトライ回数（トランスポート障害時）
	RPMLimit    int           // 1分あたりのリクエスト数上限
	BaseBackoff time.Duration // リトライ間隔の基準（指数バックオフ）
	PromptExtra string        // システムプロンプトへの追記（配信固有の補足など）
}

func (o *Options) fillDefaults() {
	if o.Model == "" {
		o.Model = "gpt-4o-mini"
	}
	if o.BatchSize < 1 {
		o.BatchSize = 20
	}
	if o.Concurrency < 1 {
		o.Concurrency = 4
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = 3
	}
	if o.RPMLimit < 1 {
		o.RPMLimit = 480
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = time.Second
	}
}

// Classifier コメントをバッチ単位でLLMに渡し、属性・感情・質問判定を得るクライアント。
// レート制限はトークンバケットで共有し、結果は常に入力順で返します。
type Classifier struct {
	client  chatCompleter
	opts    Options
	limiter *rate.Limiter
}

// NewClassifier 新しい分類クライアントを作成。
// baseURLを指定するとプロキシや互換エンドポイント経由で呼び出せます。
func NewClassifier(apiKey, baseURL string, opts Options) *Classifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return newClassifierWithClient(openai.NewClientWithConfig(cfg), opts)
}

func newClassifierWithClient(client chatCompleter, opts Options) *Classifier {
	opts.fillDefaults()
	return &Classifier{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(float64(opts.RPMLimit)/60.0), opts.Concurrency),
	}
}

// systemContent 基本の分類プロンプトに設定ファイルの補足を付け足します
func (c *Classifier) systemContent() string {
	if c.opts.PromptExtra == "" {
		return systemPrompt()
	}
	return systemPrompt() + "\n\n" + c.opts.PromptExtra
}

// classifiedItem LLMが返すJSON配列の1要素
type classifiedItem struct {
	Index      int    `json:"index"`
	Attribute  string `json:"attribute"`
	Sentiment  string `json:"sentiment"`
	IsQuestion bool   `json:"is_question"`
}

// ClassifyComments 全コメントを分類します。戻り値は入力と同数・同順で、
// 失敗したコメントは分類失敗（Unclassified）として含まれます。
func (c *Classifier) ClassifyComments(ctx context.Context, records []models.CommentRecord) []models.ClassifiedComment {
	results := make([]models.ClassifiedComment, len(records))
	for i, rec := range records {
		results[i] = models.ClassifiedComment{Record: rec, AnswerStatus: models.AnswerStatusNone}
	}
	if len(records) == 0 {
		return results
	}

	// バッチに分割（結果バッファはバッチの先頭オフセットで書き込むため、
	// 完了順に関係なく入力順が保たれます）
	type batchSpec struct {
		offset  int
		records []models.CommentRecord
	}
	var batches []batchSpec
	for start := 0; start < len(records); start += c.opts.BatchSize {
		end := start + c.opts.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, batchSpec{offset: start, records: records[start:end]})
	}

	log.Printf("🤖 [分類] %d件のコメントを%dバッチで分類します (並列度=%d)", len(records), len(batches), c.opts.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			classifications := c.classifyBatch(gctx, b.records)
			for i, cl := range classifications {
				results[b.offset+i].Classification = cl
			}
			return nil
		})
	}
	// バッチ内の失敗はUnclassifiedとして吸収するため、ここでエラーは返りません。
	_ = g.Wait()

	return results
}

// classifyBatch 1バッチを分類します。トランスポート障害は指数バックオフ付きで
// リトライし、使い切った場合はバッチ内全件を分類失敗として返します。
func (c *Classifier) classifyBatch(ctx context.Context, batch []models.CommentRecord) []models.Classification {
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.opts.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: c.systemContent()},
				{Role: openai.ChatMessageRoleUser, Content: buildBatchPrompt(batch)},
			},
			MaxTokens:   120 * len(batch),
			Temperature: 0.1,
		})
		if err != nil {
			lastErr = err
			log.Printf("⚠️ [分類] バッチ呼び出し失敗 (attempt %d/%d): %v", attempt, c.opts.MaxRetries, err)
			if attempt < c.opts.MaxRetries {
				backoff := c.opts.BaseBackoff << (attempt - 1)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					lastErr = ctx.Err()
					attempt = c.opts.MaxRetries // これ以上は試さない
				}
			}
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("APIからの応答が空です")
			continue
		}

		return parseBatchResponse(resp.Choices[0].Message.Content, len(batch))
	}

	reason := "原因不明のエラー"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	out := make([]models.Classification, len(batch))
	for i := range out {
		out[i] = models.Unclassified(fmt.Sprintf("リトライ上限到達: %s", reason))
	}
	return out
}

// parseBatchResponse LLMの応答JSONをバッチと同数の分類結果に変換します。
// 応答に含まれない・ラベルが不正な要素は個別に分類失敗となり、
// バッチ全体は失敗しません。
func parseBatchResponse(content string, batchLen int) []models.Classification {
	out := make([]models.Classification, batchLen)

	var items []classifiedItem
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &items); err != nil {
		for i := range out {
			out[i] = models.Unclassified(fmt.Sprintf("応答JSONの解析に失敗: %v", err))
		}
		return out
	}

	seen := make(map[int]bool, len(items))
	for _, item := range items {
		if item.Index < 0 || item.Index >= batchLen || seen[item.Index] {
			continue
		}
		seen[item.Index] = true

		if !models.ValidAttribute(item.Attribute) {
			out[item.Index] = models.Unclassified(fmt.Sprintf("未知の属性ラベル: %s", item.Attribute))
			continue
		}
		if !models.ValidSentiment(item.Sentiment) {
			out[item.Index] = models.Unclassified(fmt.Sprintf("未知の感情ラベル: %s", item.Sentiment))
			continue
		}

		out[item.Index] = models.Classification{
			Attribute:  models.AttributeLabel(item.Attribute),
			Sentiment:  models.SentimentLabel(item.Sentiment),
			IsQuestion: item.IsQuestion,
		}
	}

	for i := range out {
		if !seen[i] && !out[i].Failed {
			out[i] = models.Unclassified("応答に該当要素がありません")
		}
	}
	return out
}

// stripCodeFence ```json フェンスで囲まれた応答からJSON本体を取り出します
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
