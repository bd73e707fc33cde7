package classifier

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// JudgeAnswered 質問コメントが発言テキストで回答されたかをLLMに判定させます。
// 文字列照合で判定しきれなかったケースのフォールバックとして使います。
// 一貫性を重視して低いtemperatureで呼び出し、YES/NOのみを解釈します。
func (c *Classifier) JudgeAnswered(ctx context.Context, question, answer string) (bool, error) {
	if question == "" || answer == "" {
		return false, fmt.Errorf("質問または回答テキストが空です")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	prompt := fmt.Sprintf(`以下の「質問」に対して「発言」が回答になっているかを判定してください。
YESまたはNOのみで答えてください。

質問: %s

発言: %s`, question, answer)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   10,
		Temperature: 0.1,
	})
	if err != nil {
		return false, fmt.Errorf("回答判定の呼び出しに失敗: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("回答判定の応答が空です")
	}

	result := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	switch {
	case strings.Contains(result, "YES") || strings.Contains(result, "はい"):
		return true, nil
	case strings.Contains(result, "NO") || strings.Contains(result, "いいえ"):
		return false, nil
	default:
		// 判定不能な応答は安全側に倒して未回答扱い
		return false, nil
	}
}
