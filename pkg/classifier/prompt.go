package classifier

import (
	"fmt"
	"strings"

	"chat-insight-api/pkg/models"
)

func systemPrompt() string {
	var attrs, sents []string
	for _, a := range models.ChatAttributes() {
		attrs = append(attrs, string(a))
	}
	for _, s := range models.ChatSentiments() {
		sents = append(sents, string(s))
	}

	return fmt.Sprintf(`あなたはライブ配信のチャットコメントを分類する専門家です。
各コメントについて以下を判定してください:
- attribute: 次のいずれか1つ [%s]
- sentiment: 次のいずれか1つ [%s]
- is_question: 配信者や運営への質問であればtrue

応答はJSON配列のみを返してください。説明文は不要です。形式:
[{"index":0,"attribute":"質問","sentiment":"ニュートラル","is_question":true}, ...]
indexは入力で示されたコメント番号をそのまま使ってください。`,
		strings.Join(attrs, ", "), strings.Join(sents, ", "))
}

func buildBatchPrompt(batch []models.CommentRecord) string {
	var b strings.Builder
	b.WriteString("以下のチャットコメントを分類してください:\n\n")
	for i, rec := range batch {
		b.WriteString(fmt.Sprintf("%d: %s\n", i, rec.Text))
	}
	return b.String()
}
