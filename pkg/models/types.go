package models

import (
	"time"
)

// AttributeLabel チャットの属性（8分類）
type AttributeLabel string

const (
	AttributeQuestion   AttributeLabel = "質問"
	AttributeImpression AttributeLabel = "感想"
	AttributeCheer      AttributeLabel = "応援"
	AttributeGreeting   AttributeLabel = "挨拶"
	AttributeRequest    AttributeLabel = "要望"
	AttributeComplaint  AttributeLabel = "指摘"
	AttributeSmallTalk  AttributeLabel = "雑談"
	AttributeOther      AttributeLabel = "その他"
)

// SentimentLabel チャット感情（4分類）
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "ポジティブ"
	SentimentNegative SentimentLabel = "ネガティブ"
	SentimentNeutral  SentimentLabel = "ニュートラル"
	SentimentMixed    SentimentLabel = "混在"
)

// AnswerStatus 質問コメントの回答状況
type AnswerStatus string

const (
	AnswerStatusNone      AnswerStatus = "未回答"
	AnswerStatusPerformer AnswerStatus = "出演者"
	AnswerStatusStaff     AnswerStatus = "運営"
)

// UnknownBucket 分類に失敗したコメントを集計する際のバケット名
const UnknownBucket = "分類失敗"

// ChatAttributes 属性の全候補（プロンプトとドロップダウンで共有）
func ChatAttributes() []AttributeLabel {
	return []AttributeLabel{
		AttributeQuestion, AttributeImpression, AttributeCheer, AttributeGreeting,
		AttributeRequest, AttributeComplaint, AttributeSmallTalk, AttributeOther,
	}
}

// ChatSentiments 感情の全候補
func ChatSentiments() []SentimentLabel {
	return []SentimentLabel{SentimentPositive, SentimentNegative, SentimentNeutral, SentimentMixed}
}

// AnswerStatuses 回答状況の全候補
func AnswerStatuses() []AnswerStatus {
	return []AnswerStatus{AnswerStatusNone, AnswerStatusPerformer, AnswerStatusStaff}
}

// IsAnswered 「出演者」または「運営」を回答済みとして扱う
func (s AnswerStatus) IsAnswered() bool {
	return s == AnswerStatusPerformer || s == AnswerStatusStaff
}

// ValidAttribute 属性ラベルが8分類のいずれかであるかを確認
func ValidAttribute(s string) bool {
	for _, a := range ChatAttributes() {
		if string(a) == s {
			return true
		}
	}
	return false
}

// ValidSentiment 感情ラベルが4分類のいずれかであるかを確認
func ValidSentiment(s string) bool {
	for _, v := range ChatSentiments() {
		if string(v) == s {
			return true
		}
	}
	return false
}

// CommentRecord CSVから読み込んだ1件のチャットコメント。
// パース後は不変で、Rowが入力ファイル内での同一性を表します。
type CommentRecord struct {
	GuestID  string    `json:"guest_id"`
	Username string    `json:"username"`
	Text     string    `json:"original_text"`
	PostedAt time.Time `json:"inserted_at"`
	Row      int       `json:"row"`
}

// Classification 1コメントに対する分類結果。
// 分類に失敗した場合はFailedがtrueになり、FailReasonに理由が入ります
// （ラベルを空のままにするのではなく、失敗を明示的な状態として持ちます）。
type Classification struct {
	Attribute  AttributeLabel `json:"attribute,omitempty"`
	Sentiment  SentimentLabel `json:"sentiment,omitempty"`
	IsQuestion bool           `json:"is_question"`
	Failed     bool           `json:"failed"`
	FailReason string         `json:"fail_reason,omitempty"`
}

// Unclassified 分類失敗の結果を生成
func Unclassified(reason string) Classification {
	return Classification{Failed: true, FailReason: reason}
}

// ClassifiedComment コメントとその分類・回答状況の組。
// 入力のCommentRecordと1:1で対応し、件数は常に入力と一致します。
type ClassifiedComment struct {
	Record         CommentRecord  `json:"record"`
	Classification Classification `json:"classification"`
	AnswerStatus   AnswerStatus   `json:"answer_status,omitempty"`
	AnswerMethod   string         `json:"answer_method,omitempty"`
}

// LabelCount ラベルごとの件数と割合
type LabelCount struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// StatisticsSummary 1回の分析に対する読み取り専用の集計結果
type StatisticsSummary struct {
	TotalComments     int          `json:"total_comments"`
	AttributeCounts   []LabelCount `json:"attribute_counts"`
	SentimentCounts   []LabelCount `json:"sentiment_counts"`
	UnclassifiedCount int          `json:"unclassified_count"`
	QuestionCount     int          `json:"question_count"`
	AnsweredCount     int          `json:"answered_count"`
	// AnswerRate = AnsweredCount / QuestionCount。
	// 質問が0件のときは0除算を避けるため0.0と定義します。
	AnswerRate float64 `json:"answer_rate"`
}

// RowDiagnostic 読み飛ばした行の診断情報
type RowDiagnostic struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// SheetPayload スプレッドシートへ書き出す2つのタブの内容。
// 実行ごとに新しく構築し、タブ全体を上書きします。
type SheetPayload struct {
	Title     string              `json:"title"`
	Comments  []ClassifiedComment `json:"comments"`
	Questions []ClassifiedComment `json:"questions"`
	Stats     StatisticsSummary   `json:"stats"`
}

// RGBColor Google Sheets APIの色表現（0.0〜1.0）
type RGBColor struct {
	Red   float64
	Green float64
	Blue  float64
}

// ColorMap ラベル値ごとの背景色。メインシート・質問シート・Excel出力で共有。
var ColorMap = map[string]RGBColor{
	string(AttributeQuestion):     {Red: 1.0, Green: 0.95, Blue: 0.8},
	string(AttributeImpression):   {Red: 0.85, Green: 0.92, Blue: 0.83},
	string(AttributeCheer):        {Red: 0.82, Green: 0.88, Blue: 0.98},
	string(AttributeGreeting):     {Red: 0.95, Green: 0.95, Blue: 0.95},
	string(AttributeRequest):      {Red: 0.99, Green: 0.9, Blue: 0.8},
	string(AttributeComplaint):    {Red: 0.96, Green: 0.8, Blue: 0.8},
	string(AttributeSmallTalk):    {Red: 0.9, Green: 0.9, Blue: 0.98},
	string(AttributeOther):        {Red: 0.87, Green: 0.87, Blue: 0.87},
	string(SentimentPositive):     {Red: 0.72, Green: 0.88, Blue: 0.8},
	string(SentimentNegative):     {Red: 0.96, Green: 0.78, Blue: 0.76},
	string(SentimentNeutral):      {Red: 0.93, Green: 0.93, Blue: 0.93},
	string(SentimentMixed):        {Red: 0.98, Green: 0.91, Blue: 0.71},
	string(AnswerStatusNone):      {Red: 0.96, Green: 0.8, Blue: 0.8},
	string(AnswerStatusPerformer): {Red: 0.72, Green: 0.88, Blue: 0.8},
	string(AnswerStatusStaff):     {Red: 0.82, Green: 0.88, Blue: 0.98},
	UnknownBucket:                 {Red: 0.8, Green: 0.8, Blue: 0.8},
}

// Hex Excel出力用に16進カラーコード（例: "FFEECC"）へ変換
func (c RGBColor) Hex() string {
	clamp := func(v float64) int {
		n := int(v * 255)
		if n < 0 {
			return 0
		}
		if n > 255 {
			return 255
		}
		return n
	}
	const hexdigits = "0123456789ABCDEF"
	b := make([]byte, 6)
	for i, n := range []int{clamp(c.Red), clamp(c.Green), clamp(c.Blue)} {
		b[i*2] = hexdigits[n>>4]
		b[i*2+1] = hexdigits[n&0xF]
	}
	return string(b)
}
