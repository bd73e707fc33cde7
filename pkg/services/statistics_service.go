package services

import (
	"math"

	"chat-insight-api/pkg/models"
)

// StatisticsService 分類済みコメントの統計集計サービス。
// 純粋な計算のみで、ネットワークアクセスや副作用はありません。
type StatisticsService struct{}

// NewStatisticsService 新しい統計集計サービスを作成
func NewStatisticsService() *StatisticsService {
	return &StatisticsService{}
}

// Aggregate 分類結果から統計サマリーを計算します。
// 分類に失敗したコメントは「分類失敗」バケットとして集計に含め、
// 黙って除外することはありません。
func (s *StatisticsService) Aggregate(comments []models.ClassifiedComment) models.StatisticsSummary {
	summary := models.StatisticsSummary{
		TotalComments: len(comments),
	}

	attrCounts := make(map[string]int)
	sentCounts := make(map[string]int)

	for _, c := range comments {
		if c.Classification.Failed {
			summary.UnclassifiedCount++
			attrCounts[models.UnknownBucket]++
			sentCounts[models.UnknownBucket]++
			continue
		}
		attrCounts[string(c.Classification.Attribute)]++
		sentCounts[string(c.Classification.Sentiment)]++

		if c.Classification.IsQuestion {
			summary.QuestionCount++
			if c.AnswerStatus.IsAnswered() {
				summary.AnsweredCount++
			}
		}
	}

	// ラベル定義順に件数と割合を並べる（0件のラベルも含める）
	for _, a := range models.ChatAttributes() {
		summary.AttributeCounts = append(summary.AttributeCounts, labelCount(string(a), attrCounts[string(a)], len(comments)))
	}
	if n := attrCounts[models.UnknownBucket]; n > 0 {
		summary.AttributeCounts = append(summary.AttributeCounts, labelCount(models.UnknownBucket, n, len(comments)))
	}

	for _, v := range models.ChatSentiments() {
		summary.SentimentCounts = append(summary.SentimentCounts, labelCount(string(v), sentCounts[string(v)], len(comments)))
	}
	if n := sentCounts[models.UnknownBucket]; n > 0 {
		summary.SentimentCounts = append(summary.SentimentCounts, labelCount(models.UnknownBucket, n, len(comments)))
	}

	// 質問が0件のときは0除算を避けるため回答率は0と定義
	if summary.QuestionCount > 0 {
		summary.AnswerRate = float64(summary.AnsweredCount) / float64(summary.QuestionCount)
	}

	return summary
}

func labelCount(label string, count, total int) models.LabelCount {
	lc := models.LabelCount{Label: label, Count: count}
	if total > 0 {
		// 小数第1位で丸める
		lc.Percent = math.Round(float64(count)/float64(total)*1000) / 10
	}
	return lc
}
