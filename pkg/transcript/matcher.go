package transcript

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"regexp"
	"strings"

	"chat-insight-api/pkg/models"
)

// AnswerJudge 文字列照合で判定しきれない質問をAIで判定するためのフック。
// nilの場合はAIフォールバックなしで動作します。
type AnswerJudge interface {
	JudgeAnswered(ctx context.Context, question, answer string) (bool, error)
}

// Matcher 質問コメントと発言テキストを照合して回答状況を判定します
type Matcher struct {
	judge     AnswerJudge
	threshold float64
}

// NewMatcher 新しいMatcherを作成。thresholdはキーワード一致率の閾値です。
func NewMatcher(judge AnswerJudge) *Matcher {
	return &Matcher{judge: judge, threshold: 0.1}
}

var (
	emojiPattern    = regexp.MustCompile(`[\x{1F300}-\x{1F6FF}\x{1F900}-\x{1F9FF}\x{2600}-\x{27BF}]+`)
	japanesePattern = regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}\w]+`)
)

// MatchQuestions 各質問コメントを発言テキストと照合し、回答が見つかった
// コメントの回答状況を「出演者」に更新します。commentsはその場で更新されます。
// 戻り値は照合に成功した件数です。
func (m *Matcher) MatchQuestions(ctx context.Context, comments []models.ClassifiedComment, segments []Segment) int {
	matched := 0
	for i := range comments {
		if !comments[i].Classification.IsQuestion || comments[i].AnswerStatus.IsAnswered() {
			continue
		}
		question := strings.TrimSpace(comments[i].Record.Text)
		if question == "" {
			continue
		}
		for _, seg := range segments {
			if m.isAnswered(ctx, question, seg.Text) {
				comments[i].AnswerStatus = models.AnswerStatusPerformer
				comments[i].AnswerMethod = seg.Speaker
				matched++
				log.Printf("🎯 [照合] %sが回答 (%d秒時点): %s", seg.Speaker, timecodeToSeconds(seg.StartTime), question)
				break
			}
		}
	}
	log.Printf("🔗 [照合] 質問と発言の照合成功: %d件", matched)
	return matched
}

// isAnswered 質問が発言で回答されたかを判定します。
// 完全一致 → 双方向の包含 → キーワード一致率の順で照合し、
// 閾値未満の場合のみAIフォールバックを試します。
func (m *Matcher) isAnswered(ctx context.Context, question, answer string) bool {
	question = strings.TrimSpace(emojiPattern.ReplaceAllString(question, ""))
	answer = strings.TrimSpace(emojiPattern.ReplaceAllString(answer, ""))
	if question == "" || answer == "" {
		return false
	}

	if question == answer {
		return true
	}
	if strings.Contains(answer, question) || strings.Contains(question, answer) {
		return true
	}

	// 3文字以下の短い質問は包含のみで判定（誤検知を避ける）
	if len([]rune(question)) <= 3 {
		return false
	}

	chunks := japanesePattern.FindAllString(question, -1)
	if len(chunks) == 0 {
		return false
	}
	matchedChunks := 0
	for _, chunk := range chunks {
		if strings.Contains(answer, chunk) {
			matchedChunks++
		}
	}
	if float64(matchedChunks)/float64(len(chunks)) >= m.threshold {
		return true
	}

	if m.judge != nil {
		if result, err := m.judge.JudgeAnswered(ctx, question, answer); err == nil {
			return result
		}
		// AI判定のエラーは未回答扱いに倒す
	}
	return false
}

// ManualJudgment 人間が判定したCSVの1件
type ManualJudgment struct {
	Answered bool
	Method   string
}

// ParseManualCSV 人間が判定したCSV（「質問」列 + 「回答済み」列）を読み込みます。
// 回答済み列はTRUE/1/T/YES/Yのいずれか（大文字小文字は区別しない）を真と解釈します。
func ParseManualCSV(data []byte) (map[string]ManualJudgment, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("判定CSVの解析に失敗: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("判定CSVにはヘッダー行とデータ行が必要です")
	}

	header := rows[0]
	questionIdx := findColumn(header, "質問", "original_text", "コメント", "text")
	if questionIdx == -1 {
		return nil, fmt.Errorf("判定CSVに「質問」列が見つかりません (ヘッダー: %v)", header)
	}
	answeredIdx := findColumn(header, "回答済み", "回答済", "answered", "回答状況")
	methodIdx := findColumn(header, "回答方法", "answer_method", "方法")

	judgments := make(map[string]ManualJudgment)
	for _, row := range rows[1:] {
		if questionIdx >= len(row) {
			continue
		}
		question := strings.TrimSpace(row[questionIdx])
		if question == "" {
			continue
		}

		answered := false
		if answeredIdx != -1 && answeredIdx < len(row) {
			switch strings.ToUpper(strings.TrimSpace(row[answeredIdx])) {
			case "TRUE", "1", "T", "YES", "Y":
				answered = true
			}
		}
		if !answered {
			continue
		}

		method := string(models.AnswerStatusStaff)
		if methodIdx != -1 && methodIdx < len(row) {
			if v := strings.TrimSpace(row[methodIdx]); v != "" {
				method = v
			}
		}
		judgments[question] = ManualJudgment{Answered: true, Method: method}
	}
	return judgments, nil
}

// ApplyManual 人間の判定結果を質問コメントに反映します。
// 完全一致を優先し、見つからない場合は包含で照合します。
func (m *Matcher) ApplyManual(comments []models.ClassifiedComment, judgments map[string]ManualJudgment) int {
	applied := 0
	for i := range comments {
		if !comments[i].Classification.IsQuestion {
			continue
		}
		question := strings.TrimSpace(comments[i].Record.Text)
		if question == "" {
			continue
		}

		j, ok := judgments[question]
		if !ok {
			for manualQ, mj := range judgments {
				if strings.Contains(question, manualQ) || strings.Contains(manualQ, question) {
					j, ok = mj, true
					break
				}
			}
		}
		if !ok {
			continue
		}

		// 回答方法が出演者なら回答状況もそれに合わせる
		if j.Method == string(models.AnswerStatusPerformer) {
			comments[i].AnswerStatus = models.AnswerStatusPerformer
		} else {
			comments[i].AnswerStatus = models.AnswerStatusStaff
		}
		comments[i].AnswerMethod = j.Method
		applied++
	}
	log.Printf("🔗 [照合] 人間判定CSVから反映: %d件", applied)
	return applied
}

func findColumn(header []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, col := range header {
			if strings.TrimSpace(col) == candidate {
				return i
			}
		}
	}
	return -1
}
