package services

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
}

// RunRecord は完了した分析実行の記録です。
type RunRecord struct {
	RunID             string        `json:"run_id"`
	FileName          string        `json:"file_name"`
	Timestamp         time.Time     `json:"timestamp"`
	TotalComments     int           `json:"total_comments"`
	QuestionCount     int           `json:"question_count"`
	UnclassifiedCount int           `json:"unclassified_count"`
	Duration          time.Duration `json:"duration"`
	Output            string        `json:"output"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
// リクエストログと、完了した分析実行の履歴を保持します。
type MonitoringService struct {
	logs []LogEntry
	runs []RunRecord
	mu   sync.RWMutex
}

// 実行履歴の保持件数
const maxRunRecords = 100

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		logs: make([]LogEntry, 0),
		runs: make([]RunRecord, 0),
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
}

// LogRun は完了した分析実行を記録します。
func (s *MonitoringService) LogRun(record RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, record)
	if len(s.runs) > maxRunRecords {
		s.runs = s.runs[len(s.runs)-maxRunRecords:]
	}
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		// モニタリング自身へのアクセスは記録しない
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}

		entry := LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		}
		s.LogRequest(entry)
	}
}

// MonitoringSummary はモニタリングAPIが返す集計済みデータです。
type MonitoringSummary struct {
	TotalRequests int            `json:"total_requests"`
	StatusCodes   map[string]int `json:"status_codes"`
	TotalRuns     int            `json:"total_runs"`
	RecentRuns    []RunRecord    `json:"recent_runs"`
}

// Summary は指定された期間のログと実行履歴を集計して返します。
func (s *MonitoringService) Summary(periodHours int) MonitoringSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := time.Now().Add(-time.Duration(periodHours) * time.Hour)

	statusCodes := map[string]int{
		"2xx Success":      0,
		"4xx Client Error": 0,
		"5xx Server Error": 0,
	}
	total := 0
	for _, log := range s.logs {
		if !log.Timestamp.After(since) {
			continue
		}
		total++
		switch {
		case log.StatusCode >= 200 && log.StatusCode < 300:
			statusCodes["2xx Success"]++
		case log.StatusCode >= 400 && log.StatusCode < 500:
			statusCodes["4xx Client Error"]++
		case log.StatusCode >= 500:
			statusCodes["5xx Server Error"]++
		}
	}

	// 直近の実行を新しい順で最大10件
	recent := make([]RunRecord, 0, 10)
	for i := len(s.runs) - 1; i >= 0 && len(recent) < 10; i-- {
		if s.runs[i].Timestamp.After(since) {
			recent = append(recent, s.runs[i])
		}
	}

	return MonitoringSummary{
		TotalRequests: total,
		StatusCodes:   statusCodes,
		TotalRuns:     len(s.runs),
		RecentRuns:    recent,
	}
}
