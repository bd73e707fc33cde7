package transcript

import (
	"bufio"
	"bytes"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// Segment 文字起こしテキスト中の1発言。
// タイムコード行・話者行・本文ブロックのまとまりに対応します。
type Segment struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

var (
	// タイムコード行（例: 00:00:00:01 - 00:00:11:22）
	timePattern = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}:\d{2})\s*-\s*(\d{2}:\d{2}:\d{2}:\d{2})`)
	// 話者行（例: 話者 1）
	speakerPattern = regexp.MustCompile(`^話者\s*\d+`)
)

// Parse 文字起こしテキストを行単位でパースして発言を抽出します。
// タイムコード・話者・本文のいずれかを欠く不完全なまとまりはスキップし、
// スキップ件数を返します。
func Parse(data []byte) ([]Segment, int) {
	var (
		segments  []Segment
		skipped   int
		timecode  []string
		speaker   string
		textLines []string
	)

	flush := func() {
		if len(timecode) != 2 && speaker == "" && len(textLines) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(textLines, "\n"))
		if len(timecode) == 2 && speaker != "" && text != "" {
			segments = append(segments, Segment{
				StartTime: timecode[0],
				EndTime:   timecode[1],
				Speaker:   speaker,
				Text:      text,
			})
		} else {
			skipped++
		}
		timecode = nil
		speaker = ""
		textLines = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// 空行はまとまりの区切り
		if line == "" {
			if len(timecode) == 2 || speaker != "" || len(textLines) > 0 {
				flush()
			}
			continue
		}

		if m := timePattern.FindStringSubmatch(line); m != nil {
			// 空行で区切られなかった前のまとまりを確定
			if len(timecode) == 2 {
				flush()
			}
			timecode = []string{m[1], m[2]}
			continue
		}

		if len(timecode) == 2 && speaker == "" {
			if m := speakerPattern.FindString(line); m != "" {
				speaker = m
				continue
			}
		}

		if len(timecode) == 2 && speaker != "" {
			textLines = append(textLines, line)
		}
		// タイムコード未設定のままのテキスト行は読み捨て
	}
	flush()

	log.Printf("📝 [文字起こし] %d件の発言を抽出しました (スキップ: %d件)", len(segments), skipped)
	return segments, skipped
}

// timecodeToSeconds タイムコードを秒に変換します。
// HH:MM:SS:FF形式はフレームを30fpsとして換算し、HH:MM:SS形式はそのまま扱います。
func timecodeToSeconds(timecode string) int {
	parts := strings.Split(timecode, ":")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		nums[i] = n
	}
	switch len(nums) {
	case 4:
		return nums[0]*3600 + nums[1]*60 + nums[2] + nums[3]/30
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2]
	}
	return 0
}
