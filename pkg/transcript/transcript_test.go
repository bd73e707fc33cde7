package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleTranscript = `00:00:00:01 - 00:00:11:22
話者 1
みなさんこんばんは。今日もよろしくお願いします。

00:00:12:00 - 00:00:25:10
話者 2
グッズは公式ストアで販売中です。チェックしてみてください。

00:00:26:00 - 00:00:30:00
話者 1
`

func TestParse(t *testing.T) {
	segments, skipped := Parse([]byte(sampleTranscript))

	// 本文のない最後のまとまりはスキップされる
	assert.Len(t, segments, 2)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, "00:00:00:01", segments[0].StartTime)
	assert.Equal(t, "00:00:11:22", segments[0].EndTime)
	assert.Equal(t, "話者 1", segments[0].Speaker)
	assert.Contains(t, segments[0].Text, "こんばんは")

	assert.Equal(t, "話者 2", segments[1].Speaker)
	assert.Contains(t, segments[1].Text, "公式ストア")
}

func TestParseConsecutiveTimecodes(t *testing.T) {
	// 空行なしでタイムコードが連続しても前のまとまりが確定されること
	input := `00:00:00:00 - 00:00:05:00
話者 1
ひとつめの発言です。
00:00:05:00 - 00:00:10:00
話者 2
ふたつめの発言です。
`
	segments, skipped := Parse([]byte(input))
	assert.Len(t, segments, 2)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, "話者 2", segments[1].Speaker)
}

func TestParseEmpty(t *testing.T) {
	segments, skipped := Parse(nil)
	assert.Empty(t, segments)
	assert.Equal(t, 0, skipped)
}

func TestTimecodeToSeconds(t *testing.T) {
	// 4要素はフレーム付き（30fps）、3要素は通常の時刻
	assert.Equal(t, 11, timecodeToSeconds("00:00:11:22"))
	assert.Equal(t, 3661, timecodeToSeconds("01:01:01"))
	assert.Equal(t, 3665, timecodeToSeconds("01:01:05:00"))
	assert.Equal(t, 0, timecodeToSeconds("bogus"))
}
