package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("a"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}

func TestSplitTextEmpty(t *testing.T) {
	assert.Nil(t, SplitText("", 100))
	assert.Nil(t, SplitText("   \n\t\n  ", 100))
}

func TestSplitTextSingleChunk(t *testing.T) {
	text := "A short page that fits in one chunk."
	parts := SplitText(text, 500)
	require.Len(t, parts, 1)
	assert.Equal(t, text, parts[0])
}

func TestSplitTextParagraphs(t *testing.T) {
	para := strings.Repeat("word ", 20) // 约 25 tokens
	text := para + "\n\n" + para + "\n\n" + para

	parts := SplitText(text, 30)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, EstimateTokens(p), 30, "chunk over budget: %q", p)
	}
	// 全部段落内容都被覆盖，顺序不变。
	joined := strings.Join(parts, "\n\n")
	assert.Equal(t, strings.Count(text, "word"), strings.Count(joined, "word"))
}

func TestSplitTextGreedyPacking(t *testing.T) {
	// 三个小段落应合并进同一个 chunk。
	text := "one.\n\ntwo.\n\nthree."
	parts := SplitText(text, 500)
	require.Len(t, parts, 1)
	assert.Contains(t, parts[0], "one.")
	assert.Contains(t, parts[0], "three.")
}

func TestSplitTextHardSplit(t *testing.T) {
	// 无空格无句号的长串只能硬切。
	text := strings.Repeat("x", 1000)
	parts := SplitText(text, 50)
	require.Greater(t, len(parts), 1)
	total := 0
	for _, p := range parts {
		assert.LessOrEqual(t, EstimateTokens(p), 50)
		total += len(p)
	}
	assert.Equal(t, 1000, total)
}

func TestSplitTextSentences(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("This sentence carries a reasonable amount of text for splitting. ")
	}
	parts := SplitText(b.String(), 40)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, EstimateTokens(p), 40)
	}
}

func TestBuildChunksOrdinals(t *testing.T) {
	para := strings.Repeat("alpha beta gamma ", 15)
	text := para + "\n\n" + para + "\n\n" + para

	chunks := BuildChunks("page-1", text, 30)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, "page-1", c.PageID)
		assert.Equal(t, i, c.Ordinal)
		assert.Equal(t, EstimateTokens(c.Text), c.EstTokens)
	}
}

func TestBuildChunksEmpty(t *testing.T) {
	assert.Nil(t, BuildChunks("page-1", "", 500))
}
