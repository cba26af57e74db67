package retrieval

import (
	"regexp"
	"strings"
	"unicode"
)

const defaultChunkTokens = 500

var paragraphSplitter = regexp.MustCompile(`\n[ \t]*\n+`)

// EstimateTokens 估算文本的 token 数（字符数/4 向上取整）。
// 刻意的近似：不依赖具体模型的分词器，换取速度与提供商无关性；
// 调用方不得假设与真实分词结果一致。
func EstimateTokens(s string) int {
	n := len([]rune(s))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// SplitText 将文本切成若干不超过 maxTokens 预算的片段，顺序与原文一致。
// 策略：整体不超预算则原样返回；否则按空行分段，超预算的段落再按句子切，
// 单句仍超预算时按 maxTokens*4 字符硬切窗口。相邻段落/句子贪心合并装填。
// 空白输入返回 nil（不是错误）。
func SplitText(text string, maxTokens int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = defaultChunkTokens
	}
	if EstimateTokens(trimmed) <= maxTokens {
		return []string{trimmed}
	}

	var units []string
	for _, para := range paragraphSplitter.Split(trimmed, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if EstimateTokens(para) <= maxTokens {
			units = append(units, para)
			continue
		}
		for _, sent := range splitSentences(para) {
			if EstimateTokens(sent) <= maxTokens {
				units = append(units, sent)
				continue
			}
			units = append(units, hardSplit(sent, maxTokens*4)...)
		}
	}

	return packUnits(units, maxTokens)
}

// BuildChunks 为页面内容生成带序号的 Chunk 列表。
func BuildChunks(pageID, text string, maxTokens int) []Chunk {
	parts := SplitText(text, maxTokens)
	if len(parts) == 0 {
		return nil
	}
	chunks := make([]Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, Chunk{
			PageID:    pageID,
			Ordinal:   i,
			Text:      p,
			EstTokens: EstimateTokens(p),
		})
	}
	return chunks
}

// packUnits 贪心装填：加入下一个单元会超预算时先落盘当前块。
func packUnits(units []string, maxTokens int) []string {
	var out []string
	var cur strings.Builder
	for _, u := range units {
		if cur.Len() == 0 {
			cur.WriteString(u)
			continue
		}
		candidate := cur.String() + "\n\n" + u
		if EstimateTokens(candidate) > maxTokens {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
			cur.WriteString(u)
			continue
		}
		cur.Reset()
		cur.WriteString(candidate)
	}
	if cur.Len() > 0 {
		out = append(out, strings.TrimSpace(cur.String()))
	}
	return out
}

// splitSentences 按句边界启发式切分：`.!?` 后跟空白加大写字母，或到达串尾。
func splitSentences(s string) []string {
	runes := []rune(s)
	n := len(runes)
	var out []string
	emit := func(from, to int) {
		seg := strings.TrimSpace(string(runes[from:to]))
		if seg != "" {
			out = append(out, seg)
		}
	}

	start := 0
	for i := 0; i < n; i++ {
		c := runes[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < n && unicode.IsSpace(runes[j]) {
			j++
		}
		if j >= n {
			emit(start, n)
			start = n
			break
		}
		if j > i+1 && unicode.IsUpper(runes[j]) {
			emit(start, i+1)
			start = j
			i = j - 1
		}
	}
	if start < n {
		emit(start, n)
	}
	return out
}

// hardSplit 固定窗口硬切（最后的兜底，结果可能切断单词）。
func hardSplit(s string, windowRunes int) []string {
	if windowRunes <= 0 {
		return []string{strings.TrimSpace(s)}
	}
	runes := []rune(s)
	out := make([]string, 0, len(runes)/windowRunes+1)
	for start := 0; start < len(runes); start += windowRunes {
		end := start + windowRunes
		if end > len(runes) {
			end = len(runes)
		}
		seg := strings.TrimSpace(string(runes[start:end]))
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
