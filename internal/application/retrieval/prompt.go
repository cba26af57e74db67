package retrieval

import (
	"fmt"
	"strings"
)

const contextDelimiter = "\n\n---\n\n"

// ragSystemPrompt 约束生成服务基于上下文作答并按文档标题引用。
const ragSystemPrompt = `You are a knowledge-base assistant. Answer the user's question using ONLY the documents provided in the context block. Cite the documents you used by their titles. If the context does not contain the answer, say so instead of guessing.`

// noContextAnswer 检索没有可用 chunk 时的固定回答：
// 不携带上下文去调用生成服务，避免幻觉和无谓的调用开销。
const noContextAnswer = "No relevant documents were found in the knowledge base for this question."

// BuildContextBlock 把召回结果拼成可注入 Prompt 的上下文块，
// 顺序与排名一致（最相关在前）。
func BuildContextBlock(results []*SearchResult, maxDocs, maxRunesPerDoc int) string {
	if len(results) == 0 {
		return ""
	}
	if maxDocs <= 0 {
		maxDocs = defaultSearchLimit
	}
	if maxRunesPerDoc <= 0 {
		maxRunesPerDoc = 1500
	}

	n := len(results)
	if n > maxDocs {
		n = maxDocs
	}

	blocks := make([]string, 0, n)
	for i := 0; i < n; i++ {
		r := results[i]
		if r == nil {
			continue
		}
		content := truncateRunes(strings.TrimSpace(r.Snippet), maxRunesPerDoc)
		if content == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[Document %d: %q]\n%s", i+1, strings.TrimSpace(r.Title), content))
	}
	return strings.Join(blocks, contextDelimiter)
}
