package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchRequestMinScoreOrDefault(t *testing.T) {
	// 未携带 min_score 用默认阈值
	req := &SearchRequest{Query: "q"}
	assert.InDelta(t, 0.5, req.MinScoreOrDefault(0.5), 1e-9)

	// 显式传 0 表示不过滤，不能被默认值覆盖
	zero := 0.0
	req.MinScore = &zero
	assert.InDelta(t, 0, req.MinScoreOrDefault(0.5), 1e-9)

	v := 0.8
	req.MinScore = &v
	assert.InDelta(t, 0.8, req.MinScoreOrDefault(0.5), 1e-9)
}
