package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-ai-api/internal/application/retrieval"
)

// closeNotifyRecorder 包装 httptest.ResponseRecorder 以实现 http.CloseNotifier，
// gin 的 c.Stream 依赖该接口
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func newJSONBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// matchVectorIndex 固定返回一条命中，让问答路径走到生成服务
type matchVectorIndex struct {
	stubVectorIndex
}

func (matchVectorIndex) Query(context.Context, *retrieval.VectorQueryParams) ([]*retrieval.VectorMatch, error) {
	return []*retrieval.VectorMatch{
		{ID: "p1:0", PageID: "p1", Score: 0.9, Title: "Guide", Snippet: "install steps"},
	}, nil
}

type streamModel struct {
	chunks    []string
	streamErr error
	received  [][]*schema.Message
}

func (m *streamModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.received = append(m.received, in)
	return &schema.Message{Role: schema.Assistant, Content: "answer"}, nil
}

func (m *streamModel) Stream(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.received = append(m.received, in)
	sr, sw := schema.Pipe[*schema.Message](len(m.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, chunk := range m.chunks {
			sw.Send(&schema.Message{Role: schema.Assistant, Content: chunk}, nil)
		}
		if m.streamErr != nil {
			sw.Send(nil, m.streamErr)
		}
	}()
	return sr, nil
}

type staticModelProvider struct {
	model model.BaseChatModel
}

func (p *staticModelProvider) Get(context.Context, string) (model.BaseChatModel, error) {
	return p.model, nil
}

func newChatFixture(chat model.BaseChatModel) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := retrieval.NewEngine(stubEmbedder{}, matchVectorIndex{}, &stubPageRepo{}, retrieval.EngineConfig{MinScore: 0.5})
	gen := retrieval.NewAnswerGenerator(engine, &staticModelProvider{model: chat}, 5, 1500)
	h := NewChatHandler(gen)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("org_id", "org-1")
		c.Next()
	})
	r.POST("/v1/chat/stream", h.ChatStream)
	return r
}

func TestChatStreamMasksProviderError(t *testing.T) {
	chat := &streamModel{
		chunks:    []string{"partial "},
		streamErr: fmt.Errorf("upstream replied 401: invalid api key sk-secret"),
	}
	r := newChatFixture(chat)

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", newJSONBody(t, map[string]interface{}{
		"query": "how do I install?",
	}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, "event:sources")
	assert.Contains(t, body, "partial")
	// 提供商原始错误不下发，客户端只看到统一文案
	assert.Contains(t, body, "failed to generate answer")
	assert.NotContains(t, body, "sk-secret")
	assert.NotContains(t, body, "401")
}

func TestChatStreamConversationForwardsHistory(t *testing.T) {
	chat := &streamModel{chunks: []string{"streamed"}}
	r := newChatFixture(chat)

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", newJSONBody(t, map[string]interface{}{
		"messages": []map[string]string{
			{"role": "user", "content": "first question"},
			{"role": "assistant", "content": "first answer"},
			{"role": "user", "content": "followup question"},
		},
	}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), "streamed")

	// 完整历史透传给生成服务（system + 3 条）
	require.Len(t, chat.received, 1)
	msgs := chat.received[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "first question", msgs[1].Content)
	assert.Equal(t, "followup question", msgs[3].Content)
}

func TestChatStreamRequiresQueryOrMessages(t *testing.T) {
	r := newChatFixture(&streamModel{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", newJSONBody(t, map[string]interface{}{}))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
