package retrieval

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ragFixture(matches []*VectorMatch, chat *fakeChatModel) *AnswerGenerator {
	vec := newFakeVectorIndex()
	vec.queryFn = func(*VectorQueryParams) ([]*VectorMatch, error) {
		return matches, nil
	}
	engine := NewEngine(&fakeEmbedder{}, vec, newFakePageRepo(), EngineConfig{MinScore: 0.5})
	return NewAnswerGenerator(engine, &fakeModelProvider{model: chat}, 5, 1500)
}

func TestAnswerWithContext(t *testing.T) {
	chat := &fakeChatModel{reply: "The install steps are in the guide."}
	gen := ragFixture([]*VectorMatch{
		{ID: "p1:0", PageID: "p1", Score: 0.9, Title: "Install Guide", Snippet: "run the installer"},
		{ID: "p2:0", PageID: "p2", Score: 0.7, Title: "FAQ", Snippet: "common questions"},
	}, chat)

	out, err := gen.Answer(context.Background(), &AnswerInput{
		OrgID: "org-1",
		Query: "how do I install?",
	})
	require.NoError(t, err)
	assert.Equal(t, "The install steps are in the guide.", out.Answer)

	require.Len(t, out.Sources, 2)
	assert.Equal(t, "p1", out.Sources[0].PageID)
	assert.Equal(t, "Install Guide", out.Sources[0].Title)
	assert.InDelta(t, 0.9, out.Sources[0].Score, 1e-6)

	// 系统消息携带编号的上下文块，用户问题单独成条。
	require.Len(t, chat.received, 1)
	msgs := chat.received[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `[Document 1: "Install Guide"]`)
	assert.Contains(t, msgs[0].Content, "run the installer")
	assert.Contains(t, msgs[0].Content, `[Document 2: "FAQ"]`)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "how do I install?", msgs[1].Content)
}

func TestAnswerNoContext(t *testing.T) {
	chat := &fakeChatModel{reply: "should never be called"}
	gen := ragFixture(nil, chat)

	out, err := gen.Answer(context.Background(), &AnswerInput{OrgID: "org-1", Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, noContextAnswer, out.Answer)
	assert.Empty(t, out.Sources)
	// 没有上下文不调用生成服务。
	assert.Empty(t, chat.received)
}

func TestAnswerDefaultMinScoreApplied(t *testing.T) {
	chat := &fakeChatModel{reply: "ok"}
	// 0.4 低于引擎默认阈值 0.5，应被过滤掉。
	gen := ragFixture([]*VectorMatch{
		{ID: "p1:0", PageID: "p1", Score: 0.4, Title: "Weak", Snippet: "weak match"},
	}, chat)

	out, err := gen.Answer(context.Background(), &AnswerInput{OrgID: "org-1", Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, noContextAnswer, out.Answer)
}

func TestAnswerProviderError(t *testing.T) {
	chat := &fakeChatModel{err: fmt.Errorf("rate limited")}
	gen := ragFixture([]*VectorMatch{
		{ID: "p1:0", PageID: "p1", Score: 0.9, Title: "Guide", Snippet: "body"},
	}, chat)

	_, err := gen.Answer(context.Background(), &AnswerInput{OrgID: "org-1", Query: "q"})
	assert.ErrorIs(t, err, ErrProvider)
}

func TestAnswerConversationUsesLastUserMessage(t *testing.T) {
	chat := &fakeChatModel{reply: "answer"}
	gen := ragFixture([]*VectorMatch{
		{ID: "p1:0", PageID: "p1", Score: 0.9, Title: "Guide", Snippet: "body"},
	}, chat)

	out, err := gen.AnswerConversation(context.Background(), &ConversationInput{
		OrgID: "org-1",
		Messages: []ChatMessage{
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "first answer"},
			{Role: "user", Content: "followup question"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", out.Answer)

	// 完整历史透传给生成服务（system + 3 条）。
	require.Len(t, chat.received, 1)
	msgs := chat.received[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, "followup question", msgs[3].Content)
}

func TestAnswerConversationNoUserMessage(t *testing.T) {
	gen := ragFixture(nil, &fakeChatModel{})
	_, err := gen.AnswerConversation(context.Background(), &ConversationInput{
		OrgID:    "org-1",
		Messages: []ChatMessage{{Role: "assistant", Content: "hello"}},
	})
	assert.Error(t, err)
}

func TestStreamForwardsChunks(t *testing.T) {
	chat := &fakeChatModel{reply: "streamed answer"}
	gen := ragFixture([]*VectorMatch{
		{ID: "p1:0", PageID: "p1", Score: 0.9, Title: "Guide", Snippet: "body"},
	}, chat)

	reader, out, err := gen.Stream(context.Background(), &AnswerInput{OrgID: "org-1", Query: "q"})
	require.NoError(t, err)
	require.NotNil(t, reader)
	defer reader.Close()
	require.Len(t, out.Sources, 1)

	var b strings.Builder
	for {
		msg, err := reader.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b.WriteString(msg.Content)
	}
	assert.Equal(t, "streamed answer", b.String())
}

func TestStreamNoContext(t *testing.T) {
	chat := &fakeChatModel{reply: "unused"}
	gen := ragFixture(nil, chat)

	reader, out, err := gen.Stream(context.Background(), &AnswerInput{OrgID: "org-1", Query: "q"})
	require.NoError(t, err)
	assert.Nil(t, reader)
	assert.Equal(t, noContextAnswer, out.Answer)
	assert.Empty(t, chat.received)
}

func TestBuildContextBlockTruncation(t *testing.T) {
	results := []*SearchResult{
		{Title: "A", Snippet: strings.Repeat("x", 100)},
		{Title: "B", Snippet: "short"},
		{Title: "C", Snippet: "dropped"},
	}
	block := BuildContextBlock(results, 2, 10)
	assert.Contains(t, block, `[Document 1: "A"]`)
	assert.Contains(t, block, `[Document 2: "B"]`)
	assert.NotContains(t, block, "C")
	// 单篇内容按 rune 截断。
	assert.NotContains(t, block, strings.Repeat("x", 11))
}

func TestStreamConversationForwardsHistory(t *testing.T) {
	chat := &fakeChatModel{reply: "streamed answer"}
	gen := ragFixture([]*VectorMatch{
		{ID: "p1:0", PageID: "p1", Score: 0.9, Title: "Guide", Snippet: "body"},
	}, chat)

	reader, out, err := gen.StreamConversation(context.Background(), &ConversationInput{
		OrgID: "org-1",
		Messages: []ChatMessage{
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "first answer"},
			{Role: "user", Content: "followup question"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, reader)
	defer reader.Close()
	require.Len(t, out.Sources, 1)

	// 完整历史透传给生成服务（system + 3 条），检索用最近一条用户消息。
	require.Len(t, chat.received, 1)
	msgs := chat.received[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "first question", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, "followup question", msgs[3].Content)

	var b strings.Builder
	for {
		msg, recvErr := reader.Recv()
		if recvErr == io.EOF {
			break
		}
		require.NoError(t, recvErr)
		b.WriteString(msg.Content)
	}
	assert.Equal(t, "streamed answer", b.String())
}

func TestStreamConversationNoUserMessage(t *testing.T) {
	gen := ragFixture(nil, &fakeChatModel{})
	_, _, err := gen.StreamConversation(context.Background(), &ConversationInput{
		OrgID:    "org-1",
		Messages: []ChatMessage{{Role: "assistant", Content: "hello"}},
	})
	assert.Error(t, err)
}
