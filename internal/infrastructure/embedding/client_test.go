package embedding

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/config"
)

type fakeEinoEmbedder struct {
	calls   int
	batches [][]string
	err     error
}

func (f *fakeEinoEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.5, 0.25}
	}
	return out, nil
}

func TestEmbedEmptyInput(t *testing.T) {
	fake := &fakeEinoEmbedder{}
	c := NewClient(fake, &config.EmbeddingConfig{})

	out, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, fake.calls)
}

func TestEmbedBatching(t *testing.T) {
	fake := &fakeEinoEmbedder{}
	c := NewClient(fake, &config.EmbeddingConfig{BatchSize: 2})

	texts := []string{"a", "b", "c", "d", "e"}
	out, err := c.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, []float32{0.5, 0.25}, out[0])
}

func TestEmbedTruncatesLongInput(t *testing.T) {
	fake := &fakeEinoEmbedder{}
	c := NewClient(fake, &config.EmbeddingConfig{MaxInputChars: 10})

	_, err := c.Embed(context.Background(), []string{strings.Repeat("x", 50)})
	require.NoError(t, err)
	require.Len(t, fake.batches, 1)
	assert.Len(t, fake.batches[0][0], 10)
}

func TestEmbedProviderError(t *testing.T) {
	fake := &fakeEinoEmbedder{err: fmt.Errorf("upstream 500")}
	c := NewClient(fake, &config.EmbeddingConfig{})

	_, err := c.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, retrieval.ErrProvider)
}
