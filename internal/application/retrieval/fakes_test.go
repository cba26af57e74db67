package retrieval

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"kb-ai-api/internal/domain/entity"
	"kb-ai-api/internal/domain/repository"
)

type fakeEmbedder struct {
	dim   int
	calls int
	texts [][]string
	err   error
	// vectors 非空时按调用顺序依次返回，覆盖默认的恒定向量。
	vectors [][][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.texts = append(f.texts, texts)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.vectors) > 0 {
		out := f.vectors[0]
		f.vectors = f.vectors[1:]
		return out, nil
	}
	dim := f.dim
	if dim <= 0 {
		dim = 4
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, dim)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

type fakeVectorIndex struct {
	entries map[string]*VectorEntry
	ops     []string

	queryFn     func(params *VectorQueryParams) ([]*VectorMatch, error)
	upsertErr   error
	deleteErr   error
	upsertCalls int
	deletedIDs  [][]string
	queries     []*VectorQueryParams
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{entries: make(map[string]*VectorEntry)}
}

func (f *fakeVectorIndex) EnsurePageChunksCollection(context.Context) error {
	return nil
}

func (f *fakeVectorIndex) Upsert(_ context.Context, _ string, entries []*VectorEntry) error {
	f.ops = append(f.ops, "upsert")
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return nil
}

func (f *fakeVectorIndex) Query(_ context.Context, params *VectorQueryParams) ([]*VectorMatch, error) {
	f.ops = append(f.ops, "query")
	f.queries = append(f.queries, params)
	if f.queryFn != nil {
		return f.queryFn(params)
	}
	var out []*VectorMatch
	for _, e := range f.entries {
		if params.PageID != "" && e.PageID != params.PageID {
			continue
		}
		out = append(out, &VectorMatch{
			ID:      e.ID,
			PageID:  e.PageID,
			Ordinal: e.Ordinal,
			Title:   e.Title,
			Snippet: e.Snippet,
			Score:   1,
		})
	}
	return out, nil
}

func (f *fakeVectorIndex) DeleteByIDs(_ context.Context, _ string, ids []string) error {
	f.ops = append(f.ops, "delete")
	f.deletedIDs = append(f.deletedIDs, ids)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, id := range ids {
		delete(f.entries, id)
	}
	return nil
}

type fakePageRepo struct {
	pages map[string]*entity.Page

	getByIDsCalls int
	lastIDs       []string
	searchErr     error
	getErr        error
}

func newFakePageRepo(pages ...*entity.Page) *fakePageRepo {
	m := make(map[string]*entity.Page, len(pages))
	for _, p := range pages {
		m[p.ID] = p
	}
	return &fakePageRepo{pages: m}
}

func (f *fakePageRepo) GetByID(_ context.Context, _, id string) (*entity.Page, error) {
	return f.pages[id], nil
}

func (f *fakePageRepo) GetByIDs(_ context.Context, orgID string, ids []string) ([]*entity.Page, error) {
	f.getByIDsCalls++
	f.lastIDs = ids
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []*entity.Page
	for _, id := range ids {
		if p, ok := f.pages[id]; ok && p.OrgID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePageRepo) SearchByTitleOrDescription(_ context.Context, filter repository.PageSearchFilter) ([]*entity.Page, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	pattern := strings.ToLower(filter.Pattern)
	var out []*entity.Page
	for _, p := range f.pages {
		if p.OrgID != filter.OrgID {
			continue
		}
		if filter.CollectionID != "" && p.CollectionID != filter.CollectionID {
			continue
		}
		if filter.SpaceID != "" && p.SpaceID != filter.SpaceID {
			continue
		}
		if !strings.Contains(strings.ToLower(p.Title), pattern) &&
			!strings.Contains(strings.ToLower(p.Description), pattern) {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakePageRepo) ListForReindex(_ context.Context, filter repository.PageSearchFilter) ([]*entity.Page, error) {
	var out []*entity.Page
	for _, p := range f.pages {
		if p.OrgID != filter.OrgID {
			continue
		}
		if filter.CollectionID != "" && p.CollectionID != filter.CollectionID {
			continue
		}
		if filter.SpaceID != "" && p.SpaceID != filter.SpaceID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type fakeChatModel struct {
	reply    string
	err      error
	received [][]*schema.Message
}

func (m *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.received = append(m.received, in)
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.reply}, nil
}

func (m *fakeChatModel) Stream(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.received = append(m.received, in)
	if m.err != nil {
		return nil, m.err
	}
	return schema.StreamReaderFromArray([]*schema.Message{
		{Role: schema.Assistant, Content: m.reply},
	}), nil
}

type fakeModelProvider struct {
	model model.BaseChatModel
	err   error
}

func (f *fakeModelProvider) Get(context.Context, string) (model.BaseChatModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.model, nil
}
