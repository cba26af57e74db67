package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/domain/entity"
	"kb-ai-api/internal/domain/repository"
	"kb-ai-api/internal/infrastructure/messaging"
)

type fakePublisher struct {
	reindexed []*messaging.ReindexPageMessage
	deleted   []*messaging.DeleteIndexMessage
	rebuilds  []*messaging.RebuildIndexMessage
}

func (f *fakePublisher) PublishPageReindex(_ context.Context, event *messaging.ReindexPageMessage) (string, error) {
	f.reindexed = append(f.reindexed, event)
	return "msg-1", nil
}

func (f *fakePublisher) PublishPageIndexDelete(_ context.Context, event *messaging.DeleteIndexMessage) (string, error) {
	f.deleted = append(f.deleted, event)
	return "msg-2", nil
}

func (f *fakePublisher) PublishIndexRebuild(_ context.Context, event *messaging.RebuildIndexMessage) (string, error) {
	f.rebuilds = append(f.rebuilds, event)
	return "msg-3", nil
}

type fakeInvalidator struct {
	pages []string
	orgs  []string
}

func (f *fakeInvalidator) InvalidatePage(_ context.Context, orgID, pageID string) error {
	f.pages = append(f.pages, orgID+"/"+pageID)
	return nil
}

func (f *fakeInvalidator) InvalidateOrg(_ context.Context, orgID string) error {
	f.orgs = append(f.orgs, orgID)
	return nil
}

type stubPageRepo struct {
	pages map[string]*entity.Page
}

func (s *stubPageRepo) GetByID(_ context.Context, _, id string) (*entity.Page, error) {
	return s.pages[id], nil
}

func (s *stubPageRepo) GetByIDs(context.Context, string, []string) ([]*entity.Page, error) {
	return nil, nil
}

func (s *stubPageRepo) SearchByTitleOrDescription(context.Context, repository.PageSearchFilter) ([]*entity.Page, error) {
	return nil, nil
}

func (s *stubPageRepo) ListForReindex(context.Context, repository.PageSearchFilter) ([]*entity.Page, error) {
	return nil, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type stubVectorIndex struct{}

func (stubVectorIndex) EnsurePageChunksCollection(context.Context) error { return nil }

func (stubVectorIndex) Upsert(context.Context, string, []*retrieval.VectorEntry) error { return nil }

func (stubVectorIndex) Query(context.Context, *retrieval.VectorQueryParams) ([]*retrieval.VectorMatch, error) {
	return nil, nil
}

func (stubVectorIndex) DeleteByIDs(context.Context, string, []string) error { return nil }

type indexFixture struct {
	router    *gin.Engine
	publisher *fakePublisher
	inv       *fakeInvalidator
}

func newIndexFixture(pages map[string]*entity.Page) *indexFixture {
	gin.SetMode(gin.TestMode)
	publisher := &fakePublisher{}
	inv := &fakeInvalidator{}
	indexer := retrieval.NewIndexer(stubEmbedder{}, stubVectorIndex{}, retrieval.IndexerConfig{})
	h := NewIndexHandler(indexer, &stubPageRepo{pages: pages}, publisher, inv)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("org_id", "org-1")
		c.Next()
	})
	r.POST("/v1/pages/:pid/reindex", h.Reindex)
	r.DELETE("/v1/pages/:pid/index", h.DeleteIndex)
	r.POST("/v1/index/rebuild", h.Rebuild)
	return &indexFixture{router: r, publisher: publisher, inv: inv}
}

func TestReindexAsyncEnqueues(t *testing.T) {
	fx := newIndexFixture(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pages/p1/reindex?async=true", nil)
	fx.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "msg-1")
	require.Len(t, fx.publisher.reindexed, 1)
	assert.Equal(t, "org-1", fx.publisher.reindexed[0].OrgID)
	assert.Equal(t, "p1", fx.publisher.reindexed[0].PageID)
}

func TestReindexInvalidatesPageCacheBeforeLoad(t *testing.T) {
	fx := newIndexFixture(map[string]*entity.Page{
		"p1": {ID: "p1", OrgID: "org-1", Title: "Guide", Content: "body text"},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pages/p1/reindex", nil)
	fx.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// 重建由页面变更触发，先失效缓存避免索引到过期副本
	assert.Equal(t, []string{"org-1/p1"}, fx.inv.pages)
}

func TestReindexUnknownPage(t *testing.T) {
	fx := newIndexFixture(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pages/missing/reindex", nil)
	fx.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteIndexAsyncEnqueues(t *testing.T) {
	fx := newIndexFixture(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/pages/p1/index?async=true", nil)
	fx.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, fx.publisher.deleted, 1)
	assert.Equal(t, "p1", fx.publisher.deleted[0].PageID)
	assert.Equal(t, []string{"org-1/p1"}, fx.inv.pages)
}

func TestRebuildInvalidatesOrgCache(t *testing.T) {
	fx := newIndexFixture(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/index/rebuild", newJSONBody(t, map[string]string{
		"collection_id": "c1",
	}))
	req.Header.Set("Content-Type", "application/json")
	fx.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"org-1"}, fx.inv.orgs)
	require.Len(t, fx.publisher.rebuilds, 1)
	assert.Equal(t, "c1", fx.publisher.rebuilds[0].CollectionID)
}
