// Package main 索引事件消费者入口（index-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/config"
	"kb-ai-api/internal/domain/repository"
	"kb-ai-api/internal/infrastructure/embedding"
	"kb-ai-api/internal/infrastructure/messaging"
	"kb-ai-api/internal/infrastructure/persistence/milvus"
	"kb-ai-api/internal/infrastructure/persistence/postgres"
	"kb-ai-api/internal/infrastructure/persistence/redis"
	einoobs "kb-ai-api/internal/observability/eino"
	"kb-ai-api/pkg/logger"
	"kb-ai-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "index-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	einoobs.Init()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	// worker 必须能写向量索引，Milvus 不可用时直接退出
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to init milvus", err)
	}
	defer func() { _ = milvusClient.Close() }()

	einoEmbedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Fatal(ctx, "failed to init embedder", err)
	}

	// worker 直连 Postgres，跳过页面缓存以免索引到过期内容
	pageRepo := postgres.NewPageRepository(pgClient)
	vectorIndex := milvus.NewVectorIndexAdapter(milvus.NewRepository(milvusClient, cfg.Embedding.Dimension))
	indexer := retrieval.NewIndexer(
		embedding.NewClient(einoEmbedder, &cfg.Embedding),
		vectorIndex,
		retrieval.IndexerConfig{
			ChunkTokens:      cfg.Retrieval.ChunkTokens,
			UpsertBatchSize:  cfg.Retrieval.UpsertBatchSize,
			MaxChunksPerPage: cfg.Retrieval.MaxChunksPerPage,
			DeleteScanTopK:   cfg.Retrieval.DeleteScanTopK,
			SnippetRunes:     cfg.Retrieval.SnippetRunes,
			Dimension:        cfg.Embedding.Dimension,
		},
	)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.Stream(cfg.Messaging.RedisStream.IndexStream),
		Group:         messaging.ConsumerGroup(cfg.Messaging.RedisStream.ConsumerGroupPrefix + "-index-worker"),
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
	})

	consumer.RegisterHandler(messaging.TypePageReindex, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.ReindexPageMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		page, err := pageRepo.GetByID(ctx, payload.OrgID, payload.PageID)
		if err != nil {
			return err
		}
		if page == nil {
			// 页面已删除，清理残留索引后确认
			return indexer.DeleteIndex(ctx, payload.OrgID, payload.PageID)
		}

		chunks, err := indexer.Reindex(ctx, page)
		if err != nil {
			return err
		}
		logger.Info(ctx, "page reindexed", "page_id", page.ID, "chunks", chunks)
		return nil
	})

	consumer.RegisterHandler(messaging.TypePageIndexDelete, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.DeleteIndexMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return indexer.DeleteIndex(ctx, payload.OrgID, payload.PageID)
	})

	consumer.RegisterHandler(messaging.TypeIndexRebuild, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.RebuildIndexMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		pages, err := pageRepo.ListForReindex(ctx, repository.PageSearchFilter{
			OrgID:        payload.OrgID,
			CollectionID: payload.CollectionID,
			SpaceID:      payload.SpaceID,
		})
		if err != nil {
			return err
		}

		summary, err := indexer.BatchReindex(ctx, pages)
		if err != nil {
			return err
		}
		logger.Info(ctx, "rebuild completed",
			"org_id", payload.OrgID,
			"pages_indexed", summary.PagesIndexed,
			"pages_failed", summary.PagesFailed,
			"total_chunks", summary.TotalChunks,
		)
		if summary.PagesFailed > 0 {
			return fmt.Errorf("rebuild finished with %d failed pages", summary.PagesFailed)
		}
		return nil
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	log := logger.FromContext(ctx)
	log.Info("index-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("index-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
