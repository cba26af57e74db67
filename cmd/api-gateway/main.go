// Package main API 网关服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kb-ai-api/internal/application/retrieval"
	"kb-ai-api/internal/config"
	"kb-ai-api/internal/infrastructure/embedding"
	"kb-ai-api/internal/infrastructure/llm"
	"kb-ai-api/internal/infrastructure/messaging"
	"kb-ai-api/internal/infrastructure/persistence/milvus"
	"kb-ai-api/internal/infrastructure/persistence/postgres"
	"kb-ai-api/internal/infrastructure/persistence/redis"
	"kb-ai-api/internal/interfaces/http/handler"
	"kb-ai-api/internal/interfaces/http/router"
	einoobs "kb-ai-api/internal/observability/eino"
	"kb-ai-api/pkg/logger"
	"kb-ai-api/pkg/tracer"

	"github.com/joho/godotenv"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting api-gateway",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 初始化 Eino 全局 callbacks（指标/追踪）
	einoobs.Init()

	// 存储层
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

	// Milvus 不可用时降级运行：向量端点返回 503，关键词检索仍可用
	var milvusClient *milvus.Client
	if c, err := milvus.NewClient(ctx, &cfg.Vector.Milvus); err != nil {
		log.Warn("milvus unavailable, vector retrieval disabled", "error", err)
	} else {
		milvusClient = c
		defer func() { _ = milvusClient.Close() }()
	}

	// 页面仓储：Postgres + Redis 读穿缓存
	cache := redis.NewCache(redisClient)
	pageRepo := redis.NewCachedPageRepository(
		postgres.NewPageRepository(pgClient),
		cache,
		cfg.Cache.PageTTL,
	)

	// 向量索引
	var milvusRepo *milvus.Repository
	if milvusClient != nil {
		milvusRepo = milvus.NewRepository(milvusClient, cfg.Embedding.Dimension)
	}
	vectorIndex := milvus.NewVectorIndexAdapter(milvusRepo)

	// 嵌入客户端
	var embedClient retrieval.Embedder
	if einoEmbedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding); err != nil {
		log.Warn("embedding provider unavailable, vector retrieval disabled", "error", err)
	} else {
		embedClient = embedding.NewClient(einoEmbedder, &cfg.Embedding)
	}

	// 应用层
	engine := retrieval.NewEngine(embedClient, vectorIndex, pageRepo, retrieval.EngineConfig{
		MinScore:        cfg.Retrieval.MinScore,
		LexicalDiscount: cfg.Retrieval.LexicalDiscount,
	})
	indexer := retrieval.NewIndexer(embedClient, vectorIndex, retrieval.IndexerConfig{
		ChunkTokens:      cfg.Retrieval.ChunkTokens,
		UpsertBatchSize:  cfg.Retrieval.UpsertBatchSize,
		MaxChunksPerPage: cfg.Retrieval.MaxChunksPerPage,
		DeleteScanTopK:   cfg.Retrieval.DeleteScanTopK,
		SnippetRunes:     cfg.Retrieval.SnippetRunes,
		Dimension:        cfg.Embedding.Dimension,
	})
	enricher := retrieval.NewEnricher(pageRepo)
	generator := retrieval.NewAnswerGenerator(
		engine,
		llm.NewEinoFactory(cfg),
		cfg.Retrieval.ContextDocs,
		cfg.Retrieval.ContextRunesPerDoc,
	)

	// 索引事件队列
	producer := messaging.NewProducer(
		redisClient.Redis(),
		cfg.Messaging.RedisStream.IndexStream,
		int64(cfg.Messaging.RedisStream.MaxLen),
	)

	// HTTP 层
	r := router.New(cfg, router.Handlers{
		Health: handler.NewHealthHandler(pgClient, redisClient, milvusClient),
		Search: handler.NewSearchHandler(engine, enricher),
		Index:  handler.NewIndexHandler(indexer, pageRepo, producer, cache),
		Chat:   handler.NewChatHandler(generator),
	}, redis.NewRateLimiter(redisClient))

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
