// Package messaging 提供基于 Redis Stream 的索引事件队列
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client      *redis.Client
	indexStream Stream
	maxLen      int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, indexStream string, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Producer{
		client:      client,
		indexStream: Stream(indexStream),
		maxLen:      maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishPageReindex 发布页面重建索引任务
func (p *Producer) PublishPageReindex(ctx context.Context, event *ReindexPageMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypePageReindex, event.OrgID, event)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("page_id", event.PageID)
	return p.Publish(ctx, p.indexStream, msg)
}

// PublishPageIndexDelete 发布页面索引删除任务
func (p *Producer) PublishPageIndexDelete(ctx context.Context, event *DeleteIndexMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypePageIndexDelete, event.OrgID, event)
	if err != nil {
		return "", err
	}

	msg.SetMetadata("page_id", event.PageID)
	return p.Publish(ctx, p.indexStream, msg)
}

// PublishIndexRebuild 发布范围重建索引任务
func (p *Producer) PublishIndexRebuild(ctx context.Context, event *RebuildIndexMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypeIndexRebuild, event.OrgID, event)
	if err != nil {
		return "", err
	}

	if event.CollectionID != "" {
		msg.SetMetadata("collection_id", event.CollectionID)
	}
	if event.SpaceID != "" {
		msg.SetMetadata("space_id", event.SpaceID)
	}
	return p.Publish(ctx, p.indexStream, msg)
}
