// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"qa-smart-go/internal/config"
	"qa-smart-go/internal/model"
	"qa-smart-go/pkg/log"
)

// maxAttempts 是同一条消息的最大处理次数，用尽后提交 offset 放弃该消息。
const maxAttempts = 3

// publishBatchTimeout 是异步写入攒批的最长等待时间。
const publishBatchTimeout = 10 * time.Millisecond

// retryBackoff 是两次处理尝试之间的等待时间。
var retryBackoff = 200 * time.Millisecond

// EventHandler 处理一条分类变更事件。
type EventHandler func(ctx context.Context, event model.CategoryEvent) error

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 将分类变更事件写入 Kafka。
type Producer struct {
	writer messageWriter
}

// NewProducer 初始化 Kafka 生产者。写入是异步的，Publish 不等待 broker 确认，
// 发送失败只在 Completion 回调中记录日志。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers(cfg.Brokers)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: publishBatchTimeout,
		Async:        true,
		Completion:   logCompletion,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Publish 发送一个分类事件。以分类 ID 作为 key，保证同一分类的事件有序。
func (p *Producer) Publish(ctx context.Context, event model.CategoryEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.CategoryID), 10)),
		Value: value,
	})
}

func logCompletion(messages []kafka.Message, err error) {
	if err != nil {
		log.Errorf("发送分类事件到 Kafka 失败, count: %d, error: %v", len(messages), err)
	}
}

// Close 刷出尚未发送的消息并关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer 从 Kafka 读取分类事件并交给 handler 处理。
type Consumer struct {
	reader      messageReader
	handler     EventHandler
	redisClient *redis.Client
}

// NewConsumer 创建一个消费者。redisClient 用于记录失败次数。
func NewConsumer(cfg config.KafkaConfig, handler EventHandler, redisClient *redis.Client) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
	return &Consumer{reader: r, handler: handler, redisClient: redisClient}
}

// Run 持续消费消息直到 ctx 被取消。
func (c *Consumer) Run(ctx context.Context) {
	log.Info("Kafka 消费者已启动")
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}
		c.handle(ctx, m)
	}
}

// handle 处理一条消息，失败时原地重试，成功或重试次数用尽后提交 offset。
// 尝试次数记在 Redis 中，进程重启后重新投递的消息会接着计数。
func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var event model.CategoryEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		c.commit(ctx, m)
		return
	}

	attemptsKey := fmt.Sprintf("kafka:attempts:%d:%d", m.Partition, m.Offset)
	local := int64(0)
	for {
		err := c.handler(ctx, event)
		if err == nil {
			log.Infow("分类事件处理成功", "type", event.Type, "categoryId", event.CategoryID, "actor", event.Actor)
			_ = c.redisClient.Del(ctx, attemptsKey).Err()
			c.commit(ctx, m)
			return
		}
		log.Errorf("处理分类事件失败: type=%s, categoryId=%d, error=%v", event.Type, event.CategoryID, err)

		local++
		attempts, incErr := c.redisClient.Incr(ctx, attemptsKey).Result()
		if incErr != nil {
			// Redis 异常时退回本地计数
			attempts = local
		} else {
			_ = c.redisClient.Expire(ctx, attemptsKey, 24*time.Hour).Err()
		}
		if attempts >= maxAttempts {
			log.Errorf("分类事件多次处理失败(>=%d)，提交 offset 终止重试: offset=%d", maxAttempts, m.Offset)
			c.commit(ctx, m)
			return
		}

		select {
		case <-ctx.Done():
			// 未提交的消息会在下次启动时重新投递
			return
		case <-time.After(retryBackoff):
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func brokers(raw string) []string {
	out := make([]string, 0)
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
