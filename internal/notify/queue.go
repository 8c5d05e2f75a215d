package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Queue 进程内异步事件队列。队列满时丢弃最新事件而不是阻塞接收路径
type Queue struct {
	pusher   *Pusher
	endpoint string
	logger   *zap.Logger
	events   chan *Event
	timeout  time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopC    chan struct{}
}

// NewQueue 创建事件队列
func NewQueue(pusher *Pusher, endpoint string, queueSize int, timeout time.Duration, logger *zap.Logger) *Queue {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Queue{
		pusher:   pusher,
		endpoint: endpoint,
		logger:   logger,
		events:   make(chan *Event, queueSize),
		timeout:  timeout,
		stopC:    make(chan struct{}),
	}
}

// Enqueue 入队事件。不阻塞调用方，满时返回错误
func (q *Queue) Enqueue(event *Event) error {
	if q == nil {
		return fmt.Errorf("event queue not initialized")
	}
	select {
	case q.events <- event:
		return nil
	default:
		q.logger.Warn("event queue full, dropping event",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
			zap.Uint16("list_id", event.ListID))
		return fmt.Errorf("event queue full")
	}
}

// StartWorkers 启动消费 Worker
func (q *Queue) StartWorkers(ctx context.Context, workerCount int) {
	if workerCount <= 0 {
		workerCount = 1
	}
	q.logger.Info("starting notify workers",
		zap.Int("worker_count", workerCount),
		zap.String("webhook_url", q.endpoint))
	for i := 0; i < workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i+1)
	}
}

// Stop 停止全部 Worker 并等待退出
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stopC) })
	q.wg.Wait()
}

// Length 当前待推送事件数
func (q *Queue) Length() int {
	return len(q.events)
}

func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()
	logger := q.logger.With(zap.Int("worker_id", workerID))
	logger.Debug("notify worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("notify worker stopped")
			return
		case <-q.stopC:
			logger.Debug("notify worker stopped")
			return
		case event := <-q.events:
			q.push(ctx, event, logger)
		}
	}
}

func (q *Queue) push(ctx context.Context, event *Event, logger *zap.Logger) {
	pushCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	code, respBody, err := q.pusher.SendEvent(pushCtx, q.endpoint, event)
	if err != nil {
		logger.Warn("event push failed",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
			zap.Error(err))
		return
	}
	if code >= 400 {
		logger.Warn("event push rejected",
			zap.String("event_id", event.EventID),
			zap.Int("status_code", code),
			zap.ByteString("response", respBody))
		return
	}
	logger.Debug("event pushed",
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
		zap.Int("status_code", code))
}
