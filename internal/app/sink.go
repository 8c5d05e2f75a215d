package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jisotalo/codesys-client/internal/iec"
	"github.com/jisotalo/codesys-client/internal/notify"
	"github.com/jisotalo/codesys-client/internal/storage"
	"github.com/jisotalo/codesys-client/internal/storage/models"
	pgstorage "github.com/jisotalo/codesys-client/internal/storage/pg"
	redisstorage "github.com/jisotalo/codesys-client/internal/storage/redis"
)

type sinkEventKind int

const (
	sinkMessage sinkEventKind = iota // 重组完成（rx）
	sinkSent                         // 发送完成（tx）
	sinkLoss                         // 丢包丢弃
)

type sinkEvent struct {
	kind      sinkEventKind
	listID    uint16
	counter   uint16
	fragments int
	bytes     int
	value     any
	at        time.Time
	// 丢包事件专用
	expected uint16
	received uint16
}

// Sink 把网关事件异步扇出到存储、缓存与 Webhook 通知。
// 任一后端不可用（nil）时跳过；后端写失败只记日志，不影响收发路径。
type Sink struct {
	repo  storage.CoreRepo             // 可为 nil
	raw   *pgstorage.Repository        // 可为 nil
	cache *redisstorage.ValueCache     // 可为 nil
	queue *notify.Queue                // 可为 nil
	types map[uint16]map[string]string // listID -> 变量名 -> IEC 类型名
	log   *zap.Logger

	events   chan sinkEvent
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopC    chan struct{}
}

// NewSink 创建事件扇出器
func NewSink(defs []*iec.Definition, repo storage.CoreRepo, raw *pgstorage.Repository, cache *redisstorage.ValueCache, queue *notify.Queue, log *zap.Logger) *Sink {
	types := make(map[uint16]map[string]string, len(defs))
	for _, d := range defs {
		m := make(map[string]string, len(d.Variables()))
		for _, v := range d.Variables() {
			m[v.Name] = string(v.Type)
		}
		types[d.ListID()] = m
	}
	return &Sink{
		repo:   repo,
		raw:    raw,
		cache:  cache,
		queue:  queue,
		types:  types,
		log:    log,
		events: make(chan sinkEvent, 1024),
		stopC:  make(chan struct{}),
	}
}

// Start 启动扇出 worker
func (s *Sink) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop 停止 worker 并等待在途事件处理完
func (s *Sink) Stop() {
	s.stopOnce.Do(func() { close(s.stopC) })
	s.wg.Wait()
}

// OfferMessage 投递一条重组完成事件。队列满时丢弃（只影响观测面）
func (s *Sink) OfferMessage(listID, counter uint16, fragments, bytes int, value any, at time.Time) {
	s.offer(sinkEvent{kind: sinkMessage, listID: listID, counter: counter,
		fragments: fragments, bytes: bytes, value: value, at: at})
}

// OfferSent 投递一条发送完成事件
func (s *Sink) OfferSent(listID, counter uint16, bytes int, at time.Time) {
	s.offer(sinkEvent{kind: sinkSent, listID: listID, counter: counter, fragments: 1, bytes: bytes, at: at})
}

// OfferLoss 投递一条丢包事件
func (s *Sink) OfferLoss(listID, expected, received uint16) {
	s.offer(sinkEvent{kind: sinkLoss, listID: listID, expected: expected, received: received, at: time.Now()})
}

func (s *Sink) offer(ev sinkEvent) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("sink queue full, event dropped",
			zap.Uint16("list", ev.listID), zap.Int("kind", int(ev.kind)))
	}
}

func (s *Sink) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopC:
			// 排空剩余事件
			for {
				select {
				case ev := <-s.events:
					s.handle(ctx, ev)
				default:
					return
				}
			}
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Sink) handle(ctx context.Context, ev sinkEvent) {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch ev.kind {
	case sinkMessage:
		s.handleMessage(opCtx, ev)
	case sinkSent:
		s.appendMessage(opCtx, ev, "tx")
	case sinkLoss:
		s.handleLoss(opCtx, ev)
	}
}

func (s *Sink) handleMessage(ctx context.Context, ev sinkEvent) {
	values, _ := ev.value.(map[string]any)

	if s.repo != nil && len(values) > 0 {
		rows := make([]models.NetvarValue, 0, len(values))
		for name, v := range values {
			data, err := json.Marshal(v)
			if err != nil {
				s.log.Warn("value marshal failed", zap.Uint16("list", ev.listID),
					zap.String("name", name), zap.Error(err))
				continue
			}
			rows = append(rows, models.NetvarValue{
				ListID:     int32(ev.listID),
				Name:       name,
				Type:       s.types[ev.listID][name],
				Value:      string(data),
				Counter:    int32(ev.counter),
				ReceivedAt: ev.at,
			})
		}
		err := s.repo.WithTx(ctx, func(repo storage.CoreRepo) error {
			if err := repo.UpsertValues(ctx, rows); err != nil {
				return err
			}
			return repo.AppendMessage(ctx, &models.NetvarMessage{
				ListID:    int32(ev.listID),
				Counter:   int32(ev.counter),
				Direction: "rx",
				Fragments: int32(ev.fragments),
				Bytes:     int32(ev.bytes),
				At:        ev.at,
			})
		})
		if err != nil {
			s.log.Warn("persist values failed", zap.Uint16("list", ev.listID), zap.Error(err))
		}
	}

	if s.cache != nil && len(values) > 0 {
		if err := s.cache.StoreValues(ctx, ev.listID, ev.counter, values); err != nil {
			s.log.Warn("cache store failed", zap.Uint16("list", ev.listID), zap.Error(err))
		}
	}

	if s.queue != nil {
		_ = s.queue.Enqueue(notify.NewValuesEvent(ev.listID, ev.counter, values))
	}
}

func (s *Sink) appendMessage(ctx context.Context, ev sinkEvent, direction string) {
	if s.repo == nil {
		return
	}
	err := s.repo.AppendMessage(ctx, &models.NetvarMessage{
		ListID:    int32(ev.listID),
		Counter:   int32(ev.counter),
		Direction: direction,
		Fragments: int32(ev.fragments),
		Bytes:     int32(ev.bytes),
		At:        ev.at,
	})
	if err != nil {
		s.log.Warn("append message failed", zap.Uint16("list", ev.listID), zap.Error(err))
	}
}

func (s *Sink) handleLoss(ctx context.Context, ev sinkEvent) {
	if s.raw != nil {
		if err := s.raw.InsertLossEvent(ctx, int32(ev.listID), int32(ev.expected), int32(ev.received)); err != nil {
			s.log.Warn("loss event persist failed", zap.Uint16("list", ev.listID), zap.Error(err))
		}
	}
	if s.queue != nil {
		_ = s.queue.Enqueue(notify.NewLossEvent(ev.listID, ev.expected, ev.received))
	}
}
