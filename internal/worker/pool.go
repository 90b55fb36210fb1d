// Пакет worker — пул для выноса тяжёлой работы (распаковка архивов)
// из горутин обработки HTTP-запросов.
//
// Вызывающий код передаёт функцию в Submit и ждёт её результата.
// Одновременно выполняется не больше size задач (semaphore.Weighted);
// остальные вызовы Submit ждут свободного слота, не блокируя другие запросы.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

// ErrStopped — пул остановлен, задача не принята.
var ErrStopped = errors.New("пул воркеров остановлен")

// Prometheus-метрики пула.
var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rb_extract_queue_depth",
		Help: "Количество задач, ожидающих свободного воркера.",
	}, []string{"pool"})
	busyWorkers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rb_extract_busy_workers",
		Help: "Количество воркеров, выполняющих задачу.",
	}, []string{"pool"})
)

// Pool — пул с фиксированным числом одновременно выполняемых задач.
type Pool struct {
	name   string
	size   int
	sem    *semaphore.Weighted
	logger *slog.Logger

	// ctx отменяется при остановке и прерывает ожидание слота
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	mu        sync.Mutex
	closed    bool
	wg        sync.WaitGroup
}

// New создаёт пул на size одновременных задач.
func New(name string, size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		name:   name,
		size:   size,
		sem:    semaphore.NewWeighted(int64(size)),
		logger: logger.With(slog.String("component", "worker_pool"), slog.String("pool", name)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start привязывает пул к ctx: отмена ctx эквивалентна Stop без ожидания.
// Повторный вызов ничего не делает.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go func() {
			select {
			case <-ctx.Done():
				p.shutdown()
			case <-p.ctx.Done():
			}
		}()
		p.logger.Info("Пул воркеров запущен", slog.Int("workers", p.size))
	})
}

// Stop останавливает пул и ждёт завершения выполняющихся задач.
// Задачи, уже получившие слот, доводятся до конца.
func (p *Pool) Stop() {
	p.shutdown()
	p.wg.Wait()
	p.logger.Info("Пул воркеров остановлен")
}

func (p *Pool) shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
}

// Submit выполняет fn в отдельной горутине пула и возвращает её результат.
// ctx ограничивает только ожидание свободного слота: принятая задача
// выполняется до конца, и Submit дожидается её результата.
// Паника внутри fn превращается в ошибку.
func (p *Pool) Submit(ctx context.Context, fn func() error) error {
	if p.ctx.Err() != nil {
		return ErrStopped
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unwatch := context.AfterFunc(p.ctx, cancel)
	defer unwatch()

	queueDepth.WithLabelValues(p.name).Inc()
	err := p.sem.Acquire(waitCtx, 1)
	queueDepth.WithLabelValues(p.name).Dec()
	if err != nil {
		if p.ctx.Err() != nil && ctx.Err() == nil {
			return ErrStopped
		}
		return ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return ErrStopped
	}
	p.wg.Add(1)
	p.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)

		busyWorkers.WithLabelValues(p.name).Inc()
		defer busyWorkers.WithLabelValues(p.name).Dec()

		result <- p.run(fn)
	}()
	return <-result
}

// run выполняет задачу с перехватом паники.
func (p *Pool) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Паника в задаче воркера", slog.Any("panic", r))
			err = fmt.Errorf("паника в задаче воркера: %v", r)
		}
	}()
	return fn()
}
