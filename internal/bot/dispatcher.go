// AngelaMos | 2026
// dispatcher.go

package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	defaultWorkers    = 8
	defaultQueueDepth = 64
	updateTimeout     = 30 * time.Second
)

// UpdateHandler processes one update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// Dispatcher fans updates out to a fixed set of workers. Updates from the
// same sender always land on the same worker, so one person's messages are
// handled in order while different people are served in parallel.
type Dispatcher struct {
	handler UpdateHandler
	logger  *slog.Logger
	queues  []chan tgbotapi.Update

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDispatcher(handler UpdateHandler, logger *slog.Logger, workers, depth int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if depth <= 0 {
		depth = defaultQueueDepth
	}

	queues := make([]chan tgbotapi.Update, workers)
	for i := range queues {
		queues[i] = make(chan tgbotapi.Update, depth)
	}

	return &Dispatcher{
		handler: handler,
		logger:  logger,
		queues:  queues,
		done:    make(chan struct{}),
	}
}

// Start launches the workers. They stop when ctx ends or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, q := range d.queues {
		d.wg.Add(1)
		go d.work(ctx, i, q)
	}

	d.logger.Info("update dispatcher started", "workers", len(d.queues))
}

func (d *Dispatcher) work(ctx context.Context, id int, q <-chan tgbotapi.Update) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case upd := <-q:
			updCtx, cancel := context.WithTimeout(ctx, updateTimeout)
			d.handler.HandleUpdate(updCtx, upd)
			cancel()
		}
	}
}

// Enqueue hands upd to its sender's worker, blocking while that worker's
// queue is full. It returns false once the dispatcher is stopping.
func (d *Dispatcher) Enqueue(ctx context.Context, upd tgbotapi.Update) bool {
	select {
	case <-d.done:
		return false
	default:
	}

	q := d.queues[d.shard(upd)]

	select {
	case q <- upd:
		return true
	case <-d.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) shard(upd tgbotapi.Update) int {
	id := senderID(upd)
	if id < 0 {
		id = -id
	}
	return int(id % int64(len(d.queues)))
}

// Stop signals the workers and waits for in-flight updates to finish.
// Updates still queued are dropped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

func senderID(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.ID
	default:
		return 0
	}
}
