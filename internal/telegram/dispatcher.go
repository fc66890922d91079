package telegram

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/telegramdrive/internal/models"
	"github.com/parsascontentcorner/telegramdrive/internal/session"
	"github.com/parsascontentcorner/telegramdrive/pkg/logger"
)

// Handler processes one update
type Handler interface {
	HandleUpdate(ctx context.Context, u session.Update)
}

// Dispatcher runs updates of one user strictly in arrival order while different
// users proceed in parallel. Each active user gets a worker goroutine that exits
// once the user's queue is empty.
type Dispatcher struct {
	handler Handler

	mu     sync.Mutex
	queues map[models.UserID][]session.Update
	closed bool
	wg     sync.WaitGroup

	logger *zap.Logger
}

// NewDispatcher creates a dispatcher feeding handler
func NewDispatcher(handler Handler, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		queues:  make(map[models.UserID][]session.Update),
		logger:  logger,
	}
}

// Dispatch queues u behind the user's earlier updates. It reports false once
// Shutdown has started.
func (d *Dispatcher) Dispatch(ctx context.Context, u session.Update) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	queue, active := d.queues[u.UserID]
	d.queues[u.UserID] = append(queue, u)
	if active {
		return true
	}

	// Queued work finishes during shutdown even after the poll context is cancelled
	d.wg.Add(1)
	go d.work(context.WithoutCancel(ctx), u.UserID)
	return true
}

// Active returns the number of users with a running worker
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Shutdown stops accepting updates and waits for queued ones to finish
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context, userID models.UserID) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		u := queue[0]
		d.queues[userID] = queue[1:]
		d.mu.Unlock()

		d.handle(ctx, u)
	}
}

func (d *Dispatcher) handle(ctx context.Context, u session.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling update",
				logger.UserID(int64(u.UserID)),
				zap.Any("panic", r),
			)
		}
	}()

	d.handler.HandleUpdate(ctx, u)
}
