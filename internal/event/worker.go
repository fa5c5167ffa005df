package event

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/trustdesk/backend/internal/infra"
)

type worker struct {
	mu            sync.RWMutex
	subscriptions map[string][]func(event Queueable)
}

var (
	instance = &worker{
		subscriptions: map[string][]func(event Queueable){},
	}
	l = log.WithField("context", "event_worker")
)

// Subscribe registers fn for every event of the given type.
func Subscribe(eventType string, fn func(event Queueable)) {
	instance.mu.Lock()
	defer instance.mu.Unlock()
	instance.subscriptions[eventType] = append(instance.subscriptions[eventType], fn)
}

func RunWorker() context.CancelFunc {
	ctx, cancelFunc := context.WithCancel(context.Background())
	instance.Run(ctx)
	return cancelFunc
}

func (w *worker) Run(ctx context.Context) {
	done := ctx.Done()

	// A panicking subscriber must not take delivery down with it.
	go infra.GoRecoverable(-1, "event-worker", func() {
		l.Trace("events runner go")
		var event Queueable
		for {
			select {
			case <-done:
				l.Info("shutting down event worker by cancelled context")
				return
			default:
				time.Sleep(1 * time.Millisecond)
				event = Bus.DQ()
				if event == nil {
					continue
				}

				if event.Expired() {
					continue
				}

				w.mu.RLock()
				subscribers, ok := w.subscriptions[event.Type()]
				w.mu.RUnlock()
				if !ok {
					Bus.NQ(event)
					continue
				}
				for _, sub := range subscribers {
					sub(event)
					if event.IsDropped() {
						continue
					}
				}

				if event.IsDropped() {
					continue
				}
				if !event.IsProcessed() {
					Bus.NQ(event)
				}
			}
		}
	})
}
