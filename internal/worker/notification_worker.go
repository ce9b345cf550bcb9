package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/service"
)

// NotificationWorker moves notification delivery off the publishing path.
// Events are queued from dispatcher handlers and processed by a fixed pool.
type NotificationWorker struct {
	svc     *service.NotificationService
	queue   chan events.Event
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewNotificationWorker creates a worker with the given queue size.
func NewNotificationWorker(svc *service.NotificationService, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = 128
	}
	return &NotificationWorker{
		svc:     svc,
		queue:   make(chan events.Event, queueSize),
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Register subscribes the worker to every event the service handles.
func (w *NotificationWorker) Register(dispatcher events.Dispatcher) {
	for _, eventType := range w.svc.EventTypes() {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
	return nil
}

// Start launches n goroutines that drain the queue until Stop is called.
func (w *NotificationWorker) Start(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for event := range w.queue {
				w.process(event)
			}
		}()
	}
}

func (w *NotificationWorker) process(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.svc.Handle(ctx, event); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("event_id", event.ID),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// Stop closes the queue and waits for in-flight deliveries.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
