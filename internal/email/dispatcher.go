package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jobboard/internal/auth"
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher queues messages and delivers them from a fixed set of workers
// at a bounded rate. Callers never wait for delivery.
type Dispatcher struct {
	transport Transport
	log       *slog.Logger
	limiter   *rate.Limiter
	timeout   time.Duration

	// ctx bounds in-flight sends; it is cancelled by Close, never by callers.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

type DispatcherConfig struct {
	QueueSize     int
	RatePerSecond float64
	SendTimeout   time.Duration
}

func NewDispatcher(transport Transport, cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		ctx:       ctx,
		cancel:    cancel,
		transport: transport,
		log:       log,
		limiter:   rate.NewLimiter(limit, 1),
		timeout:   cfg.SendTimeout,
		queue:     make(chan Message, cfg.QueueSize),
	}
}

// Start launches the workers. They run until Close has drained the queue.
func (d *Dispatcher) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Enqueue reports whether msg was accepted. A full or closed queue drops it.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("email dropped: dispatcher closed", "subject", msg.Subject)
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.log.Warn("email dropped: queue full", "subject", msg.Subject)
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be attempted.
// When ctx expires first, in-flight and remaining sends are abandoned and
// ctx.Err() is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()
	defer d.cancel()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		d.cancel()
		<-drained
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(d.ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if err := d.limiter.Wait(ctx); err != nil {
		d.log.Warn("email dropped: shutting down", "subject", msg.Subject)
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.transport.Send(sendCtx, msg); err != nil {
		d.log.Error("email delivery failed",
			"subject", msg.Subject,
			"error", fmt.Errorf("%w: %v", auth.ErrTransportFailure, err),
		)
		return
	}
	d.log.Debug("email delivered", "subject", msg.Subject)
}

// LogTransport stands in when no SMTP server is configured. Bodies are not
// logged because they carry codes and reset links.
type LogTransport struct {
	Log *slog.Logger
}

func (t LogTransport) Send(_ context.Context, msg Message) error {
	t.Log.Info("email transport disabled; message not sent", "subject", msg.Subject)
	return nil
}
