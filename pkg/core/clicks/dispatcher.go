package clicks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
	DefaultTimeout   = 5 * time.Second
)

// DispatcherConfig sizes the in-process click queue.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // Per job, detached from the request
}

// Dispatcher is a bounded queue drained by a fixed set of workers.
// Jobs are handled at most once; a full or closed queue drops the job.
type Dispatcher struct {
	sink    ports.ClickSink
	logger  *slog.Logger
	timeout time.Duration

	jobs chan domain.ClickJob
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink ports.ClickSink, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan domain.ClickJob, cfg.QueueSize),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.work()
	}
	return d
}

// Dispatch enqueues job without blocking.
func (d *Dispatcher) Dispatch(job domain.ClickJob) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("click dropped: dispatcher closed", slog.Int64("link_id", job.LinkID))
		return
	}

	select {
	case d.jobs <- job:
	default:
		d.logger.Warn("click dropped: queue full", slog.Int64("link_id", job.LinkID))
	}
}

// Close stops intake and waits for queued jobs to finish or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
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
		return fmt.Errorf("clicks dispatcher drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.run(job)
	}
}

func (d *Dispatcher) run(job domain.ClickJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("click sink panic", slog.Int64("link_id", job.LinkID), slog.Any("panic", rec))
		}
	}()

	if err := d.sink.Handle(ctx, job); err != nil {
		d.logger.Warn("click not recorded", slog.Int64("link_id", job.LinkID), slog.Any("err", err))
	}
}
