package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
	"github.com/plan2bill/access-service/internal/metrics"
)

const (
	defaultWorkers      = 4
	defaultWriteTimeout = 5 * time.Second
	channelBuffer       = 256
)

// Dispatcher writes role-request audit events through a fixed set of workers.
// Events are sharded by user id, so one user's events are written in the
// order they were published.
type Dispatcher struct {
	workers []chan domain.RoleRequestEvent
	store   ports.RoleRequestEventRepository
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used; writeTimeout bounds every write.
func NewDispatcher(numWorkers int, store ports.RoleRequestEventRepository, writeTimeout time.Duration, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	d := &Dispatcher{
		workers: make([]chan domain.RoleRequestEvent, numWorkers),
		store:   store,
		timeout: writeTimeout,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.RoleRequestEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers exit once Close has drained
// their channel, or as soon as ctx is cancelled; events still queued at that
// point are abandoned.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Publish hands an event to the worker responsible for its user. It never
// blocks: when the worker's buffer is full the event is dropped and counted.
func (d *Dispatcher) Publish(event domain.RoleRequestEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.AuditEventsTotal.WithLabelValues("dropped").Inc()
		return
	}

	idx := d.shardIndex(event.UserID)
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	default:
		metrics.AuditEventsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().
			Str("request_id", event.RequestID).
			Str("user_id", event.UserID).
			Int("worker_id", idx).
			Msg("audit queue full, event dropped")
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.RoleRequestEvent) {
	defer d.wg.Done()
	depth := metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id))

	for {
		select {
		case <-ctx.Done():
			if n := len(ch); n > 0 {
				d.log.Warn().Int("worker_id", id).Int("abandoned", n).
					Msg("audit worker stopped with queued events")
			}
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			d.write(ctx, id, event)
		}
	}
}

func (d *Dispatcher) write(ctx context.Context, id int, event domain.RoleRequestEvent) {
	// writes outlive request cancellation but not the configured timeout
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.store.InsertEvent(writeCtx, &event); err != nil {
		metrics.AuditEventsTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).
			Str("request_id", event.RequestID).
			Str("type", string(event.Type)).
			Int("worker_id", id).
			Msg("audit event write failed")
		return
	}
	metrics.AuditEventsTotal.WithLabelValues("written").Inc()
}
