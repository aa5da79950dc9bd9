// Package notify delivers best-effort push notifications. Jobs are handed
// off to a bounded queue feeding a fixed pool of workers; the caller never
// blocks and never observes a delivery outcome.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kriptonit/backend/internal/observability"
)

// Job addresses one push notification to one registered device.
type Job struct {
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Platform string `json:"platform"`
	Token    string `json:"token"`
}

const defaultPlatform = "firebase"

// Gateway is the outbound push transport.
type Gateway interface {
	Push(ctx context.Context, job Job) error
}

type Config struct {
	QueueSize   int
	Workers     int
	PushTimeout time.Duration
}

// Dispatcher owns the queue and the delivery workers.
type Dispatcher struct {
	gateway     Gateway
	metrics     *observability.Metrics
	queue       chan Job
	pushTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
	workers   int
}

func NewDispatcher(cfg Config, gateway Gateway, metrics *observability.Metrics) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 5 * time.Second
	}
	if gateway == nil {
		gateway = NoopGateway{}
	}
	return &Dispatcher{
		gateway:     gateway,
		metrics:     metrics,
		queue:       make(chan Job, cfg.QueueSize),
		pushTimeout: cfg.PushTimeout,
		done:        make(chan struct{}),
		workers:     cfg.Workers,
	}
}

// Start launches the worker pool. Safe to call once; Enqueue before Start
// only buffers.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.run()
		}
	})
}

// Enqueue hands the job to the delivery path and returns immediately.
// A full queue drops the job; push is a convenience signal, not a
// correctness-bearing channel.
func (d *Dispatcher) Enqueue(job Job) bool {
	if job.Token == "" {
		return false
	}
	if job.Platform == "" {
		job.Platform = defaultPlatform
	}
	select {
	case d.queue <- job:
		if d.metrics != nil {
			d.metrics.NotificationJobs.WithLabelValues("enqueued").Inc()
		}
		return true
	default:
		if d.metrics != nil {
			d.metrics.NotificationJobs.WithLabelValues("dropped").Inc()
		}
		log.Warn().Str("user_id", job.UserID).Msg("notification queue full, dropping job")
		return false
	}
}

// Stop drains nothing: queued jobs still in flight are delivered, the rest
// are abandoned when the workers observe done.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case job := <-d.queue:
			d.deliver(job)
		}
	}
}

func (d *Dispatcher) deliver(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.pushTimeout)
	defer cancel()

	start := time.Now()
	err := d.gateway.Push(ctx, job)
	if d.metrics != nil {
		d.metrics.ObservePushLatency(time.Since(start))
	}
	if err != nil {
		if d.metrics != nil {
			d.metrics.NotificationJobs.WithLabelValues("failed").Inc()
		}
		log.Err(err).Str("user_id", job.UserID).Msg("push delivery failed")
		return
	}
	if d.metrics != nil {
		d.metrics.NotificationJobs.WithLabelValues("delivered").Inc()
	}
	log.Debug().Str("user_id", job.UserID).Str("platform", job.Platform).Msg("push delivered")
}
