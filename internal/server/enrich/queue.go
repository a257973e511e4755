package enrich

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/server/store"
)

// job is one pending coordinate resolution.
type job struct {
	shiftID  string
	lat, lng float64
	closing  bool
}

// Queue is an in-process fire-and-forget worker feeding the geocoder at a
// bounded rate. Jobs are dropped, with a log line, when the buffer is
// full; a lost site name is acceptable, a blocked sync path is not.
type Queue struct {
	jobs    chan job
	geo     Geocoder
	shifts  store.ShiftRepository
	limiter *rate.Limiter
	log     logging.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithLimiter overrides the request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(q *Queue) { q.limiter = l }
}

// WithBuffer overrides the queue depth.
func WithBuffer(n int) Option {
	return func(q *Queue) { q.jobs = make(chan job, n) }
}

func NewQueue(geo Geocoder, shifts store.ShiftRepository, log logging.Logger, opts ...Option) *Queue {
	q := &Queue{
		jobs:    make(chan job, 256),
		geo:     geo,
		shifts:  shifts,
		limiter: rate.NewLimiter(2, 1),
		log:     log.With("module", "enrich"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// EnqueueOpen schedules resolution of a shift's opening position.
func (q *Queue) EnqueueOpen(shiftID string, lat, lng float64) {
	q.enqueue(job{shiftID: shiftID, lat: lat, lng: lng})
}

// EnqueueClose schedules resolution of a shift's closing position.
func (q *Queue) EnqueueClose(shiftID string, lat, lng float64) {
	q.enqueue(job{shiftID: shiftID, lat: lat, lng: lng, closing: true})
}

func (q *Queue) enqueue(j job) {
	if j.lat == 0 && j.lng == 0 {
		// position unknown, nothing to resolve
		return
	}
	select {
	case q.jobs <- j:
	default:
		q.log.Warn(context.Background(), "enrichment queue full, dropping job", "shift_id", j.shiftID)
	}
}

// Run processes jobs until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			q.process(ctx, j)
		}
	}
}

func (q *Queue) process(ctx context.Context, j job) {
	if err := q.limiter.Wait(ctx); err != nil {
		return
	}

	site, err := q.geo.ReverseGeocode(ctx, j.lat, j.lng)
	if err != nil {
		q.log.Warn(ctx, "site resolution failed", "shift_id", j.shiftID, "error", err.Error())
		return
	}

	if j.closing {
		err = q.shifts.SetCloseSite(ctx, j.shiftID, site)
	} else {
		err = q.shifts.SetOpenSite(ctx, j.shiftID, site)
	}
	if err != nil {
		q.log.Warn(ctx, "site update failed", "shift_id", j.shiftID, "error", err.Error())
		return
	}
	q.log.Info(ctx, "site resolved", "shift_id", j.shiftID, "site", site, "closing", j.closing)
}
