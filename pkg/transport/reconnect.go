package transport

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cbodonnell/duelsync/pkg/log"
)

const (
	DefaultMinBackoff = 1 * time.Second
	DefaultMaxBackoff = 30 * time.Second
)

// Connector is the part of a Transport the Reconnector drives.
type Connector interface {
	Connect() error
}

type ReconnectorOptions struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// MaxAttempts bounds consecutive failed attempts. Zero means unbounded.
	MaxAttempts int
	// Rand returns a value in [0, 1) and defaults to math/rand.
	Rand   func() float64
	Logger *log.Logger
}

// Reconnector retries a connection with exponential backoff and jitter.
// It is driven by the owner of the transport: Trigger after a failure or a
// dropped connection, Reset after a successful connect.
type Reconnector struct {
	connector Connector
	opts      ReconnectorOptions
	logger    *log.Logger

	lock     sync.Mutex
	ctx      context.Context
	attempts int
	timer    *time.Timer
}

func NewReconnector(connector Connector, opts *ReconnectorOptions) *Reconnector {
	o := *opts
	if o.MinBackoff <= 0 {
		o.MinBackoff = DefaultMinBackoff
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = o.MinBackoff
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	if o.Logger == nil {
		o.Logger = log.Default().With("reconnect")
	}
	return &Reconnector{
		connector: connector,
		opts:      o,
		logger:    o.Logger,
		ctx:       context.Background(),
	}
}

// Start binds the reconnector to ctx. Pending and future attempts stop
// once ctx is done.
func (r *Reconnector) Start(ctx context.Context) {
	r.lock.Lock()
	r.ctx = ctx
	r.lock.Unlock()

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
}

// Backoff returns the delay before the given attempt (starting at 0):
// half of the capped exponential delay is fixed and half is random.
func (r *Reconnector) Backoff(attempt int) time.Duration {
	d := r.opts.MinBackoff
	for i := 0; i < attempt && d < r.opts.MaxBackoff; i++ {
		d *= 2
	}
	if d > r.opts.MaxBackoff {
		d = r.opts.MaxBackoff
	}
	half := d / 2
	return half + time.Duration(r.opts.Rand()*float64(d-half))
}

// Trigger schedules the next attempt. It does nothing if one is already
// pending, the context is done, or the attempt budget is spent.
func (r *Reconnector) Trigger(reason string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.ctx.Err() != nil || r.timer != nil {
		return
	}
	if r.opts.MaxAttempts > 0 && r.attempts >= r.opts.MaxAttempts {
		r.logger.Error("Giving up reconnecting after %d attempts: %s", r.attempts, reason)
		return
	}

	delay := r.Backoff(r.attempts)
	r.attempts++
	r.logger.Info("Reconnect attempt %d in %s: %s", r.attempts, delay, reason)
	r.timer = time.AfterFunc(delay, r.attempt)
}

func (r *Reconnector) attempt() {
	r.lock.Lock()
	r.timer = nil
	done := r.ctx.Err() != nil
	r.lock.Unlock()
	if done {
		return
	}

	// failures come back through the transport handlers and Trigger
	if err := r.connector.Connect(); err != nil {
		r.logger.Debug("Reconnect attempt failed: %v", err)
	}
}

// Reset clears the attempt count after a successful connect.
func (r *Reconnector) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.attempts = 0
}

// Attempts returns the number of attempts since the last Reset.
func (r *Reconnector) Attempts() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.attempts
}

// Stop cancels a pending attempt.
func (r *Reconnector) Stop() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
