// Package poller runs the periodic poll loop over an HNAP session and holds
// the latest data snapshot for presentation layers.
//
// The poller is the one place that serializes access to a session client:
// a new poll never starts before the previous one returns, which is the
// concurrency contract the session layer requires.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wrenhall/dchwatch/internal/hnap"
	"github.com/wrenhall/dchwatch/internal/logging"
)

// Update is delivered to listeners after every poll cycle. Err is nil on
// success; on failure Data holds the previous snapshot, if any.
type Update struct {
	Data hnap.Snapshot
	Err  error
}

// Listener receives poll updates. Listeners run on the poll goroutine and
// must return quickly.
type Listener func(Update)

// Poller periodically fetches the data snapshot from one device session.
type Poller struct {
	client   *hnap.Client
	interval time.Duration
	backoff  time.Duration

	mu          sync.Mutex
	data        hnap.Snapshot
	hasData     bool
	lastErr     error
	lastSuccess bool
	listeners   []Listener
}

// New creates a poller for the given session. The backoff is the minimum
// time after a detection during which the sensor counts as triggered.
func New(client *hnap.Client, interval time.Duration, backoffSeconds int) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if backoffSeconds <= 0 {
		backoffSeconds = hnap.DefaultBackoffSeconds
	}
	return &Poller{
		client:   client,
		interval: interval,
		backoff:  time.Duration(backoffSeconds) * time.Second,
	}
}

// AddListener registers a listener for poll updates. Must be called before
// Run.
func (p *Poller) AddListener(fn Listener) {
	p.listeners = append(p.listeners, fn)
}

// Run polls the device until the context is cancelled. The first poll runs
// immediately; subsequent polls wait out the interval after the previous
// poll finishes, so slow failures never stack.
func (p *Poller) Run(ctx context.Context) error {
	p.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh performs one poll cycle and notifies listeners.
func (p *Poller) Refresh(ctx context.Context) Update {
	start := time.Now()
	data, err := p.client.Data(ctx)

	p.mu.Lock()
	if err == nil {
		p.data = data
		p.hasData = true
	}
	p.lastErr = err
	p.lastSuccess = err == nil
	update := Update{Data: p.data, Err: err}
	listeners := p.listeners
	p.mu.Unlock()

	logging.LogPoll(p.client.Name(), err == nil, time.Since(start))
	if err != nil && !hnap.IsRebootingError(err) {
		logging.Debug("Poll failed", zap.String("host", p.client.Name()), zap.Error(err))
	}

	for _, fn := range listeners {
		fn(update)
	}
	return update
}

// Data returns the latest successful snapshot and whether one exists yet.
func (p *Poller) Data() (hnap.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data, p.hasData
}

// LastUpdateSuccess reports whether the most recent poll succeeded.
func (p *Poller) LastUpdateSuccess() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSuccess
}

// LastError returns the error from the most recent poll, or nil.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Triggered reports whether the sensor counts as "on" at the given time:
// within the backoff window after the last detection. With no snapshot yet
// it reports false; a snapshot with a zero detection time reports true,
// matching the presentation behavior this replaces.
func (p *Poller) Triggered(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasData {
		return false
	}
	return Triggered(p.data.LastDetection, p.backoff, now)
}

// Triggered is the bare on/off derivation: true when now is before
// lastDetection + backoff. A zero lastDetection yields true (no deadline to
// have passed).
func Triggered(lastDetection time.Time, backoff time.Duration, now time.Time) bool {
	if lastDetection.IsZero() {
		return true
	}
	return now.Before(lastDetection.Add(backoff))
}
