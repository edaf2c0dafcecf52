// Package refresh drives fetch → process → publish on a fixed cadence.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glucoview/glucoview/internal/glucose"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/glucoview/glucoview/pkg/logger"
	"github.com/glucoview/glucoview/pkg/metrics"
)

var log = logger.For("refresh")

// DefaultInterval is the refresh cadence.
const DefaultInterval = 60 * time.Second

// ErrFetchFailed is the only error text the presentation layer ever sees.
const ErrFetchFailed = "Error fetching glucose data"

// State of the scheduler as seen by the presentation layer.
type State string

const (
	Idle           State = "idle"
	Loading        State = "loading"
	Ready          State = "ready"
	Failed         State = "failed"
	SessionInvalid State = "session_invalid"
)

// View is the latest published state. Series is set only in Ready, or in Loading
// when a previous cycle succeeded.
type View struct {
	State     State            `json:"state"`
	Series    *glucose.Series  `json:"series,omitempty"`
	Error     string           `json:"error,omitempty"`
	Verdict   sessions.Verdict `json:"verdict,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Gate decides whether a cycle may reach the network.
type Gate interface {
	Gate(ctx context.Context) (sessions.Verdict, *sessions.Session, error)
}

// Fetcher reads one batch for a validated session.
type Fetcher interface {
	Fetch(ctx context.Context, s *sessions.Session) (*glucose.Batch, error)
}

type Option func(*Scheduler)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// OnUpdate registers a callback run after every published View, in publication
// order. It must not block or call back into the Scheduler.
func OnUpdate(fn func(View)) Option {
	return func(s *Scheduler) { s.onUpdate = fn }
}

// OnSessionInvalid registers the hook run when the remote rejects the token of
// rejected. The host uses it to purge that session and route back to login.
// It is never run for a cycle that was abandoned by Refresh or Stop.
func OnSessionInvalid(fn func(ctx context.Context, rejected *sessions.Session)) Option {
	return func(s *Scheduler) { s.onInvalid = fn }
}

// Scheduler is an owned object: Start begins the cadence, Stop ends it and drops
// any result still in flight.
type Scheduler struct {
	gate      Gate
	fetcher   Fetcher
	interval  time.Duration
	onUpdate  func(View)
	onInvalid func(ctx context.Context, rejected *sessions.Session)
	now       func() time.Time

	// notifyMu orders state changes together with their onUpdate calls
	notifyMu sync.Mutex
	mu       sync.Mutex
	view     View
	running  bool
	loading  bool
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(gate Gate, fetcher Fetcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		gate:     gate,
		fetcher:  fetcher,
		interval: DefaultInterval,
		now:      time.Now,
		view:     View{State: Idle},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start runs a first cycle immediately and then one per interval until Stop or ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("refresh: scheduler already running")
	}
	s.running = true
	s.loading = false
	s.gen++
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	runCtx, done := s.ctx, s.done
	s.mu.Unlock()

	log.Infof("starting refresh every %s", s.interval)
	s.Trigger()
	go s.loop(runCtx, done)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !s.Trigger() {
				log.Debugf("tick skipped: previous cycle still loading")
			}
		}
	}
}

// Stop cancels the timer and the in-flight cycle. Results that arrive later are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	log.Infof("refresh stopped")
}

// Trigger starts a cycle unless one is already loading or the scheduler is stopped.
// It reports whether a cycle was started.
func (s *Scheduler) Trigger() bool {
	return s.begin(false)
}

// Refresh abandons any in-flight cycle and starts a new one. Call it after the
// stored session changed so a result for the previous session is never published.
// It reports false only when the scheduler is stopped.
func (s *Scheduler) Refresh() bool {
	return s.begin(true)
}

func (s *Scheduler) begin(restart bool) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !s.running || (s.loading && !restart) {
		s.mu.Unlock()
		return false
	}
	if s.loading {
		s.gen++
		log.Debugf("abandoning in-flight cycle")
	}
	s.loading = true
	gen, ctx := s.gen, s.ctx
	v := View{State: Loading, Series: s.view.Series, UpdatedAt: s.now()}
	s.view = v
	s.mu.Unlock()

	s.notify(v)
	go s.cycle(ctx, gen)
	return true
}

// View returns the latest published view.
func (s *Scheduler) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Scheduler) cycle(ctx context.Context, gen uint64) {
	verdict, sess, err := s.gate.Gate(ctx)
	if err != nil {
		log.Errorf("session gate failed: %v", err)
		s.publish(gen, View{State: Failed, Error: ErrFetchFailed})
		return
	}
	if verdict != sessions.Authenticated {
		s.publish(gen, View{State: SessionInvalid, Verdict: verdict})
		return
	}

	batch, err := s.fetcher.Fetch(ctx, sess)
	if err != nil {
		if glucose.IsUnauthorized(err) {
			log.Warnf("remote rejected token for user %s", sess.UserID)
			if s.publish(gen, View{State: SessionInvalid, Verdict: sessions.Unauthenticated}) && s.onInvalid != nil {
				s.onInvalid(context.WithoutCancel(ctx), sess)
			}
			return
		}
		log.Errorf("fetch failed: %v", err)
		s.publish(gen, View{State: Failed, Error: ErrFetchFailed})
		return
	}

	series := glucose.Process(batch.Range, batch.Readings)
	s.publish(gen, View{State: Ready, Series: &series})
}

// publish applies v only if the cycle still belongs to the current generation.
func (s *Scheduler) publish(gen uint64, v View) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || !s.running {
		s.mu.Unlock()
		log.Debugf("discarding %s result from stale cycle", v.State)
		return false
	}
	v.UpdatedAt = s.now()
	s.view = v
	s.loading = false
	s.mu.Unlock()

	metrics.RefreshCycles.WithLabelValues(string(v.State)).Inc()
	s.notify(v)
	return true
}

func (s *Scheduler) notify(v View) {
	if s.onUpdate != nil {
		s.onUpdate(v)
	}
}
