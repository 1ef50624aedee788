package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/report"
)

// maxBackoffSeconds caps the exponential backoff.
const maxBackoffSeconds = 900

// Status is the scheduler's derived view for /api/v1/dashboard/status.
type Status struct {
	Provider               string        `json:"provider"`
	Repo                   string        `json:"repo"`
	Ready                  bool          `json:"ready"`
	Stale                  bool          `json:"stale"`
	GeneratedAt            string        `json:"generatedAt"`
	LastSuccessAt          string        `json:"lastSuccessAt,omitempty"`
	LastError              *SectionError `json:"lastError,omitempty"`
	BackoffSeconds         int           `json:"backoffSeconds"`
	NextRefreshAt          string        `json:"nextRefreshAt"`
	RefreshIntervalSeconds int           `json:"refreshIntervalSeconds"`
}

// refreshCall is one in-flight refresh; concurrent callers wait on done
// and share the same result.
type refreshCall struct {
	done     chan struct{}
	snapshot *Snapshot
}

// Scheduler wraps the builder in a single-flight periodic refresh loop.
// Handlers read the latest published snapshot lock-free; only the
// classification of a finished refresh holds the mutex.
type Scheduler struct {
	builder   *Builder
	interval  time.Duration
	clock     Clock
	logger    *slog.Logger
	metrics   *Metrics
	onRefresh func(*Snapshot, bool)

	latest atomic.Pointer[Snapshot]

	mu             sync.Mutex
	ready          bool
	lastSuccessAt  string
	lastError      *SectionError
	backoffSeconds int
	nextRefreshAt  string
	inFlight       *refreshCall
	timer          *time.Timer
	closed         bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock overrides the wall clock used for wake scheduling.
func WithSchedulerClock(clock Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithMetrics wires refresh accounting into a metrics registry.
func WithMetrics(m *Metrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithOnRefresh registers a hook invoked after every completed refresh
// with the published snapshot and whether all sections were ok.
func WithOnRefresh(hook func(snapshot *Snapshot, ok bool)) SchedulerOption {
	return func(s *Scheduler) {
		s.onRefresh = hook
	}
}

// NewScheduler creates a scheduler around a builder. Until the first
// refresh completes, the published snapshot is a pending one: all four
// sections error with E_DASHBOARD_PENDING.
func NewScheduler(builder *Builder, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		builder:  builder,
		interval: interval,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	pending := errcode.New(errcode.DashboardPending, "first refresh has not completed yet")
	snapshot := &Snapshot{
		Meta: Meta{
			Repo:                   builder.repo.String(),
			Provider:               builder.provider.Name(),
			GeneratedAt:            s.clock().UTC().Format(time.RFC3339),
			RefreshIntervalSeconds: int(interval / time.Second),
		},
		Sections: newErrorSections(pending),
	}
	s.latest.Store(snapshot)
	return s
}

func newErrorSections(err error) Sections {
	return Sections{
		Digest:   errorSection[report.DigestReport](err),
		Inbox:    errorSection[report.InboxReport](err),
		Score:    errorSection[report.ScoreReport](err),
		Patterns: errorSection[report.PatternsReport](err),
	}
}

// Start triggers the initial refresh in the background.
func (s *Scheduler) Start() {
	go s.Refresh(context.Background())
}

// Stop cancels the pending wake and waits for any in-flight refresh to
// finish, bounded by the context deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	call := s.inFlight
	s.mu.Unlock()

	if call == nil {
		return
	}
	select {
	case <-call.done:
	case <-ctx.Done():
		s.logger.Warn("shutdown grace elapsed with refresh still in flight")
	}
}

// Snapshot returns the latest published snapshot.
func (s *Scheduler) Snapshot() *Snapshot {
	return s.latest.Load()
}

// Status returns the derived scheduler state.
func (s *Scheduler) Status() Status {
	snapshot := s.latest.Load()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Provider:               snapshot.Meta.Provider,
		Repo:                   snapshot.Meta.Repo,
		Ready:                  s.ready,
		Stale:                  snapshot.Meta.Stale,
		GeneratedAt:            snapshot.Meta.GeneratedAt,
		LastSuccessAt:          s.lastSuccessAt,
		LastError:              s.lastError,
		BackoffSeconds:         s.backoffSeconds,
		NextRefreshAt:          s.nextRefreshAt,
		RefreshIntervalSeconds: int(s.interval / time.Second),
	}
}

// Refresh runs one refresh, or joins the in-flight one. N concurrent
// callers trigger exactly one builder invocation and all receive the
// same published snapshot.
func (s *Scheduler) Refresh(ctx context.Context) *Snapshot {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.latest.Load()
	}
	if call := s.inFlight; call != nil {
		s.mu.Unlock()
		<-call.done
		return call.snapshot
	}
	call := &refreshCall{done: make(chan struct{})}
	s.inFlight = call
	s.mu.Unlock()

	call.snapshot = s.runRefresh(ctx)

	s.mu.Lock()
	s.inFlight = nil
	s.mu.Unlock()
	close(call.done)
	return call.snapshot
}

// runRefresh invokes the builder and classifies the outcome per the
// backoff policy. A builder panic preserves the published snapshot and
// doubles the backoff.
func (s *Scheduler) runRefresh(ctx context.Context) *Snapshot {
	started := s.clock()

	var candidate *Snapshot
	var buildErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				candidate = nil
				buildErr = errcode.New(errcode.DashboardUnknown, "refresh panicked: %v", r)
				s.logger.Error("snapshot build panicked", "panic", fmt.Sprint(r))
			}
		}()
		candidate, buildErr = s.builder.Build(ctx)
	}()

	if s.metrics != nil {
		s.metrics.ObserveRefresh(s.clock().Sub(started), buildErr == nil)
	}
	return s.classify(candidate, buildErr)
}

// classify applies the outcome policy:
//  1. all sections ok: publish fresh, reset backoff.
//  2. retryable error after at least one success: keep the old snapshot
//     tagged stale, back off exponentially or per an explicit retry-after.
//  3. anything else: publish the candidate as-is.
func (s *Scheduler) classify(candidate *Snapshot, buildErr error) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	intervalSecs := int(s.interval / time.Second)

	if candidate == nil {
		// Builder panic: the published snapshot stays untouched, the
		// backoff doubles before the next attempt.
		if s.backoffSeconds > 0 {
			s.backoffSeconds = min(maxBackoffSeconds, s.backoffSeconds*2)
		} else {
			s.backoffSeconds = min(maxBackoffSeconds, intervalSecs*2)
		}
		s.lastError = newSectionError(buildErr)
		s.ready = true
		s.scheduleLocked(time.Duration(s.backoffSeconds) * time.Second)
		published := s.latest.Load()
		s.notify(published, false)
		return published
	}

	switch {
	case buildErr == nil:
		s.backoffSeconds = 0
		s.lastError = nil
		s.lastSuccessAt = candidate.Meta.GeneratedAt
		s.ready = true
		next := s.scheduleLocked(s.interval)
		candidate.Meta.Stale = false
		candidate.Meta.BackoffSeconds = 0
		candidate.Meta.NextRefreshAt = next
		candidate.Meta.RefreshIntervalSeconds = intervalSecs
		s.latest.Store(candidate)
		s.notify(candidate, true)
		return candidate

	case errcode.IsRetryable(buildErr) && s.lastSuccessAt != "":
		backoff, ok := retryAfterSeconds(buildErr)
		if ok {
			backoff = clampInt(backoff, intervalSecs, maxBackoffSeconds)
		} else if s.backoffSeconds > 0 {
			backoff = min(maxBackoffSeconds, s.backoffSeconds*2)
		} else {
			backoff = min(maxBackoffSeconds, intervalSecs*2)
		}
		s.backoffSeconds = backoff
		s.lastError = primaryOrUnknown(candidate, buildErr)
		s.ready = true
		next := s.scheduleLocked(time.Duration(backoff) * time.Second)

		stale := *s.latest.Load()
		stale.Meta.Stale = true
		stale.Meta.BackoffSeconds = backoff
		stale.Meta.NextRefreshAt = next
		stale.Meta.RefreshIntervalSeconds = intervalSecs
		s.latest.Store(&stale)
		s.logger.Warn("refresh failed, keeping last known good snapshot",
			"error", s.lastError.Code,
			"backoffSeconds", backoff)
		s.notify(&stale, false)
		return &stale

	default:
		s.backoffSeconds = 0
		s.lastError = primaryOrUnknown(candidate, buildErr)
		s.ready = true
		next := s.scheduleLocked(s.interval)

		candidate.Meta.Stale = false
		candidate.Meta.BackoffSeconds = 0
		candidate.Meta.NextRefreshAt = next
		candidate.Meta.RefreshIntervalSeconds = intervalSecs
		s.latest.Store(candidate)
		s.notify(candidate, false)
		return candidate
	}
}

// scheduleLocked arms the single wake timer and returns the wake time.
// Callers hold s.mu.
func (s *Scheduler) scheduleLocked(d time.Duration) string {
	next := s.clock().Add(d).UTC().Format(time.RFC3339)
	s.nextRefreshAt = next
	if s.closed {
		return next
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() {
		s.Refresh(context.Background())
	})
	return next
}

func (s *Scheduler) notify(snapshot *Snapshot, ok bool) {
	if s.metrics != nil {
		s.metrics.SetSnapshotState(snapshot.Meta.Stale, s.backoffSeconds)
	}
	if s.onRefresh != nil {
		go s.onRefresh(snapshot, ok)
	}
}

// primaryOrUnknown prefers the candidate's primary section error and
// falls back to serializing the build error directly.
func primaryOrUnknown(candidate *Snapshot, buildErr error) *SectionError {
	if candidate != nil {
		if primary := candidate.PrimaryError(); primary != nil {
			return primary
		}
	}
	return newSectionError(buildErr)
}

// retryAfterPattern extracts an explicit retry-after hint from error text.
var retryAfterPattern = regexp.MustCompile(`(?i)retry-?after(?:=|\s+)(\d+)`)

// retryAfterSeconds extracts an explicit retry-after from the error's
// details (retryAfterSeconds, retryAfterMs) or message text.
func retryAfterSeconds(err error) (int, bool) {
	details := errcode.DetailsOf(err)
	if v, ok := detailInt(details, "retryAfterSeconds"); ok {
		return v, true
	}
	if v, ok := detailInt(details, "retryAfterMs"); ok {
		return (v + 999) / 1000, true
	}
	if m := retryAfterPattern.FindStringSubmatch(err.Error()); m != nil {
		if v, convErr := strconv.Atoi(m[1]); convErr == nil {
			return v, true
		}
	}
	return 0, false
}

func detailInt(details map[string]any, key string) (int, bool) {
	switch v := details[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
