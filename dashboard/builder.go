package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seven-shadow/sentinel-eye/config"
	"github.com/seven-shadow/sentinel-eye/provider"
	"github.com/seven-shadow/sentinel-eye/report"
	"github.com/seven-shadow/sentinel-eye/triage"
)

// Clock supplies the current time. Injectable so snapshots are
// reproducible in tests.
type Clock func() time.Time

// Builder assembles one snapshot per invocation: it resolves auth, runs
// the open-PR and notification sub-pipelines in parallel, and packs the
// four sections. The builder never fails as a whole; failures become
// error sections.
type Builder struct {
	provider   provider.Provider
	repo       provider.RepoRef
	limit      int
	configPath string
	clock      Clock
	logger     *slog.Logger

	mu  sync.RWMutex
	cfg *config.Config
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the wall clock.
func WithClock(clock Clock) BuilderOption {
	return func(b *Builder) {
		b.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a snapshot builder for one repo on one provider.
func NewBuilder(p provider.Provider, repo provider.RepoRef, limit int, cfg *config.Config, configPath string, opts ...BuilderOption) *Builder {
	b := &Builder{
		provider:   p,
		repo:       repo,
		limit:      limit,
		cfg:        cfg,
		configPath: configPath,
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetConfig swaps the config used by subsequent builds. In-flight builds
// keep the config they started with.
func (b *Builder) SetConfig(cfg *config.Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
}

func (b *Builder) config() *config.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// Build produces a snapshot. generatedAt is sampled exactly once and
// shared by all four sections. The returned error is the primary section
// error (first failing section in digest, inbox, score, patterns order)
// and is nil when every section is ok; the snapshot itself is always
// complete.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	cfg := b.config()
	generatedAt := b.clock().UTC().Format(time.RFC3339)
	meta := report.Meta{
		Repo:        b.repo.String(),
		Provider:    b.provider.Name(),
		GeneratedAt: generatedAt,
		ConfigPath:  b.configPath,
	}

	snapshot := &Snapshot{
		Meta: Meta{
			Repo:        meta.Repo,
			Provider:    meta.Provider,
			GeneratedAt: generatedAt,
		},
	}

	auth, err := provider.ResolveAuth(b.provider)
	if err != nil {
		snapshot.Sections = Sections{
			Digest:   errorSection[report.DigestReport](err),
			Inbox:    errorSection[report.InboxReport](err),
			Score:    errorSection[report.ScoreReport](err),
			Patterns: errorSection[report.PatternsReport](err),
		}
		return snapshot, err
	}

	var (
		wg                sync.WaitGroup
		openErr, notifErr error
		openRes, notifRes *triage.ScoreResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		openRes, openErr = b.runOpenPullRequests(ctx, cfg, auth)
	}()
	go func() {
		defer wg.Done()
		notifRes, notifErr = b.runNotifications(ctx, cfg, auth)
	}()
	wg.Wait()

	if openErr != nil {
		b.logger.Warn("open pull request pipeline failed", "error", openErr)
		snapshot.Sections.Score = errorSection[report.ScoreReport](openErr)
		snapshot.Sections.Patterns = errorSection[report.PatternsReport](openErr)
	} else {
		snapshot.Sections.Score = okSection(report.NewScore(meta, openRes, b.limit))
		snapshot.Sections.Patterns = okSection(report.NewPatterns(meta, openRes))
	}

	if notifErr != nil {
		b.logger.Warn("notification pipeline failed", "error", notifErr)
		snapshot.Sections.Inbox = errorSection[report.InboxReport](notifErr)
		snapshot.Sections.Digest = errorSection[report.DigestReport](notifErr)
	} else {
		snapshot.Sections.Inbox = okSection(report.NewInbox(meta, notifRes, b.limit))
		snapshot.Sections.Digest = okSection(report.NewDigest(meta, notifRes, cfg.Limits.MaxDigestItems))
	}

	// The primary error honors the fixed digest, inbox, score, patterns
	// scan order; both error sections of one pipeline share one cause.
	if notifErr != nil {
		return snapshot, notifErr
	}
	return snapshot, openErr
}

// runOpenPullRequests feeds the open PRs of the repo through the triage
// engine. Its result backs the score and patterns sections.
func (b *Builder) runOpenPullRequests(ctx context.Context, cfg *config.Config, auth provider.Auth) (*triage.ScoreResult, error) {
	summaries, err := b.provider.ListOpenPullRequests(ctx, b.repo, provider.PullRequestOptions{
		MaxPullRequests: min(b.limit, cfg.Limits.MaxPullRequests),
	}, auth)
	if err != nil {
		return nil, err
	}
	engine := triage.NewEngine(b.provider, auth, cfg, triage.WithLogger(b.logger))
	return engine.Run(ctx, triage.WorkItemsFromPullRequests(b.repo, summaries))
}

// runNotifications feeds the PR notifications of the repo through the
// triage engine. Its result backs the inbox and digest sections. A
// notification-listing failure degrades to an empty inbox unless the
// config demands the notifications scope.
func (b *Builder) runNotifications(ctx context.Context, cfg *config.Config, auth provider.Auth) (*triage.ScoreResult, error) {
	notifications, err := b.provider.ListNotifications(ctx, b.repo, provider.NotificationOptions{
		MaxItems:    NotificationFetchMax(b.limit, cfg.Limits.MaxNotifications),
		IncludeRead: cfg.Inbox.IncludeReadByDefault,
	}, auth)
	if err != nil {
		if cfg.Inbox.RequireNotificationsScope {
			return nil, err
		}
		b.logger.Warn("notification listing degraded to empty inbox", "error", err)
		notifications = nil
	}
	engine := triage.NewEngine(b.provider, auth, cfg, triage.WithLogger(b.logger))
	return engine.Run(ctx, triage.WorkItemsFromNotifications(b.repo, notifications))
}

// NotificationFetchMax computes the notification fetch ceiling. The
// nested min/max form is the upstream behavioral contract and is kept
// verbatim; for limit >= 0 it simplifies to min(maxNotifications,
// limit*3).
func NotificationFetchMax(limit, maxNotifications int) int {
	return min(maxNotifications, max(limit, min(limit*3, maxNotifications)))
}
