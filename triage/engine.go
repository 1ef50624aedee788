package triage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seven-shadow/sentinel-eye/config"
	"github.com/seven-shadow/sentinel-eye/provider"
)

// Engine runs the triage pipeline against one provider.
type Engine struct {
	provider provider.Provider
	auth     provider.Auth
	cfg      *config.Config
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a triage engine bound to a provider, auth token, and
// config snapshot.
func NewEngine(p provider.Provider, auth provider.Auth, cfg *config.Config, opts ...EngineOption) *Engine {
	e := &Engine{
		provider: p,
		auth:     auth,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the full pipeline: dedupe, enrich, extract features, cluster,
// compute peers, score, sort. Any provider failure while enriching a PR
// aborts the whole run; the engine never emits partial results.
func (e *Engine) Run(ctx context.Context, items []WorkItem) (*ScoreResult, error) {
	merged := MergeWorkItems(items)

	scored := make([]ScoredPullRequest, 0, len(merged))
	for _, item := range merged {
		pr, err := e.enrich(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("enrich %s: %w", item.Key(), err)
		}
		scored = append(scored, *pr)
	}

	groups, peers := buildClusters(scored, e.cfg.Patterns.MinClusterSize)
	for i := range scored {
		scored[i].DuplicatePeers = peers[i]
		score(&scored[i], e.cfg.Scoring)
	}

	// Clusters must be assembled while the group index lists still match
	// slice positions; sorting the items reorders the slice.
	clusters := assembleClusters(scored, groups)
	sortItems(scored)

	e.logger.Debug("triage pipeline complete",
		"items", len(scored),
		"clusters", len(clusters))

	return &ScoreResult{Items: scored, Clusters: clusters}, nil
}

// enrich fetches the summary, unresolved comments, failure runs, and file
// list for one work item and assembles the pre-scoring PR record.
func (e *Engine) enrich(ctx context.Context, item WorkItem) (*ScoredPullRequest, error) {
	summary := item.Summary
	if summary == nil {
		fetched, err := e.provider.GetPullRequestSummary(ctx, item.Repo, item.Number, e.auth)
		if err != nil {
			return nil, err
		}
		summary = fetched
	}

	comments, err := e.provider.ListUnresolvedComments(ctx, item.Repo, item.Number, e.auth)
	if err != nil {
		return nil, err
	}
	unresolved := comments[:0:0]
	for _, c := range comments {
		if !c.Resolved {
			unresolved = append(unresolved, c)
		}
	}

	runs, err := e.provider.ListFailureRuns(ctx, item.Repo, provider.FailureRunOptions{
		PRNumber: item.Number,
		MaxRuns:  e.cfg.Limits.MaxFailureRunsPerPR,
	}, e.auth)
	if err != nil {
		return nil, err
	}

	files, err := e.provider.ListPullRequestFiles(ctx, item.Repo, item.Number, e.cfg.Limits.MaxFilesPerPullRequest, e.auth)
	if err != nil {
		return nil, err
	}

	pr := &ScoredPullRequest{
		Repo:         summary.Repo,
		Number:       summary.Number,
		Title:        summary.Title,
		HTMLURL:      summary.HTMLURL,
		State:        summary.State,
		Draft:        summary.Draft,
		Author:       summary.Author,
		CreatedAt:    summary.CreatedAt,
		UpdatedAt:    summary.UpdatedAt,
		ChangedFiles: summary.ChangedFiles,
		Additions:    summary.Additions,
		Deletions:    summary.Deletions,

		UnresolvedComments: len(unresolved),
		FailingRuns:        len(runs),

		Comments: unresolved,
		Runs:     runs,
	}
	if item.Notification != nil {
		pr.Notification = &NotificationMeta{
			ID:        item.Notification.ID,
			Reason:    item.Notification.Reason,
			Unread:    item.Notification.Unread,
			UpdatedAt: item.Notification.UpdatedAt,
		}
	}

	extractFeatures(pr, files, e.cfg)
	return pr, nil
}
