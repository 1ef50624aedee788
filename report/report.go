// Package report assembles the CLI and dashboard report surfaces from a
// triage result. Reports only slice the engine's output; they never
// re-sort or re-score.
package report

import (
	"encoding/xml"

	"github.com/seven-shadow/sentinel-eye/provider"
	"github.com/seven-shadow/sentinel-eye/triage"
)

// Meta is the context block copied verbatim into every report generated
// within one snapshot.
type Meta struct {
	Repo        string `json:"repo" xml:"repo"`
	Provider    string `json:"provider" xml:"provider"`
	GeneratedAt string `json:"generatedAt" xml:"generatedAt"`
	ConfigPath  string `json:"configPath" xml:"configPath"`
}

// ScoreReport lists every triaged PR in canonical order.
type ScoreReport struct {
	XMLName xml.Name `json:"-" xml:"scoreReport"`
	Meta
	Items []triage.ScoredPullRequest `json:"items" xml:"items>item"`
}

// PatternsReport lists the pattern clusters.
type PatternsReport struct {
	XMLName xml.Name `json:"-" xml:"patternsReport"`
	Meta
	Clusters []triage.PatternCluster `json:"clusters" xml:"clusters>cluster"`
}

// InboxReport lists the PRs surfaced by notifications, each carrying its
// notification metadata.
type InboxReport struct {
	XMLName xml.Name `json:"-" xml:"inboxReport"`
	Meta
	Items []triage.ScoredPullRequest `json:"items" xml:"items>item"`
}

// ClusterSummary is the digest's compact view of one cluster.
type ClusterSummary struct {
	Type triage.ClusterType `json:"type" xml:"type"`
	Key  string             `json:"key" xml:"key"`
	Size int                `json:"size" xml:"size"`
}

// InboxCounts summarizes the inbox for the digest.
type InboxCounts struct {
	Total  int `json:"total" xml:"total"`
	Unread int `json:"unread" xml:"unread"`
}

// DigestReport is the morning-coffee view: the top priorities, a cluster
// summary, and inbox counts.
type DigestReport struct {
	XMLName xml.Name `json:"-" xml:"digestReport"`
	Meta
	TopPriorities []triage.ScoredPullRequest `json:"topPriorities" xml:"topPriorities>item"`
	Clusters      []ClusterSummary           `json:"clusters" xml:"clusters>cluster"`
	Inbox         InboxCounts                `json:"inbox" xml:"inbox"`
}

// CommentsReport lists the unresolved review comments of one PR.
type CommentsReport struct {
	XMLName xml.Name `json:"-" xml:"commentsReport"`
	Meta
	Number   int                          `json:"number" xml:"number"`
	Title    string                       `json:"title" xml:"title"`
	Comments []provider.UnresolvedComment `json:"comments" xml:"comments>comment"`
}

// FailuresReport lists the failing CI runs of one PR.
type FailuresReport struct {
	XMLName xml.Name `json:"-" xml:"failuresReport"`
	Meta
	Number int                   `json:"number" xml:"number"`
	Title  string                `json:"title" xml:"title"`
	Runs   []provider.FailureRun `json:"runs" xml:"runs>run"`
}

// NewScore builds a score report from a triage result, sliced to limit.
// A non-positive limit keeps everything.
func NewScore(meta Meta, result *triage.ScoreResult, limit int) *ScoreReport {
	return &ScoreReport{Meta: meta, Items: sliceItems(result.Items, limit)}
}

// NewPatterns builds a patterns report from a triage result.
func NewPatterns(meta Meta, result *triage.ScoreResult) *PatternsReport {
	clusters := result.Clusters
	if clusters == nil {
		clusters = []triage.PatternCluster{}
	}
	return &PatternsReport{Meta: meta, Clusters: clusters}
}

// NewInbox builds an inbox report from the notification-path triage result.
func NewInbox(meta Meta, result *triage.ScoreResult, limit int) *InboxReport {
	return &InboxReport{Meta: meta, Items: sliceItems(result.Items, limit)}
}

// NewDigest assembles the digest from the notification-path triage result:
// top priorities capped at maxItems, every cluster summarized, and the
// inbox counted.
func NewDigest(meta Meta, result *triage.ScoreResult, maxItems int) *DigestReport {
	digest := &DigestReport{
		Meta:          meta,
		TopPriorities: sliceItems(result.Items, maxItems),
		Clusters:      []ClusterSummary{},
	}
	for _, c := range result.Clusters {
		digest.Clusters = append(digest.Clusters, ClusterSummary{
			Type: c.Type,
			Key:  c.Key,
			Size: c.Size,
		})
	}
	for _, item := range result.Items {
		digest.Inbox.Total++
		if item.Notification != nil && item.Notification.Unread {
			digest.Inbox.Unread++
		}
	}
	return digest
}

// NewComments builds a comments report for one scored PR.
func NewComments(meta Meta, pr *triage.ScoredPullRequest) *CommentsReport {
	comments := pr.Comments
	if comments == nil {
		comments = []provider.UnresolvedComment{}
	}
	return &CommentsReport{Meta: meta, Number: pr.Number, Title: pr.Title, Comments: comments}
}

// NewFailures builds a failures report for one scored PR.
func NewFailures(meta Meta, pr *triage.ScoredPullRequest) *FailuresReport {
	runs := pr.Runs
	if runs == nil {
		runs = []provider.FailureRun{}
	}
	return &FailuresReport{Meta: meta, Number: pr.Number, Title: pr.Title, Runs: runs}
}

func sliceItems(items []triage.ScoredPullRequest, limit int) []triage.ScoredPullRequest {
	if items == nil {
		items = []triage.ScoredPullRequest{}
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
