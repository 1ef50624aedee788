// Package triage implements the deterministic scoring and clustering
// pipeline: dedupe work items, enrich each pull request from the provider,
// extract features, cluster repeated patterns, score, and sort. Given a
// config and the provider replies, the output is a pure function of its
// inputs: no clock, no randomness.
package triage

import (
	"strconv"

	"github.com/seven-shadow/sentinel-eye/provider"
)

// WorkItem is one pull request to triage, optionally carrying the summary
// and the notification that surfaced it.
type WorkItem struct {
	Repo         provider.RepoRef
	Number       int
	Summary      *provider.PullRequestSummary
	Notification *provider.Notification
}

// Key returns the dedupe identity "{owner}/{repo}#{number}".
func (w WorkItem) Key() string {
	return w.Repo.String() + "#" + strconv.Itoa(w.Number)
}

// NotificationMeta is the notification context attached to a scored PR.
type NotificationMeta struct {
	ID        string `json:"id" xml:"id"`
	Reason    string `json:"reason" xml:"reason"`
	Unread    bool   `json:"unread" xml:"unread"`
	UpdatedAt string `json:"updatedAt" xml:"updatedAt"`
}

// Breakdown carries the five weighted signal contributions verbatim, for
// auditability. Each is rounded to 3 decimals.
type Breakdown struct {
	FailingRuns        float64 `json:"failingRuns" xml:"failingRuns"`
	UnresolvedComments float64 `json:"unresolvedComments" xml:"unresolvedComments"`
	ChangedFiles       float64 `json:"changedFiles" xml:"changedFiles"`
	LinesChanged       float64 `json:"linesChanged" xml:"linesChanged"`
	DuplicatePeers     float64 `json:"duplicatePeers" xml:"duplicatePeers"`
}

// ScoredPullRequest is a pull request summary enriched with features,
// signal counts, and the priority/trust scores.
type ScoredPullRequest struct {
	Repo         provider.RepoRef `json:"repo" xml:"repo"`
	Number       int              `json:"number" xml:"number"`
	Title        string           `json:"title" xml:"title"`
	HTMLURL      string           `json:"htmlUrl" xml:"htmlUrl"`
	State        string           `json:"state" xml:"state"`
	Draft        bool             `json:"draft" xml:"draft"`
	Author       string           `json:"author" xml:"author"`
	CreatedAt    string           `json:"createdAt" xml:"createdAt"`
	UpdatedAt    string           `json:"updatedAt" xml:"updatedAt"`
	ChangedFiles int              `json:"changedFiles" xml:"changedFiles"`
	Additions    int              `json:"additions" xml:"additions"`
	Deletions    int              `json:"deletions" xml:"deletions"`
	LinesChanged int              `json:"linesChanged" xml:"linesChanged"`

	PathAreas         []string `json:"pathAreas" xml:"pathAreas"`
	TitleFingerprint  string   `json:"titleFingerprint" xml:"titleFingerprint"`
	FailureSignatures []string `json:"failureSignatures" xml:"failureSignatures"`

	UnresolvedComments int `json:"unresolvedComments" xml:"unresolvedComments"`
	FailingRuns        int `json:"failingRuns" xml:"failingRuns"`
	DuplicatePeers     int `json:"duplicatePeers" xml:"duplicatePeers"`

	Breakdown     Breakdown `json:"breakdown" xml:"breakdown"`
	RiskPoints    float64   `json:"riskPoints" xml:"riskPoints"`
	PriorityScore int       `json:"priorityScore" xml:"priorityScore"`
	TrustScore    int       `json:"trustScore" xml:"trustScore"`

	Notification *NotificationMeta `json:"notification,omitempty" xml:"notification,omitempty"`

	// Comments and Runs hold the enrichment detail for the comments and
	// failures report surfaces.
	Comments []provider.UnresolvedComment `json:"comments,omitempty" xml:"comments,omitempty"`
	Runs     []provider.FailureRun        `json:"runs,omitempty" xml:"runs,omitempty"`
}

// ClusterType identifies which feature a pattern cluster groups by.
type ClusterType string

// The three cluster feature types.
const (
	ClusterPathArea         ClusterType = "path-area"
	ClusterTitleFingerprint ClusterType = "title-fingerprint"
	ClusterFailureSignature ClusterType = "failure-signature"
)

// ClusterPullRequest is a lightweight PR reference inside a cluster.
type ClusterPullRequest struct {
	Repo          provider.RepoRef `json:"repo" xml:"repo"`
	Number        int              `json:"number" xml:"number"`
	Title         string           `json:"title" xml:"title"`
	HTMLURL       string           `json:"htmlUrl" xml:"htmlUrl"`
	PriorityScore int              `json:"priorityScore" xml:"priorityScore"`
}

// PatternCluster is a group of PRs sharing one feature value.
type PatternCluster struct {
	Type         ClusterType          `json:"type" xml:"type"`
	Key          string               `json:"key" xml:"key"`
	Size         int                  `json:"size" xml:"size"`
	PullRequests []ClusterPullRequest `json:"pullRequests" xml:"pullRequests"`
}

// ScoreResult is the engine's output. Downstream reports slice these
// without re-sorting.
type ScoreResult struct {
	Items    []ScoredPullRequest `json:"items" xml:"items"`
	Clusters []PatternCluster    `json:"clusters" xml:"clusters"`
}
