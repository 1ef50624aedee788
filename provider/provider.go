// Package provider defines the capability interface sentinel-eye consumes
// from source-control hosting platforms, plus the registry the adapters
// register themselves into. All calls are non-mutating and stateless; the
// authentication token travels with every call.
package provider

import (
	"context"
	"os"
	"sync"

	"github.com/seven-shadow/sentinel-eye/errcode"
)

// RepoRef identifies a repository as (owner, repo). Both parts are non-empty.
type RepoRef struct {
	Owner string `json:"owner" xml:"owner"`
	Repo  string `json:"repo" xml:"repo"`
}

// String renders the canonical "owner/repo" form.
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Repo
}

// Auth carries the per-call authentication token.
type Auth struct {
	Token string
}

// Notification is a per-user attention event emitted by the platform.
// PullNumber is zero when the subject could not be tied to a pull request;
// such notifications are dropped before scoring.
type Notification struct {
	ID          string `json:"id" xml:"id"`
	SubjectType string `json:"subjectType" xml:"subjectType"`
	PullNumber  int    `json:"pullNumber,omitempty" xml:"pullNumber,omitempty"`
	Reason      string `json:"reason" xml:"reason"`
	Unread      bool   `json:"unread" xml:"unread"`
	UpdatedAt   string `json:"updatedAt" xml:"updatedAt"`
}

// PullRequestSummary is the core attributes of an open pull request.
// Lines changed is always derived as Additions + Deletions, never stored.
type PullRequestSummary struct {
	Repo         RepoRef `json:"repo" xml:"repo"`
	Number       int     `json:"number" xml:"number"`
	Title        string  `json:"title" xml:"title"`
	HTMLURL      string  `json:"htmlUrl" xml:"htmlUrl"`
	State        string  `json:"state" xml:"state"`
	Draft        bool    `json:"draft" xml:"draft"`
	Author       string  `json:"author" xml:"author"`
	CreatedAt    string  `json:"createdAt" xml:"createdAt"`
	UpdatedAt    string  `json:"updatedAt" xml:"updatedAt"`
	ChangedFiles int     `json:"changedFiles" xml:"changedFiles"`
	Additions    int     `json:"additions" xml:"additions"`
	Deletions    int     `json:"deletions" xml:"deletions"`
}

// LinesChanged returns additions plus deletions.
func (p *PullRequestSummary) LinesChanged() int {
	return p.Additions + p.Deletions
}

// UnresolvedComment is a review comment that still needs attention.
// Line is coerced to 1 when the platform reports it absent or non-positive.
type UnresolvedComment struct {
	File      string `json:"file" xml:"file"`
	Line      int    `json:"line" xml:"line"`
	Author    string `json:"author" xml:"author"`
	Body      string `json:"body" xml:"body"`
	CreatedAt string `json:"createdAt" xml:"createdAt"`
	URL       string `json:"url" xml:"url"`
	Resolved  bool   `json:"resolved" xml:"resolved"`
	Outdated  bool   `json:"outdated" xml:"outdated"`
}

// FailureRun is a CI run that concluded in failure, with its failed jobs.
type FailureRun struct {
	RunID        int64  `json:"runId" xml:"runId"`
	WorkflowName string `json:"workflowName" xml:"workflowName"`
	WorkflowPath string `json:"workflowPath,omitempty" xml:"workflowPath,omitempty"`
	RunNumber    int    `json:"runNumber" xml:"runNumber"`
	RunAttempt   int    `json:"runAttempt" xml:"runAttempt"`
	HTMLURL      string `json:"htmlUrl" xml:"htmlUrl"`
	Jobs         []Job  `json:"jobs" xml:"jobs"`
}

// Job is one failed job within a failure run.
type Job struct {
	JobID          int64  `json:"jobId" xml:"jobId"`
	Name           string `json:"name" xml:"name"`
	HTMLURL        string `json:"htmlUrl" xml:"htmlUrl"`
	FailedStepName string `json:"failedStepName,omitempty" xml:"failedStepName,omitempty"`
}

// ChangedFile is one file touched by a pull request.
type ChangedFile struct {
	Path string `json:"path" xml:"path"`
}

// NotificationOptions bounds a notification listing.
type NotificationOptions struct {
	MaxItems    int
	IncludeRead bool
}

// PullRequestOptions bounds an open-PR listing.
type PullRequestOptions struct {
	MaxPullRequests int
}

// FailureRunOptions scopes a failure-run listing to a PR or a single run.
type FailureRunOptions struct {
	PRNumber int
	RunID    int64
	MaxRuns  int
}

// Provider is the capability contract a hosting-platform adapter satisfies.
// Every operation is read-only; any failure is returned as a coded error.
type Provider interface {
	// Name returns the provider identifier ("github", "gitlab", "bitbucket").
	Name() string

	// TokenEnvVar returns the environment variable holding the auth token.
	TokenEnvVar() string

	ListNotifications(ctx context.Context, repo RepoRef, opts NotificationOptions, auth Auth) ([]Notification, error)
	ListOpenPullRequests(ctx context.Context, repo RepoRef, opts PullRequestOptions, auth Auth) ([]PullRequestSummary, error)
	GetPullRequestSummary(ctx context.Context, repo RepoRef, number int, auth Auth) (*PullRequestSummary, error)
	ListUnresolvedComments(ctx context.Context, repo RepoRef, number int, auth Auth) ([]UnresolvedComment, error)
	ListFailureRuns(ctx context.Context, repo RepoRef, opts FailureRunOptions, auth Auth) ([]FailureRun, error)
	ListPullRequestFiles(ctx context.Context, repo RepoRef, number, maxFiles int, auth Auth) ([]ChangedFile, error)

	// GetJobLogs returns best-effort decoded log text, capped at maxLogBytes.
	GetJobLogs(ctx context.Context, repo RepoRef, jobID int64, maxLogBytes int, auth Auth) (string, error)

	// ResolveOpenPullRequestForBranch returns the open PR number for a head
	// branch, or ok=false when none exists.
	ResolveOpenPullRequestForBranch(ctx context.Context, repo RepoRef, branch string, auth Auth) (number int, ok bool, err error)
}

var (
	registry   = make(map[string]Provider)
	registryMu sync.RWMutex
)

// Register adds a provider to the registry. Adapters call this from init().
func Register(p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p.Name()] = p
}

// Get retrieves a provider by name, or an E_PROVIDER_UNSUPPORTED error.
func Get(name string) (Provider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return nil, errcode.New(errcode.ProviderUnsupported, "unsupported provider: %q", name)
	}
	return p, nil
}

// Names returns all registered provider names.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ResolveAuth reads the provider's token from its environment variable.
// A missing token fails with E_SENTINEL_AUTH_MISSING before any network I/O.
func ResolveAuth(p Provider) (Auth, error) {
	token := os.Getenv(p.TokenEnvVar())
	if token == "" {
		return Auth{}, errcode.New(errcode.AuthMissing, "missing auth token: set %s", p.TokenEnvVar()).
			WithRemediation("export " + p.TokenEnvVar() + " with a token that has repo and notifications scopes")
	}
	return Auth{Token: token}, nil
}
