// Package providers implements hosting-platform adapters for the
// sentinel-eye provider interface.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/provider"
)

// maxResponseSize limits any single API response body.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// githubAPIVersion is the REST API version header value.
const githubAPIVersion = "2022-11-28"

func init() {
	provider.Register(NewGitHub())
	provider.Register(&GitLabProvider{})
	provider.Register(&BitbucketProvider{})
}

// GitHubProvider implements the provider interface against the GitHub REST
// API v3.
type GitHubProvider struct {
	baseURL    string
	httpClient *http.Client
}

// GitHubOption configures a GitHubProvider.
type GitHubOption func(*GitHubProvider)

// WithBaseURL points the adapter at a different API root (tests, GHE).
func WithBaseURL(u string) GitHubOption {
	return func(p *GitHubProvider) {
		p.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(p *GitHubProvider) {
		p.httpClient = c
	}
}

// NewGitHub creates a GitHub adapter.
func NewGitHub(opts ...GitHubOption) *GitHubProvider {
	p := &GitHubProvider{
		baseURL: "https://api.github.com",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *GitHubProvider) Name() string { return "github" }

// TokenEnvVar returns the environment variable holding the auth token.
func (p *GitHubProvider) TokenEnvVar() string { return "GITHUB_TOKEN" }

// githubNotification is the wire shape of a repo notification thread.
type githubNotification struct {
	ID      string `json:"id"`
	Unread  bool   `json:"unread"`
	Reason  string `json:"reason"`
	Subject struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"subject"`
	UpdatedAt string `json:"updated_at"`
}

// ListNotifications lists the repo's notification threads, newest first.
func (p *GitHubProvider) ListNotifications(ctx context.Context, repo provider.RepoRef, opts provider.NotificationOptions, auth provider.Auth) ([]provider.Notification, error) {
	q := url.Values{}
	if opts.IncludeRead {
		q.Set("all", "true")
	}
	q.Set("per_page", fmt.Sprintf("%d", pageSize(opts.MaxItems)))

	var raw []githubNotification
	path := fmt.Sprintf("/repos/%s/%s/notifications?%s", repo.Owner, repo.Repo, q.Encode())
	if err := p.getJSON(ctx, path, auth, true, &raw); err != nil {
		return nil, err
	}

	out := make([]provider.Notification, 0, len(raw))
	for _, n := range raw {
		if opts.MaxItems > 0 && len(out) >= opts.MaxItems {
			break
		}
		out = append(out, provider.Notification{
			ID:          n.ID,
			SubjectType: n.Subject.Type,
			PullNumber:  pullNumberFromSubjectURL(n.Subject.URL),
			Reason:      n.Reason,
			Unread:      n.Unread,
			UpdatedAt:   n.UpdatedAt,
		})
	}
	return out, nil
}

// githubPull is the wire shape of a pull request.
type githubPull struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
	Draft   bool   `json:"draft"`
	User    struct {
		Login string `json:"login"`
	} `json:"user"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	ChangedFiles int    `json:"changed_files"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
}

func (gp *githubPull) toSummary(repo provider.RepoRef) provider.PullRequestSummary {
	return provider.PullRequestSummary{
		Repo:         repo,
		Number:       gp.Number,
		Title:        gp.Title,
		HTMLURL:      gp.HTMLURL,
		State:        gp.State,
		Draft:        gp.Draft,
		Author:       gp.User.Login,
		CreatedAt:    gp.CreatedAt,
		UpdatedAt:    gp.UpdatedAt,
		ChangedFiles: gp.ChangedFiles,
		Additions:    gp.Additions,
		Deletions:    gp.Deletions,
	}
}

// ListOpenPullRequests lists open PRs, most recently updated first.
func (p *GitHubProvider) ListOpenPullRequests(ctx context.Context, repo provider.RepoRef, opts provider.PullRequestOptions, auth provider.Auth) ([]provider.PullRequestSummary, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls?state=open&sort=updated&direction=desc&per_page=%d",
		repo.Owner, repo.Repo, pageSize(opts.MaxPullRequests))

	var raw []githubPull
	if err := p.getJSON(ctx, path, auth, false, &raw); err != nil {
		return nil, err
	}

	out := make([]provider.PullRequestSummary, 0, len(raw))
	for i := range raw {
		if opts.MaxPullRequests > 0 && len(out) >= opts.MaxPullRequests {
			break
		}
		out = append(out, raw[i].toSummary(repo))
	}
	return out, nil
}

// GetPullRequestSummary fetches a single PR. The list endpoint omits the
// file/line counters, so enrichment calls this per PR.
func (p *GitHubProvider) GetPullRequestSummary(ctx context.Context, repo provider.RepoRef, number int, auth provider.Auth) (*provider.PullRequestSummary, error) {
	var raw githubPull
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", repo.Owner, repo.Repo, number)
	if err := p.getJSON(ctx, path, auth, false, &raw); err != nil {
		return nil, err
	}
	summary := raw.toSummary(repo)
	return &summary, nil
}

// githubReviewComment is the wire shape of a PR review comment.
type githubReviewComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	User struct {
		Login string `json:"login"`
	} `json:"user"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
	HTMLURL   string `json:"html_url"`
	// Position is null for comments on outdated diffs.
	Position *int `json:"position"`
	// InReplyToID groups replies into threads; only thread roots count.
	InReplyToID int64 `json:"in_reply_to_id"`
}

// ListUnresolvedComments lists thread-root review comments that still need
// attention. The REST surface has no resolution flag, so every live thread
// root is reported unresolved; outdated is derived from a null diff position.
func (p *GitHubProvider) ListUnresolvedComments(ctx context.Context, repo provider.RepoRef, number int, auth provider.Auth) ([]provider.UnresolvedComment, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/comments?per_page=100", repo.Owner, repo.Repo, number)

	var raw []githubReviewComment
	if err := p.getJSON(ctx, path, auth, false, &raw); err != nil {
		return nil, err
	}

	out := make([]provider.UnresolvedComment, 0, len(raw))
	for _, c := range raw {
		if c.InReplyToID != 0 {
			continue
		}
		line := c.Line
		if line <= 0 {
			line = 1
		}
		out = append(out, provider.UnresolvedComment{
			File:      c.Path,
			Line:      line,
			Author:    c.User.Login,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
			URL:       c.HTMLURL,
			Resolved:  false,
			Outdated:  c.Position == nil,
		})
	}
	return out, nil
}

// githubRun is the wire shape of a workflow run.
type githubRun struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	RunNumber    int    `json:"run_number"`
	RunAttempt   int    `json:"run_attempt"`
	HTMLURL      string `json:"html_url"`
	PullRequests []struct {
		Number int `json:"number"`
	} `json:"pull_requests"`
}

type githubRunList struct {
	WorkflowRuns []githubRun `json:"workflow_runs"`
}

// githubJob is the wire shape of a workflow job.
type githubJob struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	HTMLURL    string `json:"html_url"`
	Conclusion string `json:"conclusion"`
	Steps      []struct {
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
	} `json:"steps"`
}

type githubJobList struct {
	Jobs []githubJob `json:"jobs"`
}

// ListFailureRuns lists failed workflow runs, scoped to a PR or a single run
// id, each populated with its failed jobs.
func (p *GitHubProvider) ListFailureRuns(ctx context.Context, repo provider.RepoRef, opts provider.FailureRunOptions, auth provider.Auth) ([]provider.FailureRun, error) {
	var runs []githubRun
	if opts.RunID != 0 {
		var run githubRun
		path := fmt.Sprintf("/repos/%s/%s/actions/runs/%d", repo.Owner, repo.Repo, opts.RunID)
		if err := p.getJSON(ctx, path, auth, false, &run); err != nil {
			return nil, err
		}
		runs = []githubRun{run}
	} else {
		var list githubRunList
		path := fmt.Sprintf("/repos/%s/%s/actions/runs?status=completed&conclusion=failure&per_page=%d",
			repo.Owner, repo.Repo, pageSize(opts.MaxRuns))
		if err := p.getJSON(ctx, path, auth, false, &list); err != nil {
			return nil, err
		}
		runs = list.WorkflowRuns
	}

	out := make([]provider.FailureRun, 0, len(runs))
	for _, run := range runs {
		if opts.PRNumber > 0 && !runTouchesPR(run, opts.PRNumber) {
			continue
		}
		if opts.MaxRuns > 0 && len(out) >= opts.MaxRuns {
			break
		}

		jobs, err := p.listFailedJobs(ctx, repo, run.ID, auth)
		if err != nil {
			return nil, err
		}
		out = append(out, provider.FailureRun{
			RunID:        run.ID,
			WorkflowName: run.Name,
			WorkflowPath: run.Path,
			RunNumber:    run.RunNumber,
			RunAttempt:   run.RunAttempt,
			HTMLURL:      run.HTMLURL,
			Jobs:         jobs,
		})
	}
	return out, nil
}

func runTouchesPR(run githubRun, prNumber int) bool {
	for _, pr := range run.PullRequests {
		if pr.Number == prNumber {
			return true
		}
	}
	return false
}

func (p *GitHubProvider) listFailedJobs(ctx context.Context, repo provider.RepoRef, runID int64, auth provider.Auth) ([]provider.Job, error) {
	var list githubJobList
	path := fmt.Sprintf("/repos/%s/%s/actions/runs/%d/jobs?per_page=100", repo.Owner, repo.Repo, runID)
	if err := p.getJSON(ctx, path, auth, false, &list); err != nil {
		return nil, err
	}

	var jobs []provider.Job
	for _, j := range list.Jobs {
		if j.Conclusion != "failure" {
			continue
		}
		failedStep := ""
		for _, step := range j.Steps {
			if step.Conclusion == "failure" {
				failedStep = step.Name
				break
			}
		}
		jobs = append(jobs, provider.Job{
			JobID:          j.ID,
			Name:           j.Name,
			HTMLURL:        j.HTMLURL,
			FailedStepName: failedStep,
		})
	}
	return jobs, nil
}

// githubFile is the wire shape of one changed file.
type githubFile struct {
	Filename string `json:"filename"`
}

// ListPullRequestFiles lists the files touched by a PR, capped at maxFiles.
func (p *GitHubProvider) ListPullRequestFiles(ctx context.Context, repo provider.RepoRef, number, maxFiles int, auth provider.Auth) ([]provider.ChangedFile, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=%d", repo.Owner, repo.Repo, number, pageSize(maxFiles))

	var raw []githubFile
	if err := p.getJSON(ctx, path, auth, false, &raw); err != nil {
		return nil, err
	}

	out := make([]provider.ChangedFile, 0, len(raw))
	for _, f := range raw {
		if maxFiles > 0 && len(out) >= maxFiles {
			break
		}
		out = append(out, provider.ChangedFile{Path: f.Filename})
	}
	return out, nil
}

// GetJobLogs downloads a job's log text, capped at maxLogBytes. GitHub
// redirects to blob storage; the default client follows it.
func (p *GitHubProvider) GetJobLogs(ctx context.Context, repo provider.RepoRef, jobID int64, maxLogBytes int, auth provider.Auth) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/actions/jobs/%d/logs", repo.Owner, repo.Repo, jobID)

	body, err := p.get(ctx, path, auth, false, maxLogBytes)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ResolveOpenPullRequestForBranch finds the open PR whose head is the given
// branch, if any.
func (p *GitHubProvider) ResolveOpenPullRequestForBranch(ctx context.Context, repo provider.RepoRef, branch string, auth provider.Auth) (int, bool, error) {
	q := url.Values{}
	q.Set("state", "open")
	q.Set("head", repo.Owner+":"+branch)
	path := fmt.Sprintf("/repos/%s/%s/pulls?%s", repo.Owner, repo.Repo, q.Encode())

	var raw []githubPull
	if err := p.getJSON(ctx, path, auth, false, &raw); err != nil {
		return 0, false, err
	}
	if len(raw) == 0 {
		return 0, false, nil
	}
	return raw[0].Number, true, nil
}

// getJSON performs a GET and decodes the JSON response into out.
func (p *GitHubProvider) getJSON(ctx context.Context, path string, auth provider.Auth, notifications bool, out any) error {
	body, err := p.get(ctx, path, auth, notifications, maxResponseSize)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errcode.New(errcode.APIError, "github: decode %s: %v", path, err)
	}
	return nil
}

// get performs a GET with auth headers and a size-limited read. The
// notifications flag upgrades a 403 into the scope-required code so the
// inbox policy can act on it.
func (p *GitHubProvider) get(ctx context.Context, path string, auth provider.Auth, notifications bool, maxBytes int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, errcode.New(errcode.APIError, "github: build request: %v", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errcode.New(errcode.APIError, "github: request %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)))
	if err != nil {
		return nil, errcode.New(errcode.APIError, "github: read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body, notifications)
	}
	return body, nil
}

// classifyStatus maps an HTTP failure status to a coded error. The status is
// embedded as "status=N" so the scheduler's retryable matching sees it.
func classifyStatus(status int, body []byte, notifications bool) error {
	preview := strings.TrimSpace(string(body))
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}

	if notifications && (status == http.StatusForbidden || status == http.StatusNotFound) {
		return errcode.New(errcode.NotificationsScopeRequired,
			"github notifications listing failed status=%d: %s", status, preview).
			WithRemediation("grant the notifications scope to the token")
	}
	if status == http.StatusUnauthorized {
		return errcode.New(errcode.AuthMissing, "github rejected the token status=%d: %s", status, preview)
	}
	return errcode.New(errcode.APIError, "github api error status=%d: %s", status, preview)
}

// pageSize clamps a caller cap to the API's 1..100 page window.
func pageSize(max int) int {
	if max <= 0 || max > 100 {
		return 100
	}
	return max
}
