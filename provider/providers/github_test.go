package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRepo = provider.RepoRef{Owner: "octo", Repo: "hello"}

func newTestGitHub(t *testing.T, handler http.HandlerFunc) *GitHubProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGitHub(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
}

func TestListNotifications(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/hello/notifications", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("all"))

		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":     "1",
				"unread": true,
				"reason": "review_requested",
				"subject": map[string]any{
					"type": "PullRequest",
					"url":  "https://api.github.com/repos/octo/hello/pulls/42",
				},
				"updated_at": "2026-08-01T10:00:00Z",
			},
			{
				"id":     "2",
				"unread": false,
				"reason": "subscribed",
				"subject": map[string]any{
					"type": "Issue",
					"url":  "https://api.github.com/repos/octo/hello/issues/7",
				},
				"updated_at": "2026-08-01T09:00:00Z",
			},
		})
	})

	got, err := gh.ListNotifications(context.Background(), testRepo,
		provider.NotificationOptions{MaxItems: 10, IncludeRead: true},
		provider.Auth{Token: "tok"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 42, got[0].PullNumber)
	assert.Equal(t, "PullRequest", got[0].SubjectType)
	assert.True(t, got[0].Unread)
	assert.Equal(t, 0, got[1].PullNumber, "issue subject has no pull number")
}

func TestListNotificationsScopeError(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Resource not accessible"}`, http.StatusForbidden)
	})

	_, err := gh.ListNotifications(context.Background(), testRepo,
		provider.NotificationOptions{MaxItems: 10}, provider.Auth{Token: "tok"})
	require.Error(t, err)
	assert.Equal(t, errcode.NotificationsScopeRequired, errcode.CodeOf(err))
}

func TestListOpenPullRequestsCapped(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"number": 10, "title": "first", "user": map[string]any{"login": "alice"}},
			{"number": 11, "title": "second", "user": map[string]any{"login": "bob"}},
			{"number": 12, "title": "third", "user": map[string]any{"login": "carol"}},
		})
	})

	got, err := gh.ListOpenPullRequests(context.Background(), testRepo,
		provider.PullRequestOptions{MaxPullRequests: 2}, provider.Auth{Token: "tok"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Author)
	assert.Equal(t, testRepo, got[0].Repo)
}

func TestListUnresolvedComments(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		pos := 5
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"path": "pkg/a.go", "line": 12,
				"user": map[string]any{"login": "alice"},
				"body": "needs a nil check", "position": &pos,
			},
			{
				"path": "pkg/a.go", "line": 0,
				"user": map[string]any{"login": "bob"},
				"body": "outdated remark", "position": nil,
			},
			{
				"path": "pkg/a.go", "line": 14,
				"user":           map[string]any{"login": "carol"},
				"body":           "reply, not a thread root",
				"in_reply_to_id": 991,
			},
		})
	})

	got, err := gh.ListUnresolvedComments(context.Background(), testRepo, 42, provider.Auth{Token: "tok"})
	require.NoError(t, err)
	require.Len(t, got, 2, "thread replies are skipped")

	assert.Equal(t, 12, got[0].Line)
	assert.False(t, got[0].Outdated)
	assert.Equal(t, 1, got[1].Line, "non-positive line coerced to 1")
	assert.True(t, got[1].Outdated)
}

func TestListFailureRunsForPR(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/octo/hello/actions/runs":
			assert.Equal(t, "failure", r.URL.Query().Get("conclusion"))
			json.NewEncoder(w).Encode(map[string]any{
				"workflow_runs": []map[string]any{
					{
						"id": 100, "name": "CI", "path": ".github/workflows/ci.yml",
						"run_number": 7, "run_attempt": 1,
						"pull_requests": []map[string]any{{"number": 42}},
					},
					{
						"id": 101, "name": "CI", "path": ".github/workflows/ci.yml",
						"run_number": 8, "run_attempt": 1,
						"pull_requests": []map[string]any{{"number": 43}},
					},
				},
			})
		case "/repos/octo/hello/actions/runs/100/jobs":
			json.NewEncoder(w).Encode(map[string]any{
				"jobs": []map[string]any{
					{
						"id": 9001, "name": "build", "conclusion": "failure",
						"steps": []map[string]any{
							{"name": "checkout", "conclusion": "success"},
							{"name": "go test", "conclusion": "failure"},
						},
					},
					{"id": 9002, "name": "lint", "conclusion": "success"},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	got, err := gh.ListFailureRuns(context.Background(), testRepo,
		provider.FailureRunOptions{PRNumber: 42, MaxRuns: 5}, provider.Auth{Token: "tok"})
	require.NoError(t, err)
	require.Len(t, got, 1, "runs for other PRs are filtered out")

	run := got[0]
	assert.Equal(t, int64(100), run.RunID)
	assert.Equal(t, ".github/workflows/ci.yml", run.WorkflowPath)
	require.Len(t, run.Jobs, 1, "only failed jobs survive")
	assert.Equal(t, "go test", run.Jobs[0].FailedStepName)
}

func TestGetJobLogsCapped(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789abcdef"))
	})

	logs, err := gh.GetJobLogs(context.Background(), testRepo, 9001, 2048, provider.Auth{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", logs)

	short, err := gh.GetJobLogs(context.Background(), testRepo, 9001, 4, provider.Auth{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "0123", short)
}

func TestResolveOpenPullRequestForBranch(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "octo:fix/crash", r.URL.Query().Get("head"))
		json.NewEncoder(w).Encode([]map[string]any{{"number": 55}})
	})

	number, ok, err := gh.ResolveOpenPullRequestForBranch(context.Background(), testRepo, "fix/crash", provider.Auth{Token: "tok"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 55, number)
}

func TestAPIErrorCarriesStatusMarker(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := gh.ListOpenPullRequests(context.Background(), testRepo,
		provider.PullRequestOptions{MaxPullRequests: 5}, provider.Auth{Token: "tok"})
	require.Error(t, err)
	assert.Equal(t, errcode.APIError, errcode.CodeOf(err))
	assert.Contains(t, err.Error(), "status=429")
	assert.True(t, errcode.IsRetryable(err))
}

func TestUnauthorizedMapsToAuthMissing(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	})

	_, err := gh.GetPullRequestSummary(context.Background(), testRepo, 42, provider.Auth{Token: "bad"})
	require.Error(t, err)
	assert.Equal(t, errcode.AuthMissing, errcode.CodeOf(err))
}

func TestPullNumberFromSubjectURL(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"https://api.github.com/repos/o/r/pulls/42", 42},
		{"https://api.github.com/repos/o/r/pulls/42/comments", 42},
		{"https://api.github.com/repos/o/r/issues/7", 0},
		{"", 0},
		{"https://api.github.com/repos/o/r/pulls/abc", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pullNumberFromSubjectURL(tt.url), tt.url)
	}
}

func TestStubProvidersRegistered(t *testing.T) {
	for _, name := range []string{"github", "gitlab", "bitbucket"} {
		_, err := provider.Get(name)
		assert.NoError(t, err, name)
	}

	gl, err := provider.Get("gitlab")
	require.NoError(t, err)
	_, err = gl.ListOpenPullRequests(context.Background(), testRepo, provider.PullRequestOptions{}, provider.Auth{})
	assert.Equal(t, errcode.ProviderNotImplemented, errcode.CodeOf(err))
}
