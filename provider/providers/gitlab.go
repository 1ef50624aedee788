package providers

import (
	"context"

	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/provider"
)

// GitLabProvider is a placeholder adapter: the provider name is recognized
// but no operations are wired yet.
type GitLabProvider struct{}

// Name returns the provider identifier.
func (p *GitLabProvider) Name() string { return "gitlab" }

// TokenEnvVar returns the environment variable holding the auth token.
func (p *GitLabProvider) TokenEnvVar() string { return "GITLAB_TOKEN" }

func gitlabNotImplemented(op string) error {
	return errcode.New(errcode.ProviderNotImplemented, "gitlab: %s is not implemented yet", op)
}

// ListNotifications is not implemented for GitLab.
func (p *GitLabProvider) ListNotifications(_ context.Context, _ provider.RepoRef, _ provider.NotificationOptions, _ provider.Auth) ([]provider.Notification, error) {
	return nil, gitlabNotImplemented("listNotifications")
}

// ListOpenPullRequests is not implemented for GitLab.
func (p *GitLabProvider) ListOpenPullRequests(_ context.Context, _ provider.RepoRef, _ provider.PullRequestOptions, _ provider.Auth) ([]provider.PullRequestSummary, error) {
	return nil, gitlabNotImplemented("listOpenPullRequests")
}

// GetPullRequestSummary is not implemented for GitLab.
func (p *GitLabProvider) GetPullRequestSummary(_ context.Context, _ provider.RepoRef, _ int, _ provider.Auth) (*provider.PullRequestSummary, error) {
	return nil, gitlabNotImplemented("getPullRequestSummary")
}

// ListUnresolvedComments is not implemented for GitLab.
func (p *GitLabProvider) ListUnresolvedComments(_ context.Context, _ provider.RepoRef, _ int, _ provider.Auth) ([]provider.UnresolvedComment, error) {
	return nil, gitlabNotImplemented("listUnresolvedComments")
}

// ListFailureRuns is not implemented for GitLab.
func (p *GitLabProvider) ListFailureRuns(_ context.Context, _ provider.RepoRef, _ provider.FailureRunOptions, _ provider.Auth) ([]provider.FailureRun, error) {
	return nil, gitlabNotImplemented("listFailureRuns")
}

// ListPullRequestFiles is not implemented for GitLab.
func (p *GitLabProvider) ListPullRequestFiles(_ context.Context, _ provider.RepoRef, _, _ int, _ provider.Auth) ([]provider.ChangedFile, error) {
	return nil, gitlabNotImplemented("listPullRequestFiles")
}

// GetJobLogs is not implemented for GitLab.
func (p *GitLabProvider) GetJobLogs(_ context.Context, _ provider.RepoRef, _ int64, _ int, _ provider.Auth) (string, error) {
	return "", gitlabNotImplemented("getJobLogs")
}

// ResolveOpenPullRequestForBranch is not implemented for GitLab.
func (p *GitLabProvider) ResolveOpenPullRequestForBranch(_ context.Context, _ provider.RepoRef, _ string, _ provider.Auth) (int, bool, error) {
	return 0, false, gitlabNotImplemented("resolveOpenPullRequestForBranch")
}
