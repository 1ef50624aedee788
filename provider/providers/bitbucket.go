package providers

import (
	"context"

	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/provider"
)

// BitbucketProvider is a placeholder adapter: the provider name is
// recognized but no operations are wired yet.
type BitbucketProvider struct{}

// Name returns the provider identifier.
func (p *BitbucketProvider) Name() string { return "bitbucket" }

// TokenEnvVar returns the environment variable holding the auth token.
func (p *BitbucketProvider) TokenEnvVar() string { return "BITBUCKET_TOKEN" }

func bitbucketNotImplemented(op string) error {
	return errcode.New(errcode.ProviderNotImplemented, "bitbucket: %s is not implemented yet", op)
}

// ListNotifications is not implemented for Bitbucket.
func (p *BitbucketProvider) ListNotifications(_ context.Context, _ provider.RepoRef, _ provider.NotificationOptions, _ provider.Auth) ([]provider.Notification, error) {
	return nil, bitbucketNotImplemented("listNotifications")
}

// ListOpenPullRequests is not implemented for Bitbucket.
func (p *BitbucketProvider) ListOpenPullRequests(_ context.Context, _ provider.RepoRef, _ provider.PullRequestOptions, _ provider.Auth) ([]provider.PullRequestSummary, error) {
	return nil, bitbucketNotImplemented("listOpenPullRequests")
}

// GetPullRequestSummary is not implemented for Bitbucket.
func (p *BitbucketProvider) GetPullRequestSummary(_ context.Context, _ provider.RepoRef, _ int, _ provider.Auth) (*provider.PullRequestSummary, error) {
	return nil, bitbucketNotImplemented("getPullRequestSummary")
}

// ListUnresolvedComments is not implemented for Bitbucket.
func (p *BitbucketProvider) ListUnresolvedComments(_ context.Context, _ provider.RepoRef, _ int, _ provider.Auth) ([]provider.UnresolvedComment, error) {
	return nil, bitbucketNotImplemented("listUnresolvedComments")
}

// ListFailureRuns is not implemented for Bitbucket.
func (p *BitbucketProvider) ListFailureRuns(_ context.Context, _ provider.RepoRef, _ provider.FailureRunOptions, _ provider.Auth) ([]provider.FailureRun, error) {
	return nil, bitbucketNotImplemented("listFailureRuns")
}

// ListPullRequestFiles is not implemented for Bitbucket.
func (p *BitbucketProvider) ListPullRequestFiles(_ context.Context, _ provider.RepoRef, _, _ int, _ provider.Auth) ([]provider.ChangedFile, error) {
	return nil, bitbucketNotImplemented("listPullRequestFiles")
}

// GetJobLogs is not implemented for Bitbucket.
func (p *BitbucketProvider) GetJobLogs(_ context.Context, _ provider.RepoRef, _ int64, _ int, _ provider.Auth) (string, error) {
	return "", bitbucketNotImplemented("getJobLogs")
}

// ResolveOpenPullRequestForBranch is not implemented for Bitbucket.
func (p *BitbucketProvider) ResolveOpenPullRequestForBranch(_ context.Context, _ provider.RepoRef, _ string, _ provider.Auth) (int, bool, error) {
	return 0, false, bitbucketNotImplemented("resolveOpenPullRequestForBranch")
}
