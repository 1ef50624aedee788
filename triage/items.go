package triage

import (
	"strings"

	"github.com/seven-shadow/sentinel-eye/provider"
)

// WorkItemsFromPullRequests wraps open-PR summaries as work items.
// Summaries without a repo of their own inherit the listing repo.
func WorkItemsFromPullRequests(repo provider.RepoRef, summaries []provider.PullRequestSummary) []WorkItem {
	items := make([]WorkItem, 0, len(summaries))
	for i := range summaries {
		itemRepo := summaries[i].Repo
		if itemRepo.Owner == "" && itemRepo.Repo == "" {
			itemRepo = repo
		}
		items = append(items, WorkItem{
			Repo:    itemRepo,
			Number:  summaries[i].Number,
			Summary: &summaries[i],
		})
	}
	return items
}

// WorkItemsFromNotifications filters notifications down to pull-request
// subjects with a resolvable PR number and wraps them as work items.
// Notifications without a PR number are dropped before scoring.
func WorkItemsFromNotifications(repo provider.RepoRef, notifications []provider.Notification) []WorkItem {
	items := make([]WorkItem, 0, len(notifications))
	for i := range notifications {
		n := &notifications[i]
		if !isPullRequestSubject(n.SubjectType) {
			continue
		}
		if n.PullNumber <= 0 {
			continue
		}
		items = append(items, WorkItem{
			Repo:         repo,
			Number:       n.PullNumber,
			Notification: n,
		})
	}
	return items
}

// isPullRequestSubject normalizes the subject type case-insensitively; only
// pull-request subjects survive filtering.
func isPullRequestSubject(subjectType string) bool {
	switch strings.ToLower(subjectType) {
	case "pullrequest", "pull_request":
		return true
	default:
		return false
	}
}
