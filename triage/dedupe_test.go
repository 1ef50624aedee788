package triage

import (
	"testing"

	"github.com/seven-shadow/sentinel-eye/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeWorkItemsDistinctKeysPreserved(t *testing.T) {
	repo := provider.RepoRef{Owner: "a", Repo: "r"}
	other := provider.RepoRef{Owner: "a", Repo: "q"}
	items := MergeWorkItems([]WorkItem{
		{Repo: repo, Number: 2},
		{Repo: other, Number: 9},
		{Repo: repo, Number: 1},
	})

	require.Len(t, items, 3)
	assert.Equal(t, "a/q#9", items[0].Key())
	assert.Equal(t, "a/r#1", items[1].Key())
	assert.Equal(t, "a/r#2", items[2].Key())
}

func TestMergeWorkItemsNewerNotificationWins(t *testing.T) {
	repo := provider.RepoRef{Owner: "a", Repo: "r"}
	older := &provider.Notification{ID: "n1", UpdatedAt: "2026-08-01T00:00:00Z", Unread: true}
	newer := &provider.Notification{ID: "n2", UpdatedAt: "2026-08-02T00:00:00Z"}

	items := MergeWorkItems([]WorkItem{
		{Repo: repo, Number: 5, Notification: older},
		{Repo: repo, Number: 5, Notification: newer},
	})

	require.Len(t, items, 1)
	assert.Equal(t, "n2", items[0].Notification.ID)
}

func TestMergeWorkItemsUnreadBreaksTimestampTie(t *testing.T) {
	repo := provider.RepoRef{Owner: "a", Repo: "r"}
	read := &provider.Notification{ID: "read", UpdatedAt: "2026-08-01T00:00:00Z"}
	unread := &provider.Notification{ID: "unread", UpdatedAt: "2026-08-01T00:00:00Z", Unread: true}

	items := MergeWorkItems([]WorkItem{
		{Repo: repo, Number: 5, Notification: read},
		{Repo: repo, Number: 5, Notification: unread},
	})

	require.Len(t, items, 1)
	assert.Equal(t, "unread", items[0].Notification.ID)
}

func TestMergeWorkItemsKeepsSummaryAcrossMerge(t *testing.T) {
	repo := provider.RepoRef{Owner: "a", Repo: "r"}
	summary := &provider.PullRequestSummary{Number: 5, Title: "fix"}
	newer := &provider.Notification{ID: "n2", UpdatedAt: "2026-08-02T00:00:00Z"}

	items := MergeWorkItems([]WorkItem{
		{Repo: repo, Number: 5, Summary: summary},
		{Repo: repo, Number: 5, Notification: newer},
	})

	require.Len(t, items, 1)
	assert.Same(t, summary, items[0].Summary)
	assert.Equal(t, "n2", items[0].Notification.ID)
}

func TestMergeWorkItemsEmpty(t *testing.T) {
	assert.Empty(t, MergeWorkItems(nil))
}
