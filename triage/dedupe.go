package triage

import (
	"sort"

	"github.com/seven-shadow/sentinel-eye/provider"
)

// MergeWorkItems deduplicates work items by "{owner}/{repo}#{number}".
// When two items collide, the one with the later notification updatedAt
// wins; at equal timestamps an unread notification beats a read one.
// Non-winning items still contribute a summary if the winner lacks one.
// The merged list is sorted by (owner/repo, number).
func MergeWorkItems(items []WorkItem) []WorkItem {
	merged := make(map[string]WorkItem, len(items))

	for _, item := range items {
		key := item.Key()
		existing, ok := merged[key]
		if !ok {
			merged[key] = item
			continue
		}

		winner, loser := existing, item
		if notificationWins(item.Notification, existing.Notification) {
			winner, loser = item, existing
		}
		if winner.Summary == nil {
			winner.Summary = loser.Summary
		}
		merged[key] = winner
	}

	out := make([]WorkItem, 0, len(merged))
	for _, item := range merged {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Repo.String(), out[j].Repo.String()
		if ri != rj {
			return ri < rj
		}
		return out[i].Number < out[j].Number
	})
	return out
}

// notificationWins reports whether candidate should replace incumbent.
// RFC 3339 timestamps compare correctly as strings.
func notificationWins(candidate, incumbent *provider.Notification) bool {
	switch {
	case candidate == nil:
		return false
	case incumbent == nil:
		return true
	case candidate.UpdatedAt != incumbent.UpdatedAt:
		return candidate.UpdatedAt > incumbent.UpdatedAt
	default:
		return candidate.Unread && !incumbent.Unread
	}
}
