package report

import (
	"fmt"
	"strings"

	"github.com/seven-shadow/sentinel-eye/triage"
)

func writeHeader(sb *strings.Builder, title string, meta Meta) {
	fmt.Fprintf(sb, "# %s\n\n", title)
	fmt.Fprintf(sb, "- repo: `%s`\n", meta.Repo)
	fmt.Fprintf(sb, "- provider: %s\n", meta.Provider)
	fmt.Fprintf(sb, "- generated: %s\n", meta.GeneratedAt)
	fmt.Fprintf(sb, "- config: `%s`\n\n", meta.ConfigPath)
}

func writeItemTable(sb *strings.Builder, items []triage.ScoredPullRequest) {
	if len(items) == 0 {
		sb.WriteString("_No pull requests._\n")
		return
	}
	sb.WriteString("| PR | Title | Priority | Trust | Comments | Failing runs | Peers |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	for _, it := range items {
		fmt.Fprintf(sb, "| [#%d](%s) | %s | %d | %d | %d | %d | %d |\n",
			it.Number, it.HTMLURL, escapeCell(it.Title),
			it.PriorityScore, it.TrustScore,
			it.UnresolvedComments, it.FailingRuns, it.DuplicatePeers)
	}
}

// escapeCell keeps a title from breaking the table.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// Markdown renders the score report.
func (r *ScoreReport) Markdown() string {
	var sb strings.Builder
	writeHeader(&sb, "Pull request scores", r.Meta)
	writeItemTable(&sb, r.Items)
	return sb.String()
}

// Markdown renders the patterns report.
func (r *PatternsReport) Markdown() string {
	var sb strings.Builder
	writeHeader(&sb, "Pattern clusters", r.Meta)
	if len(r.Clusters) == 0 {
		sb.WriteString("_No clusters._\n")
		return sb.String()
	}
	for _, c := range r.Clusters {
		fmt.Fprintf(&sb, "## %s: `%s` (%d PRs)\n\n", c.Type, c.Key, c.Size)
		for _, pr := range c.PullRequests {
			fmt.Fprintf(&sb, "- [#%d](%s) %s (priority %d)\n",
				pr.Number, pr.HTMLURL, escapeCell(pr.Title), pr.PriorityScore)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Markdown renders the inbox report.
func (r *InboxReport) Markdown() string {
	var sb strings.Builder
	writeHeader(&sb, "Inbox", r.Meta)
	if len(r.Items) == 0 {
		sb.WriteString("_Inbox is empty._\n")
		return sb.String()
	}
	for _, it := range r.Items {
		marker := " "
		reason := ""
		if it.Notification != nil {
			if it.Notification.Unread {
				marker = "*"
			}
			reason = " (" + it.Notification.Reason + ")"
		}
		fmt.Fprintf(&sb, "- [%s] [#%d](%s) %s%s, priority %d\n",
			marker, it.Number, it.HTMLURL, escapeCell(it.Title), reason, it.PriorityScore)
	}
	return sb.String()
}

// Markdown renders the digest report.
func (r *DigestReport) Markdown() string {
	var sb strings.Builder
	writeHeader(&sb, "Digest", r.Meta)

	fmt.Fprintf(&sb, "Inbox: %d items, %d unread.\n\n", r.Inbox.Total, r.Inbox.Unread)

	sb.WriteString("## Top priorities\n\n")
	writeItemTable(&sb, r.TopPriorities)

	sb.WriteString("\n## Clusters\n\n")
	if len(r.Clusters) == 0 {
		sb.WriteString("_No clusters._\n")
		return sb.String()
	}
	for _, c := range r.Clusters {
		fmt.Fprintf(&sb, "- %s `%s`: %d PRs\n", c.Type, c.Key, c.Size)
	}
	return sb.String()
}

// Markdown renders the comments report.
func (r *CommentsReport) Markdown() string {
	var sb strings.Builder
	writeHeader(&sb, fmt.Sprintf("Unresolved comments for #%d", r.Number), r.Meta)
	if len(r.Comments) == 0 {
		sb.WriteString("_No unresolved comments._\n")
		return sb.String()
	}
	for _, c := range r.Comments {
		outdated := ""
		if c.Outdated {
			outdated = " (outdated)"
		}
		fmt.Fprintf(&sb, "- `%s:%d` @%s%s: %s\n",
			c.File, c.Line, c.Author, outdated, escapeCell(c.Body))
	}
	return sb.String()
}

// Markdown renders the failures report.
func (r *FailuresReport) Markdown() string {
	var sb strings.Builder
	writeHeader(&sb, fmt.Sprintf("Failing runs for #%d", r.Number), r.Meta)
	if len(r.Runs) == 0 {
		sb.WriteString("_No failing runs._\n")
		return sb.String()
	}
	for _, run := range r.Runs {
		fmt.Fprintf(&sb, "## [%s run %d attempt %d](%s)\n\n",
			run.WorkflowName, run.RunNumber, run.RunAttempt, run.HTMLURL)
		for _, job := range run.Jobs {
			step := job.FailedStepName
			if step == "" {
				step = "unknown step"
			}
			fmt.Fprintf(&sb, "- [%s](%s) failed at: %s\n", job.Name, job.HTMLURL, step)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
