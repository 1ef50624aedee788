package triage

import (
	"sort"
	"strings"

	"github.com/seven-shadow/sentinel-eye/config"
	"github.com/seven-shadow/sentinel-eye/provider"
)

// titleStopWords are dropped from title fingerprints regardless of length.
var titleStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "from": true,
	"in": true, "is": true, "of": true, "on": true, "or": true,
	"the": true, "to": true, "with": true,
}

// PathAreas collapses file paths to their leading pathDepth segments,
// deduplicated and sorted. Empty segments and empty results are dropped.
func PathAreas(files []provider.ChangedFile, pathDepth int) []string {
	seen := make(map[string]bool)
	for _, f := range files {
		var segments []string
		for _, seg := range strings.Split(f.Path, "/") {
			if seg == "" {
				continue
			}
			segments = append(segments, seg)
			if len(segments) == pathDepth {
				break
			}
		}
		if len(segments) == 0 {
			continue
		}
		seen[strings.Join(segments, "/")] = true
	}
	return sortedKeys(seen)
}

// TitleFingerprint normalizes a PR title into a stable token set: lowercase,
// strip non-alphanumerics, drop short tokens and stop words, dedupe, sort,
// cap at maxTokens, join with single spaces. An empty result is the empty
// string and never becomes a cluster key.
func TitleFingerprint(title string, maxTokens, minTokenLength int) string {
	lowered := strings.ToLower(title)
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			return r
		}
		return ' '
	}, lowered)

	seen := make(map[string]bool)
	for _, token := range strings.Fields(cleaned) {
		if len(token) < minTokenLength {
			continue
		}
		if titleStopWords[token] {
			continue
		}
		seen[token] = true
	}

	tokens := sortedKeys(seen)
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return strings.Join(tokens, " ")
}

// FailureSignatures derives "{workflowLabel}::{stepLabel}" for every failed
// job, preferring the workflow path over its name and the failed step over
// the job name. Deduplicated and sorted.
func FailureSignatures(runs []provider.FailureRun) []string {
	seen := make(map[string]bool)
	for _, run := range runs {
		workflowLabel := run.WorkflowPath
		if workflowLabel == "" {
			workflowLabel = run.WorkflowName
		}
		for _, job := range run.Jobs {
			stepLabel := job.FailedStepName
			if stepLabel == "" {
				stepLabel = job.Name
			}
			seen[workflowLabel+"::"+stepLabel] = true
		}
	}
	return sortedKeys(seen)
}

// extractFeatures fills the feature fields of a scored PR from its
// enrichment data.
func extractFeatures(pr *ScoredPullRequest, files []provider.ChangedFile, cfg *config.Config) {
	pr.PathAreas = PathAreas(files, cfg.Patterns.PathDepth)
	pr.TitleFingerprint = TitleFingerprint(pr.Title, cfg.Patterns.MaxTitleTokens, cfg.Patterns.MinTitleTokenLength)
	pr.FailureSignatures = FailureSignatures(pr.Runs)
	pr.LinesChanged = pr.Additions + pr.Deletions
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return []string{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
