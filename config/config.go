// Package config provides configuration loading and management for
// sentinel-eye. The config file is user-editable JSON stored at
// .seven-shadow/sentinel-eye.json; every field is validated against a closed
// schema and violations are reported as path-qualified issues.
package config

import (
	"fmt"
	"strings"

	"github.com/seven-shadow/sentinel-eye/errcode"
)

// Version is the only recognized config schema version.
const Version = 1

// Config is the complete sentinel-eye configuration.
type Config struct {
	Version  int           `json:"version"`
	Inbox    InboxConfig   `json:"inbox"`
	Limits   LimitsConfig  `json:"limits"`
	Patterns PatternConfig `json:"patterns"`
	Scoring  ScoringConfig `json:"scoring"`
}

// InboxConfig controls notification handling policy.
type InboxConfig struct {
	// RequireNotificationsScope makes a notification-listing failure fatal
	// for the inbox and digest sections. When false the inbox degrades to
	// empty instead.
	RequireNotificationsScope bool `json:"requireNotificationsScope"`

	// IncludeReadByDefault includes already-read notifications in listings.
	IncludeReadByDefault bool `json:"includeReadByDefault"`
}

// LimitsConfig caps how much data is pulled from the provider per refresh.
type LimitsConfig struct {
	MaxNotifications       int `json:"maxNotifications"`
	MaxPullRequests        int `json:"maxPullRequests"`
	MaxFilesPerPullRequest int `json:"maxFilesPerPullRequest"`
	MaxFailureRunsPerPR    int `json:"maxFailureRunsPerPullRequest"`
	MaxLogBytesPerJob      int `json:"maxLogBytesPerJob"`
	MaxDigestItems         int `json:"maxDigestItems"`
}

// PatternConfig tunes feature extraction and clustering.
type PatternConfig struct {
	MinClusterSize      int `json:"minClusterSize"`
	PathDepth           int `json:"pathDepth"`
	MaxTitleTokens      int `json:"maxTitleTokens"`
	MinTitleTokenLength int `json:"minTitleTokenLength"`
}

// ScoringConfig holds per-signal caps and weights for the priority formula.
type ScoringConfig struct {
	Caps    SignalCaps    `json:"caps"`
	Weights SignalWeights `json:"weights"`
}

// SignalCaps is the saturation point of each scoring signal: values at or
// beyond the cap contribute the full weight.
type SignalCaps struct {
	FailingRuns        int `json:"failingRuns"`
	UnresolvedComments int `json:"unresolvedComments"`
	ChangedFiles       int `json:"changedFiles"`
	LinesChanged       int `json:"linesChanged"`
	DuplicatePeers     int `json:"duplicatePeers"`
}

// SignalWeights is the weight of each signal in the 0..100 priority score.
type SignalWeights struct {
	FailingRuns        float64 `json:"failingRuns"`
	UnresolvedComments float64 `json:"unresolvedComments"`
	ChangedFiles       float64 `json:"changedFiles"`
	LinesChanged       float64 `json:"linesChanged"`
	DuplicatePeers     float64 `json:"duplicatePeers"`
}

// Default returns the built-in default configuration, used when no config
// file exists at the default path.
func Default() *Config {
	return &Config{
		Version: Version,
		Inbox: InboxConfig{
			RequireNotificationsScope: false,
			IncludeReadByDefault:      false,
		},
		Limits: LimitsConfig{
			MaxNotifications:       50,
			MaxPullRequests:        30,
			MaxFilesPerPullRequest: 400,
			MaxFailureRunsPerPR:    5,
			MaxLogBytesPerJob:      1_000_000,
			MaxDigestItems:         10,
		},
		Patterns: PatternConfig{
			MinClusterSize:      2,
			PathDepth:           2,
			MaxTitleTokens:      6,
			MinTitleTokenLength: 3,
		},
		Scoring: ScoringConfig{
			Caps: SignalCaps{
				FailingRuns:        5,
				UnresolvedComments: 8,
				ChangedFiles:       50,
				LinesChanged:       2000,
				DuplicatePeers:     6,
			},
			Weights: SignalWeights{
				FailingRuns:        35,
				UnresolvedComments: 25,
				ChangedFiles:       15,
				LinesChanged:       15,
				DuplicatePeers:     10,
			},
		},
	}
}

// intRange describes a closed [min, max] bound for an integer option.
type intRange struct {
	path     string
	value    int
	min, max int
}

// Validate checks the configuration against the schema. All violations are
// collected and reported together as a single E_SENTINEL_CONFIG_INVALID
// error with path-qualified issues.
func (c *Config) Validate() error {
	var issues []string

	if c.Version != Version {
		issues = append(issues, fmt.Sprintf("version: must be %d, got %d", Version, c.Version))
	}

	ranges := []intRange{
		{"limits.maxNotifications", c.Limits.MaxNotifications, 1, 500},
		{"limits.maxPullRequests", c.Limits.MaxPullRequests, 1, 500},
		{"limits.maxFilesPerPullRequest", c.Limits.MaxFilesPerPullRequest, 1, 2000},
		{"limits.maxFailureRunsPerPullRequest", c.Limits.MaxFailureRunsPerPR, 1, 50},
		{"limits.maxLogBytesPerJob", c.Limits.MaxLogBytesPerJob, 1024, 20_000_000},
		{"limits.maxDigestItems", c.Limits.MaxDigestItems, 1, 100},
		{"patterns.minClusterSize", c.Patterns.MinClusterSize, 2, 50},
		{"patterns.pathDepth", c.Patterns.PathDepth, 1, 6},
		{"patterns.maxTitleTokens", c.Patterns.MaxTitleTokens, 1, 12},
		{"patterns.minTitleTokenLength", c.Patterns.MinTitleTokenLength, 1, 20},
		{"scoring.caps.failingRuns", c.Scoring.Caps.FailingRuns, 1, 100},
		{"scoring.caps.unresolvedComments", c.Scoring.Caps.UnresolvedComments, 1, 200},
		{"scoring.caps.changedFiles", c.Scoring.Caps.ChangedFiles, 1, 5000},
		{"scoring.caps.linesChanged", c.Scoring.Caps.LinesChanged, 1, 200_000},
		{"scoring.caps.duplicatePeers", c.Scoring.Caps.DuplicatePeers, 1, 200},
	}
	for _, r := range ranges {
		if r.value < r.min || r.value > r.max {
			issues = append(issues, fmt.Sprintf("%s: must be between %d and %d, got %d", r.path, r.min, r.max, r.value))
		}
	}

	weights := []struct {
		path  string
		value float64
	}{
		{"scoring.weights.failingRuns", c.Scoring.Weights.FailingRuns},
		{"scoring.weights.unresolvedComments", c.Scoring.Weights.UnresolvedComments},
		{"scoring.weights.changedFiles", c.Scoring.Weights.ChangedFiles},
		{"scoring.weights.linesChanged", c.Scoring.Weights.LinesChanged},
		{"scoring.weights.duplicatePeers", c.Scoring.Weights.DuplicatePeers},
	}
	for _, w := range weights {
		if w.value < 0 || w.value > 100 {
			issues = append(issues, fmt.Sprintf("%s: must be between 0 and 100, got %g", w.path, w.value))
		}
	}

	if len(issues) > 0 {
		return errcode.New(errcode.ConfigInvalid, "invalid config: %s", strings.Join(issues, "; "))
	}
	return nil
}

// Clone returns a deep copy. The config is all value types, so a shallow
// copy suffices.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
